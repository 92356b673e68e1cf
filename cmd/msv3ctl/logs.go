package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-msv3/internal/storage"
)

func (c *cli) logsCmd() *cobra.Command {
	var (
		filter storage.RequestLogFilter
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List audited wholesaler exchanges",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&filter.WholesalerID, "wholesaler", "", "only this wholesaler")
	cmd.Flags().StringVar(&filter.Action, "action", "", "only this operation")
	cmd.Flags().BoolVar(&filter.FaultsOnly, "faults", false, "only exchanges answered with a SOAP fault")
	cmd.Flags().DurationVar(&since, "since", 0, "only exchanges newer than this")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of entries")

	cmd.RunE = c.withApp(func(cmd *cobra.Command, _ []string) error {
		if since > 0 {
			t := time.Now().Add(-since)
			filter.Since = &t
		}
		logs, err := c.app.Store.ListRequestLogs(cmd.Context(), &filter)
		if err != nil {
			return err
		}

		table := newTable(cmd.OutOrStdout(), "Time", "Wholesaler", "Action", "HTTP", "Fault", "ms", "URL", "Error")
		for _, l := range logs {
			table.Append([]string{
				l.CreatedAt.Local().Format(time.DateTime),
				l.WholesalerID,
				l.Action,
				strconv.Itoa(l.HTTPStatus),
				strconv.FormatBool(l.Fault),
				strconv.FormatInt(l.DurationMS, 10),
				l.Endpoint,
				l.Error,
			})
		}
		table.Render()
		return nil
	})
	return cmd
}
