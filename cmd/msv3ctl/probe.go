package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

func (c *cli) probeCmd() *cobra.Command {
	var pzn string
	cmd := &cobra.Command{
		Use:   "probe [wholesaler...]",
		Short: "Find the URL and SOAP variant each wholesaler accepts",
		Long: `probe sends a single item availability query to each wholesaler
and reports the route that was accepted. Without arguments all active
wholesalers are probed.`,
	}
	cmd.Flags().StringVar(&pzn, "pzn", "00000000", "PZN used for the probe query")

	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		endpoints, err := c.endpoints(cmd, args)
		if err != nil {
			return err
		}

		table := newTable(cmd.OutOrStdout(), "Wholesaler", "URL", "SOAP", "Status", "Attempts", "Result")
		failed := 0
		for _, ep := range endpoints {
			res, err := c.app.Client.Probe(ctx, ep, pzn)
			if err != nil {
				failed++
				table.Append([]string{ep.ID, "", "", "", "", describeError(err)})
				continue
			}
			result := "ok"
			if res.Answer != nil {
				result = "answered: " + res.Answer.Error()
			}
			table.Append([]string{
				ep.ID,
				res.Route.URL,
				res.Route.SOAPVersion().String(),
				strconv.Itoa(res.StatusCode),
				strconv.Itoa(res.Attempts),
				result,
			})
		}
		table.Render()

		if failed > 0 {
			return fmt.Errorf("%d of %d wholesalers unreachable", failed, len(endpoints))
		}
		return nil
	})
	return cmd
}

// endpoints resolves the named wholesalers, or all active ones.
func (c *cli) endpoints(cmd *cobra.Command, ids []string) ([]*message.Endpoint, error) {
	if len(ids) == 0 {
		eps, err := c.app.Wholesalers(cmd.Context())
		if err != nil {
			return nil, err
		}
		if len(eps) == 0 {
			return nil, errors.New("no active wholesalers configured")
		}
		return eps, nil
	}
	eps := make([]*message.Endpoint, 0, len(ids))
	for _, id := range ids {
		ep, err := c.app.Wholesaler(cmd.Context(), id)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// describeError names the failure class so operators know where to look.
func describeError(err error) string {
	var (
		conn *transport.ConnectivityError
		auth *transport.AuthenticationError
		exh  *transport.ExhaustedFallbackError
	)
	switch {
	case errors.As(err, &auth):
		return "credentials rejected: " + err.Error()
	case errors.As(err, &exh):
		return fmt.Sprintf("no acceptable answer (last HTTP %d)", exh.LastStatus)
	case errors.As(err, &conn):
		return "unreachable: " + err.Error()
	default:
		return err.Error()
	}
}
