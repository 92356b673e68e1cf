package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/msv3"
)

func (c *cli) availabilityCmd() *cobra.Command {
	var cached, all bool
	cmd := &cobra.Command{
		Use:     "availability <wholesaler> <pzn[:qty]>...",
		Aliases: []string{"avail"},
		Short:   "Query item availability",
		Example: `  msv3ctl availability phoenix 01234567:3 07654321
  msv3ctl availability --all 01234567:3`,
		Args: func(cmd *cobra.Command, args []string) error {
			n := 2
			if all {
				n = 1
			}
			return cobra.MinimumNArgs(n)(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "answer from the availability cache where possible")
	cmd.Flags().BoolVar(&all, "all", false, "compare all active wholesalers")

	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if all {
			items, err := parseItems(args)
			if err != nil {
				return err
			}
			eps, err := c.endpoints(cmd, nil)
			if err != nil {
				return err
			}
			offers := c.app.Client.Compare(ctx, eps, items)
			renderOffers(cmd.OutOrStdout(), offers)
			if best, ok := msv3.Best(offers); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "\nFirst complete offer: %s\n", best.Endpoint.ID)
			}
			return nil
		}

		ep, err := c.app.Wholesaler(ctx, args[0])
		if err != nil {
			return err
		}
		items, err := parseItems(args[1:])
		if err != nil {
			return err
		}

		if cached {
			statuses, err := c.app.Client.CheckAvailability(ctx, ep, items)
			if err != nil {
				return fmt.Errorf("%s: %s", ep.ID, describeError(err))
			}
			renderStatuses(cmd.OutOrStdout(), statuses)
			return nil
		}

		positions, err := c.app.Client.QueryAvailability(ctx, ep, items)
		if err != nil {
			return fmt.Errorf("%s: %s", ep.ID, describeError(err))
		}
		renderPositions(cmd.OutOrStdout(), ep.ID, positions)
		return nil
	})
	return cmd
}

func renderPositions(w io.Writer, wholesaler string, positions []message.AvailabilityPosition) {
	table := newTable(w, "Wholesaler", "PZN", "Requested", "Available", "Status", "Derived", "Price", "Hint")
	for _, p := range positions {
		price := ""
		if p.PurchasePrice.Valid {
			price = p.PurchasePrice.Decimal.StringFixed(2)
		}
		table.Append([]string{
			wholesaler,
			p.ItemID,
			strconv.Itoa(p.Requested),
			strconv.Itoa(p.Quantity),
			string(p.Status()),
			string(availability.FromPosition(p).Status),
			price,
			p.Hint,
		})
	}
	table.Render()
}

func renderStatuses(w io.Writer, statuses []msv3.ItemStatus) {
	table := newTable(w, "PZN", "Requested", "Available", "Status", "Next delivery", "Source")
	for _, s := range statuses {
		source := "wholesaler"
		if s.Cached {
			source = "cache"
		}
		table.Append([]string{
			s.ItemID,
			strconv.Itoa(s.Requested),
			strconv.Itoa(s.AvailableQuantity),
			string(s.Status),
			formatDate(s.NextDelivery),
			source,
		})
	}
	table.Render()
}

func renderOffers(w io.Writer, offers []msv3.Offer) {
	table := newTable(w, "Priority", "Wholesaler", "PZN", "Requested", "Available", "Status", "Error")
	for _, o := range offers {
		prio := strconv.Itoa(o.Endpoint.Priority)
		if o.Err != nil {
			table.Append([]string{prio, o.Endpoint.ID, "", "", "", "", describeError(o.Err)})
			continue
		}
		for _, p := range o.Positions {
			table.Append([]string{
				prio,
				o.Endpoint.ID,
				p.ItemID,
				strconv.Itoa(p.Requested),
				strconv.Itoa(p.Quantity),
				string(p.Status()),
				"",
			})
		}
	}
	table.Render()
}
