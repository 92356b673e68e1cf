package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-msv3/pkg/msv3"
)

func (c *cli) orderCmd() *cobra.Command {
	var (
		orderID     string
		place       bool
		instruction string
		yes         bool
	)
	cmd := &cobra.Command{
		Use:   "order <wholesaler> <pzn[:qty]>...",
		Short: "Submit an order",
		Long: `order submits a real order. Use --place for wholesalers that expect
the bestellen operation and report per position availability.`,
		Args: cobra.MinimumNArgs(2),
	}
	cmd.Flags().StringVar(&orderID, "order-id", "", "order identifier (generated when empty)")
	cmd.Flags().BoolVar(&place, "place", false, "use the bestellen operation")
	cmd.Flags().StringVar(&instruction, "delivery", "", "delivery instruction for --place")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm that a real order is sent")

	cmd.RunE = c.withApp(func(cmd *cobra.Command, args []string) error {
		if !yes {
			return errors.New("orders are binding; pass --yes to send")
		}
		ctx := cmd.Context()
		ep, err := c.app.Wholesaler(ctx, args[0])
		if err != nil {
			return err
		}
		positions, err := parsePositions(args[1:], instruction)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if place {
			lines, err := c.app.Client.PlaceOrder(ctx, ep, orderID, positions)
			if err != nil {
				return orderFailure(err)
			}
			table := newTable(out, "PZN", "Ordered", "Available", "Status", "Reason", "Next delivery")
			for _, l := range lines {
				table.Append([]string{
					l.Line.ItemID,
					strconv.Itoa(l.Line.Ordered),
					strconv.Itoa(l.Availability.AvailableQuantity),
					string(l.Availability.Status),
					l.Availability.Reason,
					formatDate(l.Availability.NextDelivery),
				})
			}
			table.Render()
			return nil
		}

		res, err := c.app.Client.SubmitOrder(ctx, ep, orderID, positions)
		if res != nil {
			fmt.Fprintf(out, "order:   %s\nsuccess: %t\nstatus:  %s\n", res.OrderID, res.Success, res.Status)
			if res.FailureReason != "" {
				fmt.Fprintf(out, "reason:  %s\n", res.FailureReason)
			}
		}
		if err != nil {
			return orderFailure(err)
		}
		return nil
	})
	return cmd
}

func orderFailure(err error) error {
	if errors.Is(err, msv3.ErrOutcomeUnknown) {
		return fmt.Errorf("order may have been received, check with the wholesaler before resending: %w", err)
	}
	return errors.New(describeError(err))
}
