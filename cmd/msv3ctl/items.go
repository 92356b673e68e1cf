package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sirosfoundation/go-msv3/pkg/message"
)

// parseLine reads "PZN" or "PZN:QTY".
func parseLine(arg string) (string, int, error) {
	id, qty, found := strings.Cut(arg, ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", 0, fmt.Errorf("item %q: missing PZN", arg)
	}
	if !found {
		return id, 1, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("item %q: quantity must be a positive number", arg)
	}
	return id, n, nil
}

func parseItems(args []string) ([]message.AvailabilityItem, error) {
	items := make([]message.AvailabilityItem, 0, len(args))
	for _, a := range args {
		id, qty, err := parseLine(a)
		if err != nil {
			return nil, err
		}
		items = append(items, message.AvailabilityItem{ItemID: id, Quantity: qty})
	}
	return items, nil
}

func parsePositions(args []string, instruction string) ([]message.OrderPosition, error) {
	positions := make([]message.OrderPosition, 0, len(args))
	for _, a := range args {
		id, qty, err := parseLine(a)
		if err != nil {
			return nil, err
		}
		positions = append(positions, message.OrderPosition{ItemID: id, Quantity: qty, DeliveryInstruction: instruction})
	}
	return positions, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(message.DateLayout)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	return table
}
