package msv3

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/cache"
	"github.com/sirosfoundation/go-msv3/pkg/message"
)

// ItemStatus is the availability of one requested item.
type ItemStatus struct {
	ItemID            string
	Requested         int
	Status            availability.StatusCode
	AvailableQuantity int
	Reason            string
	NextDelivery      *time.Time
	CheckedAt         time.Time
	Cached            bool
}

// CheckAvailability answers from the cache where a valid entry exists and
// queries the wholesaler for the rest. Results follow the order of items.
func (c *Client) CheckAvailability(ctx context.Context, ep *message.Endpoint, items []message.AvailabilityItem) ([]ItemStatus, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	out := make([]ItemStatus, len(items))
	var misses []message.AvailabilityItem
	missAt := make(map[string][]int)

	for i, item := range items {
		if c.cache != nil {
			if e, ok := c.cache.Get(item.ItemID, ep.ID); ok && e.RequestedQuantity >= item.Quantity {
				out[i] = statusFromEntry(e, item.Quantity)
				continue
			}
		}
		if _, seen := missAt[item.ItemID]; !seen {
			misses = append(misses, item)
		}
		missAt[item.ItemID] = append(missAt[item.ItemID], i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	positions, err := c.QueryAvailability(ctx, ep, misses)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	answered := make(map[string]bool, len(positions))
	for _, p := range positions {
		idx, ok := missAt[p.ItemID]
		if !ok || answered[p.ItemID] {
			continue
		}
		answered[p.ItemID] = true
		r := availability.FromPosition(p)
		for _, i := range idx {
			out[i] = ItemStatus{
				ItemID:            p.ItemID,
				Requested:         items[i].Quantity,
				Status:            r.Status,
				AvailableQuantity: r.AvailableQuantity,
				Reason:            r.Reason,
				NextDelivery:      r.NextDelivery,
				CheckedAt:         now,
			}
		}
	}
	for id, idx := range missAt {
		if answered[id] {
			continue
		}
		for _, i := range idx {
			out[i] = ItemStatus{ItemID: id, Requested: items[i].Quantity, Status: availability.StatusUnknown, CheckedAt: now}
		}
	}
	return out, nil
}

// statusFromEntry answers a request for at most the cached quantity. A
// partial entry may cover the smaller request completely.
func statusFromEntry(e *cache.Entry, requested int) ItemStatus {
	status := e.Status
	if status == availability.StatusPartial && e.AvailableQuantity >= requested {
		status = availability.StatusAvailableNow
	}
	return ItemStatus{
		ItemID:            e.ItemID,
		Requested:         requested,
		Status:            status,
		AvailableQuantity: e.AvailableQuantity,
		Reason:            e.Reason,
		NextDelivery:      e.NextDelivery,
		CheckedAt:         e.CheckedAt,
		Cached:            true,
	}
}

// Offer is the answer of one wholesaler in a comparison.
type Offer struct {
	Endpoint  *message.Endpoint
	Positions []message.AvailabilityPosition
	Err       error
}

// Compare queries all endpoints concurrently. A failing wholesaler does not
// abort the others; its error is reported in its Offer. Offers are sorted
// by endpoint priority, lowest first.
func (c *Client) Compare(ctx context.Context, endpoints []*message.Endpoint, items []message.AvailabilityItem) []Offer {
	endpoints = slices.DeleteFunc(slices.Clone(endpoints), func(ep *message.Endpoint) bool { return ep == nil })
	offers := make([]Offer, len(endpoints))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, ep := range endpoints {
		g.Go(func() error {
			positions, err := c.QueryAvailability(ctx, ep, items)
			if err != nil {
				c.logger.Warn("availability comparison failed", "wholesaler", ep.ID, "error", err)
			}
			offers[i] = Offer{Endpoint: ep, Positions: positions, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(offers, func(a, b Offer) int {
		return a.Endpoint.Priority - b.Endpoint.Priority
	})
	return offers
}

// Best returns the first offer that can deliver the full quantity of every
// requested item immediately.
func Best(offers []Offer) (Offer, bool) {
	for _, o := range offers {
		if o.Err != nil || len(o.Positions) == 0 {
			continue
		}
		complete := true
		for _, p := range o.Positions {
			if p.Status() != message.PositionAvailable {
				complete = false
				break
			}
		}
		if complete {
			return o, true
		}
	}
	return Offer{}, false
}
