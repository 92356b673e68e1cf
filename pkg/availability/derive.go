package availability

import (
	"strings"
	"time"

	"github.com/sirosfoundation/go-msv3/pkg/message"
)

// StatusCode is the normalized availability of an order line.
type StatusCode string

const (
	StatusAvailableNow StatusCode = "SOFORT_LIEFERBAR"
	StatusPartial      StatusCode = "TEILLIEFERBAR"
	StatusBackOrder    StatusCode = "NACHLIEFERUNG_MOEGLICH"
	StatusUnavailable  StatusCode = "NICHT_LIEFERBAR"
	StatusUnknown      StatusCode = "UNBEKANNT"
)

// Keyword lists of the rule table. All entries are lower case.
var (
	DeliveryKeywords   = []string{"delivery", "lieferung", "liefer", "normal", "sofort"}
	NoDeliveryKeywords = []string{"no delivery", "keine lieferung", "keinelieferung", "nicht lieferbar"}
	BackOrderKeywords  = []string{"back-order", "backorder", "nachlieferung"}
)

// Share is one part of the fulfillment plan for an ordered line.
type Share struct {
	Quantity       int
	Type           string
	Reason         string
	NextDelivery   *time.Time
	RouteDeviation bool
}

// Line is an ordered line together with the wholesaler's shares.
type Line struct {
	ItemID              string
	Ordered             int
	DeliveryInstruction string
	Shares              []Share
}

// Result is the outcome of Derive.
type Result struct {
	Status            StatusCode
	AvailableQuantity int
	Reason            string
	Type              string
	NextDelivery      *time.Time
}

// Derive applies the rule table to a line. It depends on nothing but the
// line itself.
func Derive(line Line) Result {
	res := Result{Status: StatusUnknown}
	if len(line.Shares) > 0 {
		res.Reason = line.Shares[0].Reason
		res.Type = line.Shares[0].Type
	}

	var backOrder, noDelivery bool
	for _, s := range line.Shares {
		qty := s.Quantity
		if qty < 0 {
			qty = 0
		}
		if IsImmediate(s.Type) {
			res.AvailableQuantity += qty
		}
		if IsBackOrder(s.Type) {
			backOrder = true
		}
		if IsNoDelivery(s.Type) {
			noDelivery = true
		}
		if s.NextDelivery != nil && (res.NextDelivery == nil || s.NextDelivery.Before(*res.NextDelivery)) {
			t := *s.NextDelivery
			res.NextDelivery = &t
		}
	}

	switch {
	case len(line.Shares) == 0:
	case res.AvailableQuantity >= line.Ordered:
		res.Status = StatusAvailableNow
	case res.AvailableQuantity > 0:
		res.Status = StatusPartial
	case backOrder:
		res.Status = StatusBackOrder
	case noDelivery:
		res.Status = StatusUnavailable
	}
	return res
}

// IsImmediate reports whether a share type tag means "deliverable now".
func IsImmediate(tag string) bool {
	t := strings.ToLower(tag)
	return containsAny(t, DeliveryKeywords) &&
		!containsAny(t, NoDeliveryKeywords) &&
		!containsAny(t, BackOrderKeywords)
}

// IsBackOrder reports whether a share type tag announces a later delivery.
func IsBackOrder(tag string) bool {
	return containsAny(strings.ToLower(tag), BackOrderKeywords)
}

// IsNoDelivery reports whether a share type tag rules out delivery.
func IsNoDelivery(tag string) bool {
	return containsAny(strings.ToLower(tag), NoDeliveryKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// FromPosition maps a query-style position onto the same status space so
// both operations can share one cache.
func FromPosition(p message.AvailabilityPosition) Result {
	res := Result{
		AvailableQuantity: p.Quantity,
		Reason:            p.Hint,
		Type:              p.LeadTime,
	}
	if res.AvailableQuantity < 0 {
		res.AvailableQuantity = 0
	}
	switch p.Status() {
	case message.PositionAvailable:
		res.Status = StatusAvailableNow
	case message.PositionPartial:
		res.Status = StatusPartial
	default:
		res.Status = StatusUnavailable
	}
	return res
}
