package message

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Endpoint describes one wholesaler's MSV3 service as configured for the
// pharmacy. It is read-only for the duration of a call.
type Endpoint struct {
	ID             string
	Name           string
	Version        int
	BaseURL        string
	ClientSystem   string
	User           string
	Secret         string
	CustomerNumber string
	Branch         string
	Priority       int
}

// DefaultClientSystem is sent as clientSoftwareKennung when an endpoint
// does not configure its own identifier.
const DefaultClientSystem = "go-msv3"

// Namespace returns the endpoint's MSV3 namespace.
func (e *Endpoint) Namespace() (string, error) {
	return Namespace(e.Version)
}

// Validate checks the fields every exchange depends on.
func (e *Endpoint) Validate() error {
	if e == nil {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(e.BaseURL) == "" {
		return fmt.Errorf("endpoint %s: base URL is required", e.ID)
	}
	if _, err := e.Namespace(); err != nil {
		return fmt.Errorf("endpoint %s: %w", e.ID, err)
	}
	return nil
}

// AvailabilityItem is one line of an availability query.
type AvailabilityItem struct {
	ItemID        string
	Quantity      int
	CorrelationID string
	MinShelfLife  *time.Time
}

// PositionStatus is the coarse state of a query-style availability result.
type PositionStatus string

const (
	PositionAvailable   PositionStatus = "AVAILABLE"
	PositionPartial     PositionStatus = "PARTIAL"
	PositionUnavailable PositionStatus = "UNAVAILABLE"
)

// AvailabilityPosition is the wholesaler's answer for one queried item.
type AvailabilityPosition struct {
	ItemID        string
	CorrelationID string
	Requested     int
	Quantity      int
	PurchasePrice decimal.NullDecimal
	RetailPrice   decimal.NullDecimal
	PharmacyPrice decimal.NullDecimal
	Deliverable   bool
	Hint          string
	Batch         string
	Expiry        *time.Time
	LeadTime      string
}

// Status compares the available quantity against the requested one.
func (p *AvailabilityPosition) Status() PositionStatus {
	switch {
	case p.Quantity > 0 && p.Quantity >= p.Requested:
		return PositionAvailable
	case p.Quantity <= 0 && p.Requested <= 0 && p.Deliverable:
		return PositionAvailable
	case p.Quantity > 0:
		return PositionPartial
	default:
		return PositionUnavailable
	}
}

// OrderPosition is one line of an order.
type OrderPosition struct {
	ItemID              string
	Quantity            int
	MinShelfLife        *time.Time
	DeliveryInstruction string
}

// OrderResult is the wholesaler's acknowledgment of a submitted order.
type OrderResult struct {
	OrderID       string
	Status        string
	Success       bool
	FailureReason string
}
