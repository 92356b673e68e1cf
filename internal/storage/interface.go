// Package storage provides persistence interfaces and implementations for
// the MSV3 client.
//
// # Interface Design
//
// The storage layer is organized into focused interfaces:
//
//   - [WholesalerStore]: configured wholesaler endpoints
//   - [CacheStore]: last known availability per item and wholesaler
//   - [RequestLogStore]: append-only audit trail of outbound calls
//   - [RouteStore]: last successful URL and content type per wholesaler
//
// The [Store] interface combines all sub-stores for convenience.
//
// # Implementations
//
//   - memory: process-local maps, used by tests and the CLI default
//   - mongodb: MongoDB collections with unique indexes on natural keys
//   - postgres: PostgreSQL tables accessed through pgx
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"time"
)

// Store is the main storage interface combining all sub-stores
type Store interface {
	WholesalerStore
	CacheStore
	RequestLogStore
	RouteStore

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}

// WholesalerStore manages wholesaler endpoint configuration
type WholesalerStore interface {
	// GetWholesaler retrieves a wholesaler by ID. It returns nil, nil when
	// no wholesaler matches.
	GetWholesaler(ctx context.Context, id string) (*Wholesaler, error)

	// SaveWholesaler creates or replaces a wholesaler
	SaveWholesaler(ctx context.Context, w *Wholesaler) error

	// ListWholesalers returns wholesalers ordered by priority
	ListWholesalers(ctx context.Context, filter *WholesalerFilter) ([]*Wholesaler, error)
}

// CacheStore persists availability cache entries
type CacheStore interface {
	// SaveAvailability creates or replaces the entry for its item and wholesaler
	SaveAvailability(ctx context.Context, rec *AvailabilityRecord) error

	// GetAvailability returns the stored entry regardless of expiry, or nil
	GetAvailability(ctx context.Context, itemID, wholesalerID string) (*AvailabilityRecord, error)

	// ListAvailability returns entries still valid at the given time
	ListAvailability(ctx context.Context, validAt time.Time) ([]*AvailabilityRecord, error)
}

// RequestLogStore persists the audit trail
type RequestLogStore interface {
	// AppendRequestLog stores a new entry
	AppendRequestLog(ctx context.Context, entry *RequestLog) error

	// ListRequestLogs returns entries newest first
	ListRequestLogs(ctx context.Context, filter *RequestLogFilter) ([]*RequestLog, error)
}

// RouteStore persists the last successful route per wholesaler and action
type RouteStore interface {
	// GetRoute returns the remembered route, or nil
	GetRoute(ctx context.Context, wholesalerID, action string) (*Route, error)

	// SaveRoute creates or replaces the route for its wholesaler and action
	SaveRoute(ctx context.Context, route *Route) error
}

// Domain models

// Wholesaler is a configured MSV3 endpoint
type Wholesaler struct {
	ID             string    `bson:"_id" json:"id" db:"id"`
	Name           string    `bson:"name" json:"name" db:"name"`
	Version        int       `bson:"version" json:"version" db:"version"`
	BaseURL        string    `bson:"base_url" json:"baseUrl" db:"base_url"`
	ClientSystem   string    `bson:"client_system,omitempty" json:"clientSystem,omitempty" db:"client_system"`
	User           string    `bson:"user" json:"user" db:"username"`
	Secret         string    `bson:"secret" json:"-" db:"secret"`
	CustomerNumber string    `bson:"customer_number,omitempty" json:"customerNumber,omitempty" db:"customer_number"`
	Branch         string    `bson:"branch,omitempty" json:"branch,omitempty" db:"branch"`
	Priority       int       `bson:"priority" json:"priority" db:"priority"`
	Active         bool      `bson:"active" json:"active" db:"active"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt" db:"updated_at"`
}

type WholesalerFilter struct {
	ActiveOnly bool
	Limit      int
}

// AvailabilityRecord is a persisted availability cache entry
type AvailabilityRecord struct {
	ItemID            string     `bson:"item_id" json:"itemId" db:"item_id"`
	WholesalerID      string     `bson:"wholesaler_id" json:"wholesalerId" db:"wholesaler_id"`
	RequestedQuantity int        `bson:"requested_quantity" json:"requestedQuantity" db:"requested_quantity"`
	Status            string     `bson:"status" json:"status" db:"status"`
	AvailableQuantity int        `bson:"available_quantity" json:"availableQuantity" db:"available_quantity"`
	Reason            string     `bson:"reason,omitempty" json:"reason,omitempty" db:"reason"`
	NextDelivery      *time.Time `bson:"next_delivery,omitempty" json:"nextDelivery,omitempty" db:"next_delivery"`
	DeliveryType      string     `bson:"delivery_type,omitempty" json:"deliveryType,omitempty" db:"delivery_type"`
	CheckedAt         time.Time  `bson:"checked_at" json:"checkedAt" db:"checked_at"`
	ValidUntil        time.Time  `bson:"valid_until" json:"validUntil" db:"valid_until"`
}

// RequestLog is one audited outbound exchange
type RequestLog struct {
	ID           string    `bson:"_id" json:"id" db:"id"`
	WholesalerID string    `bson:"wholesaler_id,omitempty" json:"wholesalerId,omitempty" db:"wholesaler_id"`
	Endpoint     string    `bson:"endpoint" json:"endpoint" db:"endpoint"`
	Action       string    `bson:"action" json:"action" db:"action"`
	HTTPStatus   int       `bson:"http_status" json:"httpStatus" db:"http_status"`
	Fault        bool      `bson:"fault" json:"fault" db:"fault"`
	Request      string    `bson:"request,omitempty" json:"request,omitempty" db:"request"`
	Response     string    `bson:"response,omitempty" json:"response,omitempty" db:"response"`
	Error        string    `bson:"error,omitempty" json:"error,omitempty" db:"error"`
	DurationMS   int64     `bson:"duration_ms" json:"durationMs" db:"duration_ms"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt" db:"created_at"`
}

type RequestLogFilter struct {
	WholesalerID string
	Action       string
	FaultsOnly   bool
	Since        *time.Time
	Limit        int
}

// Route is the last URL and content type a wholesaler accepted for an action
type Route struct {
	WholesalerID string    `bson:"wholesaler_id" json:"wholesalerId" db:"wholesaler_id"`
	Action       string    `bson:"action" json:"action" db:"action"`
	URL          string    `bson:"url" json:"url" db:"url"`
	ContentType  string    `bson:"content_type" json:"contentType" db:"content_type"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt" db:"updated_at"`
}
