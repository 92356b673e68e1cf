package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-msv3/pkg/audit"
	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/cache"
	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

// ErrWholesalerNotFound is returned when no wholesaler matches an id.
var ErrWholesalerNotFound = errors.New("wholesaler not found")

// CacheBackend exposes a CacheStore as cache.Store.
type CacheBackend struct {
	Store CacheStore
}

// Save implements cache.Store.
func (b CacheBackend) Save(ctx context.Context, e cache.Entry) error {
	return b.Store.SaveAvailability(ctx, &AvailabilityRecord{
		ItemID:            e.ItemID,
		WholesalerID:      e.WholesalerID,
		RequestedQuantity: e.RequestedQuantity,
		Status:            string(e.Status),
		AvailableQuantity: e.AvailableQuantity,
		Reason:            e.Reason,
		NextDelivery:      e.NextDelivery,
		DeliveryType:      e.DeliveryType,
		CheckedAt:         e.CheckedAt,
		ValidUntil:        e.ValidUntil,
	})
}

// Load implements cache.Store.
func (b CacheBackend) Load(ctx context.Context, validAt time.Time) ([]cache.Entry, error) {
	recs, err := b.Store.ListAvailability(ctx, validAt)
	if err != nil {
		return nil, err
	}
	out := make([]cache.Entry, 0, len(recs))
	for _, r := range recs {
		out = append(out, cache.Entry{
			ItemID:            r.ItemID,
			WholesalerID:      r.WholesalerID,
			RequestedQuantity: r.RequestedQuantity,
			Status:            availability.StatusCode(r.Status),
			AvailableQuantity: r.AvailableQuantity,
			Reason:            r.Reason,
			NextDelivery:      r.NextDelivery,
			DeliveryType:      r.DeliveryType,
			CheckedAt:         r.CheckedAt,
			ValidUntil:        r.ValidUntil,
		})
	}
	return out, nil
}

// AuditSink exposes a RequestLogStore as audit.Sink.
type AuditSink struct {
	Store RequestLogStore
}

// Write implements audit.Sink.
func (s AuditSink) Write(ctx context.Context, e audit.Entry) error {
	return s.Store.AppendRequestLog(ctx, &RequestLog{
		ID:           e.ID,
		WholesalerID: e.WholesalerID,
		Endpoint:     e.Endpoint,
		Action:       e.Action,
		HTTPStatus:   e.HTTPStatus,
		Fault:        e.Fault,
		Request:      e.Request,
		Response:     e.Response,
		Error:        e.Error,
		DurationMS:   e.Duration.Milliseconds(),
		CreatedAt:    e.CreatedAt,
	})
}

// RouteMemory exposes a RouteStore as transport.RouteMemory. Store errors
// degrade to a miss.
type RouteMemory struct {
	Store  RouteStore
	Logger *slog.Logger
}

// Recall implements transport.RouteMemory.
func (m RouteMemory) Recall(ctx context.Context, wholesalerID, action string) (transport.Route, bool) {
	r, err := m.Store.GetRoute(ctx, wholesalerID, action)
	if err != nil {
		m.logger().Warn("loading route failed", "wholesaler", wholesalerID, "action", action, "error", err)
		return transport.Route{}, false
	}
	if r == nil {
		return transport.Route{}, false
	}
	return transport.Route{URL: r.URL, ContentType: r.ContentType}, true
}

// Remember implements transport.RouteMemory.
func (m RouteMemory) Remember(ctx context.Context, wholesalerID, action string, route transport.Route) {
	err := m.Store.SaveRoute(ctx, &Route{
		WholesalerID: wholesalerID,
		Action:       action,
		URL:          route.URL,
		ContentType:  route.ContentType,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		m.logger().Warn("saving route failed", "wholesaler", wholesalerID, "action", action, "error", err)
	}
}

func (m RouteMemory) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Endpoints resolves wholesaler ids through a WholesalerStore.
type Endpoints struct {
	Store WholesalerStore
}

// Endpoint returns the endpoint of an active wholesaler.
func (e Endpoints) Endpoint(ctx context.Context, id string) (*message.Endpoint, error) {
	w, err := e.Store.GetWholesaler(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil || !w.Active {
		return nil, fmt.Errorf("%w: %s", ErrWholesalerNotFound, id)
	}
	return w.Endpoint(), nil
}

// Active returns the endpoints of all active wholesalers ordered by priority.
func (e Endpoints) Active(ctx context.Context) ([]*message.Endpoint, error) {
	list, err := e.Store.ListWholesalers(ctx, &WholesalerFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]*message.Endpoint, 0, len(list))
	for _, w := range list {
		out = append(out, w.Endpoint())
	}
	return out, nil
}

// Endpoint converts the stored wholesaler into a message.Endpoint.
func (w *Wholesaler) Endpoint() *message.Endpoint {
	return &message.Endpoint{
		ID:             w.ID,
		Name:           w.Name,
		Version:        w.Version,
		BaseURL:        w.BaseURL,
		ClientSystem:   w.ClientSystem,
		User:           w.User,
		Secret:         w.Secret,
		CustomerNumber: w.CustomerNumber,
		Branch:         w.Branch,
		Priority:       w.Priority,
	}
}
