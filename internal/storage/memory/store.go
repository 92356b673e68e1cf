// Package memory implements storage interfaces with process-local maps
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-msv3/internal/storage"
)

// Store implements storage.Store in memory. Records are copied on the way
// in and out so callers never share state with the store.
type Store struct {
	mu           sync.RWMutex
	wholesalers  map[string]storage.Wholesaler
	availability map[string]storage.AvailabilityRecord
	logs         []storage.RequestLog
	routes       map[string]storage.Route
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		wholesalers:  make(map[string]storage.Wholesaler),
		availability: make(map[string]storage.AvailabilityRecord),
		routes:       make(map[string]storage.Route),
	}
}

func key(a, b string) string {
	return a + "\x00" + b
}

// Close is a no-op
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// WholesalerStore implementation

func (s *Store) GetWholesaler(ctx context.Context, id string) (*storage.Wholesaler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wholesalers[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *Store) SaveWholesaler(ctx context.Context, w *storage.Wholesaler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if prev, ok := s.wholesalers[w.ID]; ok {
		w.CreatedAt = prev.CreatedAt
	} else if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	s.wholesalers[w.ID] = *w
	return nil
}

func (s *Store) ListWholesalers(ctx context.Context, filter *storage.WholesalerFilter) ([]*storage.Wholesaler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Wholesaler
	for _, w := range s.wholesalers {
		if filter != nil && filter.ActiveOnly && !w.Active {
			continue
		}
		w := w
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CacheStore implementation

func (s *Store) SaveAvailability(ctx context.Context, rec *storage.AvailabilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability[key(rec.ItemID, rec.WholesalerID)] = *rec
	return nil
}

func (s *Store) GetAvailability(ctx context.Context, itemID, wholesalerID string) (*storage.AvailabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.availability[key(itemID, wholesalerID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) ListAvailability(ctx context.Context, validAt time.Time) ([]*storage.AvailabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.AvailabilityRecord
	for _, rec := range s.availability {
		if !validAt.Before(rec.ValidUntil) {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	return out, nil
}

// RequestLogStore implementation

func (s *Store) AppendRequestLog(ctx context.Context, entry *storage.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *Store) ListRequestLogs(ctx context.Context, filter *storage.RequestLogFilter) ([]*storage.RequestLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.RequestLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		e := s.logs[i]
		if filter != nil {
			if filter.WholesalerID != "" && e.WholesalerID != filter.WholesalerID {
				continue
			}
			if filter.Action != "" && e.Action != filter.Action {
				continue
			}
			if filter.FaultsOnly && !e.Fault {
				continue
			}
			if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
				continue
			}
		}
		out = append(out, &e)
		if filter != nil && filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// RouteStore implementation

func (s *Store) GetRoute(ctx context.Context, wholesalerID, action string) (*storage.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routes[key(wholesalerID, action)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) SaveRoute(ctx context.Context, route *storage.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	route.UpdatedAt = time.Now()
	s.routes[key(route.WholesalerID, route.Action)] = *route
	return nil
}
