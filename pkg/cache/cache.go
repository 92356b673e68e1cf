package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sirosfoundation/go-msv3/pkg/availability"
)

// DefaultTTL is used when Upsert is called without a TTL.
const DefaultTTL = 5 * time.Minute

// Entry is one cached availability result.
type Entry struct {
	ItemID            string
	WholesalerID      string
	RequestedQuantity int
	Status            availability.StatusCode
	AvailableQuantity int
	Reason            string
	NextDelivery      *time.Time
	DeliveryType      string
	CheckedAt         time.Time
	ValidUntil        time.Time
}

// ValidAt reports whether the entry is still valid at t.
func (e *Entry) ValidAt(t time.Time) bool {
	return t.Before(e.ValidUntil)
}

func (e Entry) clone() *Entry {
	if e.NextDelivery != nil {
		t := *e.NextDelivery
		e.NextDelivery = &t
	}
	return &e
}

// Store persists entries beyond the lifetime of the process.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Load(ctx context.Context, validAt time.Time) ([]Entry, error)
}

// Cache is an in-memory availability cache safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry // item -> wholesaler -> entry

	ttl    time.Duration
	now    func() time.Time
	store  Store
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the default time-to-live.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStore writes every upsert through to s.
func WithStore(s Store) Option {
	return func(c *Cache) {
		c.store = s
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Upsert stores a derived result. A ttl of zero uses the cache default.
// The in-memory write always succeeds; the returned error only reports a
// failed write-through and may be ignored.
func (c *Cache) Upsert(ctx context.Context, itemID, wholesalerID string, requested int, res availability.Result, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	e := Entry{
		ItemID:            itemID,
		WholesalerID:      wholesalerID,
		RequestedQuantity: requested,
		Status:            res.Status,
		AvailableQuantity: res.AvailableQuantity,
		Reason:            res.Reason,
		DeliveryType:      res.Type,
		CheckedAt:         now,
		ValidUntil:        now.Add(ttl),
	}
	if res.NextDelivery != nil {
		t := *res.NextDelivery
		e.NextDelivery = &t
	}

	c.put(e)

	if c.store == nil {
		return nil
	}
	if err := c.store.Save(ctx, e); err != nil {
		c.logger.Warn("writing availability through to store failed",
			"item", itemID, "wholesaler", wholesalerID, "error", err)
		return err
	}
	return nil
}

func (c *Cache) put(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byWholesaler, ok := c.entries[e.ItemID]
	if !ok {
		byWholesaler = make(map[string]Entry)
		c.entries[e.ItemID] = byWholesaler
	}
	byWholesaler[e.WholesalerID] = e
}

// Get returns a valid entry. With an empty wholesalerID it returns the most
// recently checked valid entry for the item across all wholesalers.
func (c *Cache) Get(itemID, wholesalerID string) (*Entry, bool) {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	byWholesaler, ok := c.entries[itemID]
	if !ok {
		return nil, false
	}

	if wholesalerID != "" {
		e, ok := byWholesaler[wholesalerID]
		if !ok || !e.ValidAt(now) {
			return nil, false
		}
		return e.clone(), true
	}

	var best *Entry
	for _, e := range byWholesaler {
		if !e.ValidAt(now) {
			continue
		}
		if best == nil || e.CheckedAt.After(best.CheckedAt) {
			e := e
			best = &e
		}
	}
	if best == nil {
		return nil, false
	}
	return best.clone(), true
}

// Peek returns the stored entry regardless of expiry.
func (c *Cache) Peek(itemID, wholesalerID string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[itemID][wholesalerID]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, byWholesaler := range c.entries {
		n += len(byWholesaler)
	}
	return n
}

// Warm loads the entries that are still valid from the store. Entries
// already in memory and checked later are kept.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	entries, err := c.store.Load(ctx, c.now())
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, e := range entries {
		byWholesaler, ok := c.entries[e.ItemID]
		if !ok {
			byWholesaler = make(map[string]Entry)
			c.entries[e.ItemID] = byWholesaler
		}
		if cur, ok := byWholesaler[e.WholesalerID]; ok && !e.CheckedAt.After(cur.CheckedAt) {
			continue
		}
		byWholesaler[e.WholesalerID] = e
		loaded++
	}
	return loaded, nil
}
