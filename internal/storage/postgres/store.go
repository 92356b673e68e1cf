// Package postgres implements storage interfaces using PostgreSQL via pgx
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sirosfoundation/go-msv3/internal/storage"
)

//go:embed schema.sql
var schema string

// Store implements storage.Store using a pgx connection pool
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Config holds PostgreSQL connection settings
type Config struct {
	URL      string
	MaxConns int32

	// Migrate creates the tables when they do not exist yet
	Migrate bool
}

// NewStore creates a new PostgreSQL store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("postgres URL is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies the embedded schema
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the pool
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WholesalerStore implementation

const wholesalerColumns = `id, name, version, base_url, client_system, username, secret,
	customer_number, branch, priority, active, created_at, updated_at`

func (s *Store) GetWholesaler(ctx context.Context, id string) (*storage.Wholesaler, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+wholesalerColumns+` FROM wholesalers WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get wholesaler: %w", err)
	}
	w, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[storage.Wholesaler])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wholesaler: %w", err)
	}
	return w, nil
}

func (s *Store) SaveWholesaler(ctx context.Context, w *storage.Wholesaler) error {
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO wholesalers (`+wholesalerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, version = EXCLUDED.version, base_url = EXCLUDED.base_url,
			client_system = EXCLUDED.client_system, username = EXCLUDED.username, secret = EXCLUDED.secret,
			customer_number = EXCLUDED.customer_number, branch = EXCLUDED.branch,
			priority = EXCLUDED.priority, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`,
		w.ID, w.Name, w.Version, w.BaseURL, w.ClientSystem, w.User, w.Secret,
		w.CustomerNumber, w.Branch, w.Priority, w.Active, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save wholesaler: %w", err)
	}
	return nil
}

func (s *Store) ListWholesalers(ctx context.Context, filter *storage.WholesalerFilter) ([]*storage.Wholesaler, error) {
	query := `SELECT ` + wholesalerColumns + ` FROM wholesalers`
	var args []any
	if filter != nil && filter.ActiveOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY priority, id`
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wholesalers: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[storage.Wholesaler])
	if err != nil {
		return nil, fmt.Errorf("list wholesalers: %w", err)
	}
	return list, nil
}

// CacheStore implementation

const availabilityColumns = `item_id, wholesaler_id, requested_quantity, status, available_quantity,
	reason, next_delivery, delivery_type, checked_at, valid_until`

func (s *Store) SaveAvailability(ctx context.Context, rec *storage.AvailabilityRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO availability_cache (`+availabilityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (item_id, wholesaler_id) DO UPDATE SET
			requested_quantity = EXCLUDED.requested_quantity, status = EXCLUDED.status,
			available_quantity = EXCLUDED.available_quantity, reason = EXCLUDED.reason,
			next_delivery = EXCLUDED.next_delivery, delivery_type = EXCLUDED.delivery_type,
			checked_at = EXCLUDED.checked_at, valid_until = EXCLUDED.valid_until`,
		rec.ItemID, rec.WholesalerID, rec.RequestedQuantity, rec.Status, rec.AvailableQuantity,
		rec.Reason, rec.NextDelivery, rec.DeliveryType, rec.CheckedAt, rec.ValidUntil)
	if err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	return nil
}

func (s *Store) GetAvailability(ctx context.Context, itemID, wholesalerID string) (*storage.AvailabilityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+availabilityColumns+` FROM availability_cache WHERE item_id = $1 AND wholesaler_id = $2`,
		itemID, wholesalerID)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[storage.AvailabilityRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return rec, nil
}

func (s *Store) ListAvailability(ctx context.Context, validAt time.Time) ([]*storage.AvailabilityRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+availabilityColumns+` FROM availability_cache WHERE valid_until > $1`, validAt)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[storage.AvailabilityRecord])
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return recs, nil
}

// RequestLogStore implementation

const requestLogColumns = `id, wholesaler_id, endpoint, action, http_status, fault,
	request, response, error, duration_ms, created_at`

func (s *Store) AppendRequestLog(ctx context.Context, e *storage.RequestLog) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO request_logs (`+requestLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.WholesalerID, e.Endpoint, e.Action, e.HTTPStatus, e.Fault,
		e.Request, e.Response, e.Error, e.DurationMS, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}

func (s *Store) ListRequestLogs(ctx context.Context, filter *storage.RequestLogFilter) ([]*storage.RequestLog, error) {
	var (
		where []string
		args  []any
	)
	if filter != nil {
		if filter.WholesalerID != "" {
			args = append(args, filter.WholesalerID)
			where = append(where, fmt.Sprintf("wholesaler_id = $%d", len(args)))
		}
		if filter.Action != "" {
			args = append(args, filter.Action)
			where = append(where, fmt.Sprintf("action = $%d", len(args)))
		}
		if filter.FaultsOnly {
			where = append(where, "fault")
		}
		if filter.Since != nil {
			args = append(args, *filter.Since)
			where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
		}
	}

	query := `SELECT ` + requestLogColumns + ` FROM request_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[storage.RequestLog])
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	return entries, nil
}

// RouteStore implementation

func (s *Store) GetRoute(ctx context.Context, wholesalerID, action string) (*storage.Route, error) {
	var r storage.Route
	err := s.pool.QueryRow(ctx, `
		SELECT wholesaler_id, action, url, content_type, updated_at
		FROM wholesaler_routes WHERE wholesaler_id = $1 AND action = $2`,
		wholesalerID, action).Scan(&r.WholesalerID, &r.Action, &r.URL, &r.ContentType, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &r, nil
}

func (s *Store) SaveRoute(ctx context.Context, route *storage.Route) error {
	route.UpdatedAt = time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wholesaler_routes (wholesaler_id, action, url, content_type, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wholesaler_id, action) DO UPDATE SET
			url = EXCLUDED.url, content_type = EXCLUDED.content_type, updated_at = EXCLUDED.updated_at`,
		route.WholesalerID, route.Action, route.URL, route.ContentType, route.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save route: %w", err)
	}
	return nil
}
