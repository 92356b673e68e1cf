// Package mongodb implements storage interfaces using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-msv3/internal/storage"
)

// Store implements storage.Store using MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// Collections
	wholesalers  *mongo.Collection
	availability *mongo.Collection
	requestLogs  *mongo.Collection
	routes       *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string

	// RequestLogTTL lets MongoDB expire audit entries. Zero keeps them
	// until an external job prunes them.
	RequestLogTTL time.Duration
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, errors.New("mongodb URI is required")
	}
	database := cfg.Database
	if database == "" {
		database = "msv3"
	}

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:       client,
		db:           db,
		wholesalers:  db.Collection("wholesalers"),
		availability: db.Collection("availability_cache"),
		requestLogs:  db.Collection("request_logs"),
		routes:       db.Collection("wholesaler_routes"),
	}

	if err := s.createIndexes(ctx, cfg.RequestLogTTL); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context, logTTL time.Duration) error {
	_, err := s.wholesalers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "priority", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating wholesaler indexes: %w", err)
	}

	_, err = s.availability.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "wholesaler_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "valid_until", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating availability indexes: %w", err)
	}

	logIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "wholesaler_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "fault", Value: 1}}},
	}
	if logTTL > 0 {
		logIndexes = append(logIndexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(logTTL.Seconds())),
		})
	}
	if _, err = s.requestLogs.Indexes().CreateMany(ctx, logIndexes); err != nil {
		return fmt.Errorf("creating request log indexes: %w", err)
	}

	_, err = s.routes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "wholesaler_id", Value: 1}, {Key: "action", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("creating route indexes: %w", err)
	}

	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// WholesalerStore implementation

func (s *Store) GetWholesaler(ctx context.Context, id string) (*storage.Wholesaler, error) {
	var w storage.Wholesaler
	err := s.wholesalers.FindOne(ctx, bson.M{"_id": id}).Decode(&w)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) SaveWholesaler(ctx context.Context, w *storage.Wholesaler) error {
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	_, err := s.wholesalers.ReplaceOne(ctx, bson.M{"_id": w.ID}, w, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) ListWholesalers(ctx context.Context, filter *storage.WholesalerFilter) ([]*storage.Wholesaler, error) {
	query := bson.M{}
	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.ActiveOnly {
			query["active"] = true
		}
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
	}

	cursor, err := s.wholesalers.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var wholesalers []*storage.Wholesaler
	if err := cursor.All(ctx, &wholesalers); err != nil {
		return nil, err
	}
	return wholesalers, nil
}

// CacheStore implementation

func (s *Store) SaveAvailability(ctx context.Context, rec *storage.AvailabilityRecord) error {
	_, err := s.availability.ReplaceOne(ctx,
		bson.M{"item_id": rec.ItemID, "wholesaler_id": rec.WholesalerID},
		rec,
		options.Replace().SetUpsert(true))
	return err
}

func (s *Store) GetAvailability(ctx context.Context, itemID, wholesalerID string) (*storage.AvailabilityRecord, error) {
	var rec storage.AvailabilityRecord
	err := s.availability.FindOne(ctx, bson.M{"item_id": itemID, "wholesaler_id": wholesalerID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListAvailability(ctx context.Context, validAt time.Time) ([]*storage.AvailabilityRecord, error) {
	cursor, err := s.availability.Find(ctx, bson.M{"valid_until": bson.M{"$gt": validAt}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recs []*storage.AvailabilityRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// RequestLogStore implementation

func (s *Store) AppendRequestLog(ctx context.Context, entry *storage.RequestLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.requestLogs.InsertOne(ctx, entry)
	return err
}

func (s *Store) ListRequestLogs(ctx context.Context, filter *storage.RequestLogFilter) ([]*storage.RequestLog, error) {
	query := bson.M{}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.WholesalerID != "" {
			query["wholesaler_id"] = filter.WholesalerID
		}
		if filter.Action != "" {
			query["action"] = filter.Action
		}
		if filter.FaultsOnly {
			query["fault"] = true
		}
		if filter.Since != nil {
			query["created_at"] = bson.M{"$gte": *filter.Since}
		}
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
	}

	cursor, err := s.requestLogs.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*storage.RequestLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// RouteStore implementation

func (s *Store) GetRoute(ctx context.Context, wholesalerID, action string) (*storage.Route, error) {
	var r storage.Route
	err := s.routes.FindOne(ctx, bson.M{"wholesaler_id": wholesalerID, "action": action}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SaveRoute(ctx context.Context, route *storage.Route) error {
	route.UpdatedAt = time.Now()
	_, err := s.routes.ReplaceOne(ctx,
		bson.M{"wholesaler_id": route.WholesalerID, "action": route.Action},
		route,
		options.Replace().SetUpsert(true))
	return err
}
