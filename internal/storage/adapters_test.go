package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-msv3/internal/storage"
	"github.com/sirosfoundation/go-msv3/internal/storage/memory"
	"github.com/sirosfoundation/go-msv3/pkg/audit"
	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/cache"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

func TestCacheBackend_WriteThroughAndWarm(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	next := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	writer := cache.New(cache.WithStore(storage.CacheBackend{Store: store}))
	require.NoError(t, writer.Upsert(ctx, "01234567", "ws-1", 2, availability.Result{
		Status:       availability.StatusBackOrder,
		Reason:       "LIEFERENGPASS",
		Type:         "Nachlieferung",
		NextDelivery: &next,
	}, 0))

	rec, err := store.GetAvailability(ctx, "01234567", "ws-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, string(availability.StatusBackOrder), rec.Status)
	assert.Equal(t, "Nachlieferung", rec.DeliveryType)

	reader := cache.New(cache.WithStore(storage.CacheBackend{Store: store}))
	n, err := reader.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, ok := reader.Get("01234567", "ws-1")
	require.True(t, ok)
	assert.Equal(t, availability.StatusBackOrder, e.Status)
	assert.Equal(t, 2, e.RequestedQuantity)
	require.NotNil(t, e.NextDelivery)
	assert.True(t, e.NextDelivery.Equal(next))
}

func TestAuditSink(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	logger := audit.NewLogger(storage.AuditSink{Store: store}, audit.WithMaxBody(4))

	require.NoError(t, logger.Record(ctx, audit.Entry{
		WholesalerID: "ws-1",
		Endpoint:     "https://ws.example/msv3",
		Action:       "bestellen",
		HTTPStatus:   500,
		Fault:        true,
		Request:      "<request/>",
		Duration:     250 * time.Millisecond,
	}))

	logs, err := store.ListRequestLogs(ctx, &storage.RequestLogFilter{FaultsOnly: true})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.Equal(t, "<req", logs[0].Request)
	assert.EqualValues(t, 250, logs[0].DurationMS)
	assert.False(t, logs[0].CreatedAt.IsZero())
}

func TestRouteMemory(t *testing.T) {
	ctx := context.Background()
	mem := storage.RouteMemory{Store: memory.NewStore()}

	_, ok := mem.Recall(ctx, "ws-1", "bestellen")
	assert.False(t, ok)

	want := transport.Route{URL: "https://ws.example/v2.0/bestellen", ContentType: transport.ContentTypeSOAP11}
	mem.Remember(ctx, "ws-1", "bestellen", want)

	got, ok := mem.Recall(ctx, "ws-1", "bestellen")
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = mem.Recall(ctx, "ws-1", "VerfuegbarkeitAbfragen")
	assert.False(t, ok)
}

func TestEndpoints(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.SaveWholesaler(ctx, &storage.Wholesaler{
		ID: "ws-1", Version: 2, BaseURL: "https://ws.example", User: "u", Secret: "s", Priority: 2, Active: true,
	}))
	require.NoError(t, store.SaveWholesaler(ctx, &storage.Wholesaler{ID: "ws-2", Version: 1, Priority: 1, Active: true}))
	require.NoError(t, store.SaveWholesaler(ctx, &storage.Wholesaler{ID: "off", Version: 2}))

	src := storage.Endpoints{Store: store}

	ep, err := src.Endpoint(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "https://ws.example", ep.BaseURL)
	assert.Equal(t, "s", ep.Secret)

	_, err = src.Endpoint(ctx, "off")
	assert.ErrorIs(t, err, storage.ErrWholesalerNotFound)
	_, err = src.Endpoint(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrWholesalerNotFound)

	active, err := src.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "ws-2", active[0].ID)
}
