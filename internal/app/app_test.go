package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-msv3/internal/config"
	"github.com/sirosfoundation/go-msv3/internal/storage"
	"github.com/sirosfoundation/go-msv3/internal/storage/memory"
	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

const answer = `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>
<m:VerfuegbarkeitAbfragenResponse xmlns:m="urn:msv3:v2">
  <m:Artikel><m:PZN>01234567</m:PZN><m:Anfragemenge>1</m:Anfragemenge><m:VerfuegbareMenge>1</m:VerfuegbareMenge></m:Artikel>
</m:VerfuegbarkeitAbfragenResponse></soap:Body></soap:Envelope>`

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Wholesalers = []config.WholesalerConfig{
		{ID: "ws-1", Version: 2, BaseURL: baseURL, User: "apotheke", Secret: "geheim", Priority: 1},
		{ID: "ws-off", Version: 2, BaseURL: baseURL, User: "apotheke", Disabled: true},
	}
	cfg.Cache.Persist = true
	cfg.Audit.File.Path = filepath.Join(t.TempDir(), "audit.log")
	cfg.Client.RememberRoutes = true
	return cfg
}

func TestNew_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/msv3/VerfuegbarkeitAbfragen" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(answer))
	}))
	defer server.Close()

	ctx := context.Background()
	store := memory.NewStore()
	cfg := testConfig(t, server.URL+"/msv3")

	a, err := New(ctx, cfg, Options{Store: store})
	require.NoError(t, err)

	eps, err := a.Wholesalers(ctx)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "ws-1", eps[0].ID)

	_, err = a.Wholesaler(ctx, "ws-off")
	assert.ErrorIs(t, err, storage.ErrWholesalerNotFound)

	ep, err := a.Wholesaler(ctx, "ws-1")
	require.NoError(t, err)
	_, err = a.Client.QueryAvailability(ctx, ep, []message.AvailabilityItem{{ItemID: "01234567", Quantity: 1}})
	require.NoError(t, err)

	rec, err := store.GetAvailability(ctx, "01234567", "ws-1")
	require.NoError(t, err)
	require.NotNil(t, rec, "cache entries are written through")

	logs, err := store.ListRequestLogs(ctx, &storage.RequestLogFilter{WholesalerID: "ws-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
	for _, l := range logs {
		assert.NotContains(t, l.Request, "geheim")
	}

	route, err := store.GetRoute(ctx, "ws-1", message.ActionAvailability)
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, server.URL+"/msv3/VerfuegbarkeitAbfragen", route.URL)

	require.NoError(t, a.Close(ctx))
	data, err := os.ReadFile(cfg.Audit.File.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "VerfuegbarkeitAbfragen")
}

func TestNew_DefaultConfigAuditsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2.0/VerfuegbarkeitAbfragen" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(answer))
	}))
	defer server.Close()

	ctx := context.Background()
	cfg := config.Default()
	cfg.Wholesalers = []config.WholesalerConfig{{ID: "ws-1", Version: 2, BaseURL: server.URL, User: "apotheke"}}

	a, err := New(ctx, cfg, Options{})
	require.NoError(t, err)
	defer a.Close(ctx)

	ep, err := a.Wholesaler(ctx, "ws-1")
	require.NoError(t, err)
	_, err = a.Client.QueryAvailability(ctx, ep, []message.AvailabilityItem{{ItemID: "01234567", Quantity: 1}})
	require.NoError(t, err)

	logs, err := a.Store.ListRequestLogs(ctx, &storage.RequestLogFilter{WholesalerID: "ws-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, logs, "every attempt is audited with the default config")
}

func TestNew_WarmsCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cfg := testConfig(t, "https://ws.example")
	cfg.Cache.Warm = true
	cfg.Audit.File.Path = ""

	first, err := New(ctx, cfg, Options{Store: store})
	require.NoError(t, err)
	require.NoError(t, first.Cache.Upsert(ctx, "1", "ws-1", 1, availabilityResult(), 0))

	second, err := New(ctx, cfg, Options{Store: store})
	require.NoError(t, err)
	_, ok := second.Cache.Get("1", "ws-1")
	assert.True(t, ok)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil, Options{})
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Storage.Type = "redis"
	_, err = New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestOpenStore_Memory(t *testing.T) {
	s, err := OpenStore(context.Background(), config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestHTTPSConfig(t *testing.T) {
	cfg := config.Default().Client
	cfg.MinTLSVersion = "1.3"
	cfg.UserAgent = "custom"

	h := httpsConfig(cfg)
	assert.Equal(t, uint16(transport.TLS13), h.MinTLSVersion)
	assert.Equal(t, "custom", h.UserAgent)
	assert.Equal(t, cfg.Timeout, h.Timeout)
}

func availabilityResult() availability.Result {
	return availability.Result{Status: availability.StatusAvailableNow, AvailableQuantity: 1}
}
