package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sample = `
wholesalers:
  - id: phoenix
    name: PHOENIX
    baseUrl: https://msv3.example.de/msv3
    user: apotheke
    secret: ${MSV3_TEST_SECRET}
    customerNumber: "123456"
    priority: 1
  - id: sanacorp
    version: 1
    baseUrl: https://sana.example.de
    user: apo
cache:
  ttl: 2m
client:
  timeout: 10s
  rememberRoutes: true
`

func TestParse(t *testing.T) {
	t.Setenv("MSV3_TEST_SECRET", "geheim")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, cfg.Wholesalers, 2)
	assert.Equal(t, "geheim", cfg.Wholesalers[0].Secret)
	assert.Equal(t, 2, cfg.Wholesalers[0].Version, "version defaults to 2")
	assert.Equal(t, 1, cfg.Wholesalers[1].Version)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.True(t, cfg.Client.RememberRoutes)

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 8000, cfg.Audit.MaxBody)
	assert.True(t, cfg.Audit.StoreEnabled(), "request logs are stored unless disabled")
	assert.Equal(t, "1.2", cfg.Client.MinTLSVersion)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, "phoenix", cfg.Wholesalers[0].ID)
	assert.Equal(t, "123456", cfg.Wholesalers[0].CustomerNumber)
}

func TestParse_AuditStoreDisabled(t *testing.T) {
	cfg, err := Parse([]byte("audit:\n  store: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Audit.StoreEnabled())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing base url", "wholesalers:\n  - id: a\n    user: u\n"},
		{"bad version", "wholesalers:\n  - id: a\n    user: u\n    version: 3\n    baseUrl: https://x\n"},
		{"duplicate id", "wholesalers:\n  - {id: a, user: u, baseUrl: 'https://x'}\n  - {id: a, user: u, baseUrl: 'https://y'}\n"},
		{"unknown storage", "storage:\n  type: redis\n"},
		{"mongodb without uri", "storage:\n  type: mongodb\n"},
		{"postgres without url", "storage:\n  type: postgres\n"},
		{"otlp without endpoint", "telemetry:\n  enabled: true\n  exporter: otlp\n"},
		{"bad log level", "log:\n  level: verbose\n"},
		{"not yaml", "wholesalers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msv3.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: postgres\n  postgres:\n    url: postgres://localhost/msv3\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Type)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Wholesalers)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.NoError(t, cfg.validate())
}

func TestRedacted(t *testing.T) {
	t.Setenv("MSV3_TEST_SECRET", "geheim")
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	cfg.Storage.Postgres.URL = "postgres://user:pw@db/msv3"

	red := cfg.Redacted()
	out, err := yaml.Marshal(red)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "geheim")
	assert.NotContains(t, string(out), "pw@db")
	assert.Equal(t, "geheim", cfg.Wholesalers[0].Secret, "original must be untouched")
	assert.Empty(t, red.Wholesalers[1].Secret)
}
