package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NotNil(t, p.TracerProvider)
	assert.NotNil(t, p.MeterProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	var buf bytes.Buffer
	p, err := Init(context.Background(), Config{Enabled: true, ServiceName: "test", Exporter: "stdout", Output: &buf})
	require.NoError(t, err)

	_, span := p.TracerProvider.Tracer("test").Start(context.Background(), "msv3 bestellen")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "msv3 bestellen")
}

func TestInit_Errors(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "otlp"})
	assert.Error(t, err)

	_, err = Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "wholesaler", "ws-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "ws-1", line["wholesaler"])

	buf.Reset()
	NewLogger(&buf, "nonsense", "text").Info("fallback")
	assert.Contains(t, buf.String(), "fallback")
}
