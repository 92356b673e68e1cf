package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls file rotation.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileSink writes one JSON object per entry.
type FileSink struct {
	core   zapcore.Core
	closer io.Closer
}

// NewFileSink opens a rotating JSON log at cfg.Path.
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit file path is required")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return newWriterSink(lj, lj), nil
}

func newWriterSink(w io.Writer, closer io.Closer) *FileSink {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "event"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zap.InfoLevel)
	return &FileSink{core: core, closer: closer}
}

// Write implements Sink. Failures of the underlying writer are returned.
func (s *FileSink) Write(_ context.Context, e Entry) error {
	fields := []zap.Field{
		zap.String("id", e.ID),
		zap.String("wholesaler_id", e.WholesalerID),
		zap.String("endpoint", e.Endpoint),
		zap.String("action", e.Action),
		zap.Int("http_status", e.HTTPStatus),
		zap.Bool("fault", e.Fault),
		zap.Int64("duration_ms", e.Duration.Milliseconds()),
		zap.Time("created_at", e.CreatedAt),
		zap.String("request", e.Request),
		zap.String("response", e.Response),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	ent := zapcore.Entry{Level: zapcore.InfoLevel, Time: ts, Message: "msv3.exchange"}
	if err := s.core.Write(ent, fields); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	_ = s.core.Sync()
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
