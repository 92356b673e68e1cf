package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxBody is the number of characters kept of each body.
const DefaultMaxBody = 8000

// Entry is one request/response exchange.
type Entry struct {
	ID           string
	WholesalerID string
	Endpoint     string
	Action       string
	HTTPStatus   int
	Fault        bool
	Request      string
	Response     string
	Error        string
	Duration     time.Duration
	CreatedAt    time.Time
}

// Sink receives audit entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Entry) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, e Entry) error {
	return f(ctx, e)
}

// Logger truncates and forwards entries to a Sink.
type Logger struct {
	sink    Sink
	maxBody int
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Logger.
type Option func(*Logger)

// WithMaxBody overrides DefaultMaxBody.
func WithMaxBody(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.maxBody = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLogger creates a Logger. A nil sink discards all entries.
func NewLogger(sink Sink, opts ...Option) *Logger {
	l := &Logger{
		sink:    sink,
		maxBody: DefaultMaxBody,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record writes e to the sink. The error may be discarded by the caller;
// it has already been logged.
func (l *Logger) Record(ctx context.Context, e Entry) (err error) {
	if l == nil || l.sink == nil {
		return nil
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	e.Request = Truncate(e.Request, l.maxBody)
	e.Response = Truncate(e.Response, l.maxBody)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit sink panicked: %v", r)
			l.logger.Error("audit write failed", "action", e.Action, "endpoint", e.Endpoint, "error", err)
		}
	}()

	if err = l.sink.Write(ctx, e); err != nil {
		l.logger.Warn("audit write failed", "action", e.Action, "endpoint", e.Endpoint, "error", err)
		return err
	}
	return nil
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
