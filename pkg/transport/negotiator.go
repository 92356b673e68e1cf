package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/sirosfoundation/go-msv3/pkg/message"
)

const instrumentationName = "github.com/sirosfoundation/go-msv3/pkg/transport"

// Attempt describes one HTTP exchange of a negotiation.
type Attempt struct {
	WholesalerID string
	Action       string
	Route        Route
	StatusCode   int
	Accepted     bool
	Fault        bool
	Request      []byte
	Response     []byte
	Err          error
	Duration     time.Duration
}

// AttemptObserver is notified after every attempt, before Send returns.
type AttemptObserver interface {
	ObserveAttempt(ctx context.Context, a Attempt)
}

// ObserverFunc adapts a function to AttemptObserver.
type ObserverFunc func(ctx context.Context, a Attempt)

func (f ObserverFunc) ObserveAttempt(ctx context.Context, a Attempt) {
	f(ctx, a)
}

// Config configures a Negotiator.
type Config struct {
	HTTPS *HTTPSConfig

	// HTTPClient replaces the client built from HTTPS.
	HTTPClient *http.Client

	Observer AttemptObserver

	// Routes enables trying the last successful route first. Nil disables it.
	Routes RouteMemory

	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Response is an accepted answer.
type Response struct {
	Route      Route
	StatusCode int
	Body       []byte
	Attempts   int
}

// OK reports whether the HTTP status was a success status. An accepted
// response can also be a 500 carrying a SOAP fault.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Negotiator sends MSV3 operations, probing URL and content type variants
// until a wholesaler answers acceptably.
type Negotiator struct {
	client   *http.Client
	config   *HTTPSConfig
	observer AttemptObserver
	routes   RouteMemory
	logger   *slog.Logger
	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// NewNegotiator creates a new Negotiator.
func NewNegotiator(cfg Config) *Negotiator {
	httpsConfig := cfg.HTTPS.withDefaults()

	n := &Negotiator{
		client:   cfg.HTTPClient,
		config:   httpsConfig,
		observer: cfg.Observer,
		routes:   cfg.Routes,
		logger:   cfg.Logger,
	}
	if n.client == nil {
		n.client = newHTTPClient(httpsConfig)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	n.logger = n.logger.With("component", "transport")

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	n.tracer = tp.Tracer(instrumentationName)

	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	var err error
	n.attempts, err = meter.Int64Counter("msv3.transport.attempts",
		metric.WithDescription("HTTP attempts made while negotiating MSV3 calls"))
	if err != nil {
		n.logger.Warn("creating attempts counter", "error", err)
		n.attempts, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("msv3.transport.attempts")
	}
	n.duration, err = meter.Float64Histogram("msv3.transport.attempt.duration",
		metric.WithDescription("Duration of single HTTP attempts"), metric.WithUnit("ms"))
	if err != nil {
		n.logger.Warn("creating duration histogram", "error", err)
		n.duration, _ = noop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("msv3.transport.attempt.duration")
	}

	return n
}

type attemptResult struct {
	status int
	body   []byte
	err    error
}

// Send delivers an operation fragment to the wholesaler. Attempts run one
// after another in a fixed order and stop at the first acceptable response,
// so an order is never accepted twice.
func (n *Negotiator) Send(ctx context.Context, ep *message.Endpoint, action string, fragment []byte) (*Response, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	ns, _ := ep.Namespace()

	envelopes := make(map[SOAPVersion][]byte, 2)
	for _, v := range []SOAPVersion{SOAP12, SOAP11} {
		env, err := BuildEnvelope(v, ep, action, fragment)
		if err != nil {
			return nil, fmt.Errorf("building SOAP %s envelope: %w", v, err)
		}
		envelopes[v] = env
	}

	var preferred *Route
	if n.routes != nil {
		if r, ok := n.routes.Recall(ctx, ep.ID, action); ok {
			preferred = &r
		}
	}
	routes := plan(Candidates(ep.BaseURL, ep.Version, action), preferred)

	log := n.logger.With("wholesaler", ep.ID, "action", action)

	var (
		attempts     int
		answered     int
		unauthorized int
		sent         bool
		lastRoute    Route
		lastStatus   int
		lastBody     []byte
		lastConnErr  error
		skipped      = make(map[string]bool)
	)

	for _, route := range routes {
		if skipped[route.URL] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &ConnectivityError{Endpoint: ep.BaseURL, Err: err, Sent: sent}
		}

		attempts++
		envelope := envelopes[route.SOAPVersion()]
		start := time.Now()
		res := n.attempt(ctx, ns, action, route, envelope, ep)
		elapsed := time.Since(start)
		sent = true

		accepted := res.err == nil && acceptable(res.status, res.body)
		n.record(ctx, ep, action, route, envelope, res, accepted, elapsed)

		if res.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &ConnectivityError{Endpoint: route.URL, Err: ctxErr, Sent: sent}
			}
			log.Debug("attempt failed", "url", route.URL, "content_type", route.ContentType, "error", res.err)
			lastConnErr = res.err
			continue
		}

		answered++
		if accepted {
			log.Info("wholesaler answered", "url", route.URL, "content_type", route.ContentType,
				"status", res.status, "attempts", attempts)
			if n.routes != nil {
				n.routes.Remember(ctx, ep.ID, action, route)
			}
			return &Response{Route: route, StatusCode: res.status, Body: res.body, Attempts: attempts}, nil
		}

		log.Debug("attempt rejected", "url", route.URL, "content_type", route.ContentType, "status", res.status)
		lastRoute, lastStatus, lastBody = route, res.status, res.body

		switch res.status {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			skipped[route.URL] = true
		case http.StatusUnauthorized:
			unauthorized++
		}
	}

	switch {
	case answered == 0:
		log.Warn("wholesaler unreachable", "attempts", attempts, "error", lastConnErr)
		return nil, &ConnectivityError{Endpoint: ep.BaseURL, Err: lastConnErr, Sent: sent}
	case unauthorized == answered:
		log.Warn("wholesaler rejected credentials", "attempts", attempts)
		return nil, &AuthenticationError{Endpoint: ep.BaseURL, Attempts: attempts}
	default:
		log.Warn("no acceptable response", "attempts", attempts, "last_status", lastStatus)
		return nil, &ExhaustedFallbackError{
			Endpoint:   ep.BaseURL,
			LastURL:    lastRoute.URL,
			LastStatus: lastStatus,
			Snippet:    truncate(string(lastBody), n.config.SnippetLength),
			Attempts:   attempts,
		}
	}
}

func (n *Negotiator) attempt(ctx context.Context, ns, action string, route Route, envelope []byte, ep *message.Endpoint) attemptResult {
	ctx, span := n.tracer.Start(ctx, "msv3 "+action, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("msv3.wholesaler", ep.ID),
			attribute.String("url.full", route.URL),
			attribute.String("msv3.content_type", route.ContentType),
		))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.URL, bytes.NewReader(envelope))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "creating request")
		return attemptResult{err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("Content-Type", route.ContentType+"; charset=utf-8")
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("User-Agent", n.config.UserAgent)
	req.Header.Set("SOAPAction", message.SOAPAction(ns, action))
	req.SetBasicAuth(ep.User, ep.Secret)

	resp, err := n.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sending request")
		return attemptResult{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, n.config.MaxResponseBytes))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading response")
		return attemptResult{status: resp.StatusCode, err: fmt.Errorf("reading response: %w", err)}
	}
	return attemptResult{status: resp.StatusCode, body: body}
}

func (n *Negotiator) record(ctx context.Context, ep *message.Endpoint, action string, route Route, envelope []byte, res attemptResult, accepted bool, elapsed time.Duration) {
	outcome := "rejected"
	switch {
	case res.err != nil:
		outcome = "error"
	case accepted:
		outcome = "accepted"
	}
	attrs := metric.WithAttributes(
		attribute.String("msv3.action", action),
		attribute.String("msv3.outcome", outcome),
		attribute.Int("http.response.status_code", res.status),
	)
	n.attempts.Add(ctx, 1, attrs)
	n.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	if n.observer == nil {
		return
	}
	n.observer.ObserveAttempt(ctx, Attempt{
		WholesalerID: ep.ID,
		Action:       action,
		Route:        route,
		StatusCode:   res.status,
		Accepted:     accepted,
		Fault:        HasFault(res.body),
		Request:      RedactSecrets(envelope),
		Response:     res.body,
		Err:          res.err,
		Duration:     elapsed,
	})
}

// acceptable: any success status, or any body that is a SOAP envelope. A 500
// with a SOAP fault is a valid answer.
func acceptable(status int, body []byte) bool {
	if status >= 200 && status < 300 {
		return true
	}
	return HasEnvelope(body)
}

// IsCancellation reports whether err stems from the caller's context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
