package msv3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-msv3/pkg/audit"
	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/cache"
	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/response"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

// ErrOutcomeUnknown marks an order that may or may not have been accepted.
var ErrOutcomeUnknown = errors.New("order outcome unknown")

// ErrNoEndpointSource is returned by ResolveEndpoint without a source.
var ErrNoEndpointSource = errors.New("no endpoint source configured")

// EndpointSource looks up wholesaler configuration.
type EndpointSource interface {
	Endpoint(ctx context.Context, id string) (*message.Endpoint, error)
}

// Client is the MSV3 client.
type Client struct {
	negotiator  *transport.Negotiator
	cache       *cache.Cache
	audit       *audit.Logger
	endpoints   EndpointSource
	concurrency int
	logger      *slog.Logger
}

// Config holds client configuration.
type Config struct {
	Transport transport.Config

	// Cache receives every derived availability. Nil disables caching.
	Cache *cache.Cache

	// Audit records every HTTP attempt. Nil disables auditing.
	Audit *audit.Logger

	Endpoints EndpointSource

	// Concurrency bounds Compare. Defaults to 4.
	Concurrency int

	Logger *slog.Logger
}

// NewClient creates a new MSV3 client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	c := &Client{
		cache:       config.Cache,
		audit:       config.Audit,
		endpoints:   config.Endpoints,
		concurrency: config.Concurrency,
		logger:      config.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.concurrency <= 0 {
		c.concurrency = 4
	}

	tc := config.Transport
	if tc.Logger == nil {
		tc.Logger = c.logger
	}
	if c.audit != nil {
		tc.Observer = chainObservers(auditObserver{c.audit}, tc.Observer)
	}
	c.negotiator = transport.NewNegotiator(tc)

	return c, nil
}

// ResolveEndpoint returns the configured endpoint for a wholesaler id.
func (c *Client) ResolveEndpoint(ctx context.Context, id string) (*message.Endpoint, error) {
	if c.endpoints == nil {
		return nil, ErrNoEndpointSource
	}
	ep, err := c.endpoints.Endpoint(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolving wholesaler %q: %w", id, err)
	}
	return ep, nil
}

// QueryAvailability runs VerfuegbarkeitAbfragen and caches each position.
func (c *Client) QueryAvailability(ctx context.Context, ep *message.Endpoint, items []message.AvailabilityItem) ([]message.AvailabilityPosition, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	fragment, err := message.BuildAvailabilityQuery(ep, items)
	if err != nil {
		return nil, err
	}

	res, err := c.exchange(ctx, ep, message.ActionAvailability, fragment)
	if err != nil {
		return nil, err
	}
	if res.Plain {
		return nil, &response.ParseError{Reason: "availability answer is not XML", Body: string(res.Raw)}
	}

	positions, err := response.DecodeAvailability(res.Payload)
	if err != nil {
		return nil, err
	}

	asked := make(map[string]int, len(items))
	for _, it := range items {
		asked[it.ItemID] = max(asked[it.ItemID], it.Quantity)
	}
	for i := range positions {
		p := &positions[i]
		requested := p.Requested
		if requested <= 0 {
			requested = asked[p.ItemID]
			// A bare deliverable flag without quantities keeps its meaning.
			if p.Quantity > 0 {
				p.Requested = requested
			}
		}
		c.remember(ctx, p.ItemID, ep.ID, requested, availability.FromPosition(*p))
	}
	return positions, nil
}

// SubmitOrder runs BestellungAbsenden. An empty orderID is generated. A
// wholesaler fault yields both a failed OrderResult and the fault error.
func (c *Client) SubmitOrder(ctx context.Context, ep *message.Endpoint, orderID string, positions []message.OrderPosition) (*message.OrderResult, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if orderID == "" {
		orderID = uuid.NewString()
	}
	fragment, err := message.BuildOrder(ep, orderID, positions)
	if err != nil {
		return nil, err
	}

	res, err := c.exchange(ctx, ep, message.ActionSubmitOrder, fragment)
	if err != nil {
		var fault *response.ProtocolFault
		if errors.As(err, &fault) {
			return &message.OrderResult{OrderID: orderID, FailureReason: fault.Message}, err
		}
		return nil, orderError(orderID, err)
	}

	if res.Plain {
		return &message.OrderResult{OrderID: orderID, Status: string(res.Payload), Success: true}, nil
	}

	result, err := response.DecodeOrderResult(res.Payload)
	if err != nil {
		return nil, err
	}
	if result.OrderID == "" {
		result.OrderID = orderID
	}
	return result, nil
}

// LineResult is one position of a bestellen answer with its derived status.
type LineResult struct {
	Line         availability.Line
	Availability availability.Result
}

// PlaceOrder runs the vendor specific bestellen operation and derives the
// availability of every returned position.
func (c *Client) PlaceOrder(ctx context.Context, ep *message.Endpoint, orderID string, positions []message.OrderPosition) ([]LineResult, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if orderID == "" {
		orderID = uuid.NewString()
	}
	fragment, err := message.BuildPlaceOrder(ep, orderID, positions)
	if err != nil {
		return nil, err
	}

	res, err := c.exchange(ctx, ep, message.ActionPlaceOrder, fragment)
	if err != nil {
		var fault *response.ProtocolFault
		if errors.As(err, &fault) {
			return nil, err
		}
		return nil, orderError(orderID, err)
	}
	if res.Plain {
		return nil, &response.ParseError{Reason: "order answer is not XML", Body: string(res.Raw)}
	}

	lines, err := response.DecodeOrderLines(res.Payload)
	if err != nil {
		return nil, err
	}

	fillOrdered(lines, positions)
	out := make([]LineResult, 0, len(lines))
	for _, line := range lines {
		r := availability.Derive(line)
		c.remember(ctx, line.ItemID, ep.ID, line.Ordered, r)
		out = append(out, LineResult{Line: line, Availability: r})
	}
	return out, nil
}

// fillOrdered takes the ordered quantity from the submitted positions where
// the answer does not repeat it. Lines are matched by item id first, then by
// index.
func fillOrdered(lines []availability.Line, positions []message.OrderPosition) {
	byItem := make(map[string]int, len(positions))
	for _, p := range positions {
		byItem[p.ItemID] += p.Quantity
	}
	for i := range lines {
		if lines[i].Ordered > 0 {
			continue
		}
		if q, ok := byItem[lines[i].ItemID]; ok {
			lines[i].Ordered = q
		} else if i < len(positions) {
			lines[i].Ordered = positions[i].Quantity
		}
		if lines[i].ItemID == "" && i < len(positions) {
			lines[i].ItemID = positions[i].ItemID
		}
	}
}

// exchange sends one operation and parses the accepted answer. Business
// level failures are returned as errors.
func (c *Client) exchange(ctx context.Context, ep *message.Endpoint, action string, fragment []byte) (*response.Result, error) {
	resp, err := c.negotiator.Send(ctx, ep, action, fragment)
	if err != nil {
		return nil, err
	}

	res := response.Parse(resp.Body, resp.OK(), response.WithEndpoint(resp.Route.URL))
	if err := res.Err(); err != nil {
		c.logger.Info("wholesaler rejected request", "wholesaler", ep.ID, "action", action, "error", err)
		return res, err
	}
	return res, nil
}

func (c *Client) remember(ctx context.Context, itemID, wholesalerID string, requested int, r availability.Result) {
	if c.cache == nil || itemID == "" {
		return
	}
	_ = c.cache.Upsert(ctx, itemID, wholesalerID, requested, r, 0)
}

// orderError marks submissions that may have reached the wholesaler before
// the exchange broke off.
func orderError(orderID string, err error) error {
	var ce *transport.ConnectivityError
	if !errors.As(err, &ce) || !ce.Sent {
		return err
	}
	var ne net.Error
	if transport.IsCancellation(ce.Err) || (errors.As(ce.Err, &ne) && ne.Timeout()) {
		return fmt.Errorf("order %s: %w: %w", orderID, ErrOutcomeUnknown, err)
	}
	return err
}
