package msv3

import (
	"context"

	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/response"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

// ProbeResult reports how a wholesaler answered a probe.
type ProbeResult struct {
	Route      transport.Route
	StatusCode int
	Attempts   int
	// Answer is the business level outcome: nil, a *response.ProtocolFault
	// or a *response.ParseError. Any answer proves the route works.
	Answer error
}

// Probe sends a one item availability query and reports the route the
// wholesaler accepted. The cache is not updated.
func (c *Client) Probe(ctx context.Context, ep *message.Endpoint, itemID string) (*ProbeResult, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	fragment, err := message.BuildAvailabilityQuery(ep, []message.AvailabilityItem{{ItemID: itemID, Quantity: 1}})
	if err != nil {
		return nil, err
	}

	resp, err := c.negotiator.Send(ctx, ep, message.ActionAvailability, fragment)
	if err != nil {
		return nil, err
	}
	res := response.Parse(resp.Body, resp.OK(), response.WithEndpoint(resp.Route.URL))
	return &ProbeResult{
		Route:      resp.Route,
		StatusCode: resp.StatusCode,
		Attempts:   resp.Attempts,
		Answer:     res.Err(),
	}, nil
}
