package msv3

import (
	"context"

	"github.com/sirosfoundation/go-msv3/pkg/audit"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

type auditObserver struct {
	logger *audit.Logger
}

func (o auditObserver) ObserveAttempt(ctx context.Context, a transport.Attempt) {
	e := audit.Entry{
		WholesalerID: a.WholesalerID,
		Endpoint:     a.Route.URL,
		Action:       a.Action,
		HTTPStatus:   a.StatusCode,
		Fault:        a.Fault,
		Request:      string(a.Request),
		Response:     string(a.Response),
		Duration:     a.Duration,
	}
	if a.Err != nil {
		e.Error = a.Err.Error()
	}
	// Recording must not fail the exchange; Record logs its own errors.
	_ = o.logger.Record(context.WithoutCancel(ctx), e)
}

type observers []transport.AttemptObserver

func (obs observers) ObserveAttempt(ctx context.Context, a transport.Attempt) {
	for _, o := range obs {
		o.ObserveAttempt(ctx, a)
	}
}

func chainObservers(list ...transport.AttemptObserver) transport.AttemptObserver {
	var out observers
	for _, o := range list {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
