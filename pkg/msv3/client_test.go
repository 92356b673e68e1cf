package msv3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-msv3/pkg/audit"
	"github.com/sirosfoundation/go-msv3/pkg/availability"
	"github.com/sirosfoundation/go-msv3/pkg/cache"
	"github.com/sirosfoundation/go-msv3/pkg/message"
	"github.com/sirosfoundation/go-msv3/pkg/response"
	"github.com/sirosfoundation/go-msv3/pkg/transport"
)

func envelope(payload string) string {
	return `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		payload + `</soap:Body></soap:Envelope>`
}

const availabilityAnswer = `<m:VerfuegbarkeitAbfragenResponse xmlns:m="urn:msv3:v2">
  <m:Artikel><m:PZN>01234567</m:PZN><m:Anfragemenge>3</m:Anfragemenge><m:VerfuegbareMenge>3</m:VerfuegbareMenge></m:Artikel>
  <m:Artikel><m:PZN>07654321</m:PZN><m:Anfragemenge>10</m:Anfragemenge><m:VerfuegbareMenge>4</m:VerfuegbareMenge></m:Artikel>
</m:VerfuegbarkeitAbfragenResponse>`

const orderAnswer = `<m:BestellungAbsendenResponse xmlns:m="urn:msv3:v2">
  <m:Auftragskennung>A-1</m:Auftragskennung><m:Status>angenommen</m:Status>
</m:BestellungAbsendenResponse>`

const placeOrderAnswer = `<m:bestellenResponse xmlns:m="urn:msv3:v2">
  <m:Position><m:PZN>01234567</m:PZN><m:Menge>5</m:Menge>
    <m:Anteil><m:Menge>5</m:Menge><m:Typ>Normal</m:Typ></m:Anteil>
  </m:Position>
  <m:Position><m:PZN>07654321</m:PZN><m:Menge>2</m:Menge>
    <m:Anteil><m:Menge>2</m:Menge><m:Typ>Nachlieferung</m:Typ><m:Lieferzeitpunkt>2024-06-03</m:Lieferzeitpunkt></m:Anteil>
  </m:Position>
</m:bestellenResponse>`

const faultAnswer = `<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body><S:Fault>
<faultcode>S:Client</faultcode><faultstring>Validation failed</faultstring>
<detail><EndanwenderFehlertext>Kundennummer unbekannt</EndanwenderFehlertext></detail>
</S:Fault></S:Body></S:Envelope>`

// wholesaler answers by SOAP action and counts requests per action.
type wholesaler struct {
	mu      sync.Mutex
	calls   map[string]int
	answers map[string]func() (int, string)
}

func (w *wholesaler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	action := strings.Trim(r.Header.Get("SOAPAction"), `"`)
	action = action[strings.LastIndex(action, "/")+1:]

	w.mu.Lock()
	w.calls[action]++
	answer, ok := w.answers[action]
	w.mu.Unlock()

	if !ok {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	status, body := answer()
	rw.WriteHeader(status)
	_, _ = rw.Write([]byte(body))
}

func (w *wholesaler) count(action string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[action]
}

func newWholesaler(t *testing.T, id string, answers map[string]func() (int, string)) (*wholesaler, *message.Endpoint) {
	t.Helper()
	w := &wholesaler{calls: make(map[string]int), answers: answers}
	server := httptest.NewServer(w)
	t.Cleanup(server.Close)
	return w, &message.Endpoint{ID: id, Version: 2, BaseURL: server.URL, User: "apotheke", Secret: "geheim", CustomerNumber: "4711"}
}

func ok(body string) func() (int, string) {
	return func() (int, string) { return http.StatusOK, body }
}

type captureSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureSink) Write(_ context.Context, e audit.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureSink) all() []audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Entry(nil), c.entries...)
}

func newTestClient(t *testing.T, opts ...func(*Config)) (*Client, *cache.Cache, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	c := cache.New()
	cfg := &Config{Cache: c, Audit: audit.NewLogger(sink)}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client, c, sink
}

func TestNewClient_NilConfig(t *testing.T) {
	client, err := NewClient(nil)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(&Config{})
	require.NoError(t, err)
	assert.NotNil(t, client.negotiator)
	assert.NotNil(t, client.logger)
	assert.Equal(t, 4, client.concurrency)
}

func TestQueryAvailability(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionAvailability: ok(envelope(availabilityAnswer)),
	})
	client, c, sink := newTestClient(t)

	positions, err := client.QueryAvailability(context.Background(), ep, []message.AvailabilityItem{
		{ItemID: "01234567", Quantity: 3},
		{ItemID: "07654321", Quantity: 10},
	})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, message.PositionAvailable, positions[0].Status())
	assert.Equal(t, message.PositionPartial, positions[1].Status())

	e, hit := c.Get("01234567", "ws-1")
	require.True(t, hit)
	assert.Equal(t, availability.StatusAvailableNow, e.Status)
	e, hit = c.Get("07654321", "ws-1")
	require.True(t, hit)
	assert.Equal(t, availability.StatusPartial, e.Status)
	assert.Equal(t, 4, e.AvailableQuantity)

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "ws-1", entries[0].WholesalerID)
	assert.Equal(t, message.ActionAvailability, entries[0].Action)
	assert.Equal(t, http.StatusOK, entries[0].HTTPStatus)
	assert.NotContains(t, entries[0].Request, "geheim")
}

func TestQueryAvailability_Validation(t *testing.T) {
	client, _, _ := newTestClient(t)

	_, err := client.QueryAvailability(context.Background(), nil, []message.AvailabilityItem{{ItemID: "1", Quantity: 1}})
	assert.Error(t, err)

	_, ep := newWholesaler(t, "ws-1", nil)
	_, err = client.QueryAvailability(context.Background(), ep, nil)
	assert.Error(t, err)
}

func TestQueryAvailability_PlainTextIsParseError(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionAvailability: ok("OK"),
	})
	client, _, _ := newTestClient(t)

	_, err := client.QueryAvailability(context.Background(), ep, []message.AvailabilityItem{{ItemID: "1", Quantity: 1}})

	var pe *response.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestSubmitOrder(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionSubmitOrder: ok(envelope(orderAnswer)),
	})
	client, _, _ := newTestClient(t)

	res, err := client.SubmitOrder(context.Background(), ep, "", []message.OrderPosition{{ItemID: "01234567", Quantity: 1}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "A-1", res.OrderID)
	assert.Equal(t, "angenommen", res.Status)
}

func TestSubmitOrder_Fault(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionSubmitOrder: func() (int, string) { return http.StatusInternalServerError, faultAnswer },
	})
	client, _, sink := newTestClient(t)

	res, err := client.SubmitOrder(context.Background(), ep, "order-9", []message.OrderPosition{{ItemID: "01234567", Quantity: 1}})

	var fault *response.ProtocolFault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "Kundennummer unbekannt", fault.Message)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "order-9", res.OrderID)
	assert.Equal(t, "Kundennummer unbekannt", res.FailureReason)

	entries := sink.all()
	require.Len(t, entries, 1, "a fault is an answer and must not trigger further attempts")
	assert.True(t, entries[0].Fault)
}

func TestSubmitOrder_PlainTextAnswer(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionSubmitOrder: ok("Auftrag erhalten"),
	})
	client, _, _ := newTestClient(t)

	res, err := client.SubmitOrder(context.Background(), ep, "order-1", []message.OrderPosition{{ItemID: "1", Quantity: 1}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "order-1", res.OrderID)
	assert.Equal(t, "Auftrag erhalten", res.Status)
}

func TestSubmitOrder_CancelledAfterSendIsUnknown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionSubmitOrder: func() (int, string) {
			cancel()
			time.Sleep(50 * time.Millisecond)
			return http.StatusOK, envelope(orderAnswer)
		},
	})
	client, _, _ := newTestClient(t)

	_, err := client.SubmitOrder(ctx, ep, "order-1", []message.OrderPosition{{ItemID: "1", Quantity: 1}})

	assert.ErrorIs(t, err, ErrOutcomeUnknown)
	var ce *transport.ConnectivityError
	assert.True(t, errors.As(err, &ce))
}

func TestSubmitOrder_CancelledBeforeSend(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", nil)
	client, _, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.SubmitOrder(ctx, ep, "order-1", []message.OrderPosition{{ItemID: "1", Quantity: 1}})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrOutcomeUnknown)
}

func TestPlaceOrder(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionPlaceOrder: ok(envelope(placeOrderAnswer)),
	})
	client, c, _ := newTestClient(t)

	lines, err := client.PlaceOrder(context.Background(), ep, "", []message.OrderPosition{
		{ItemID: "01234567", Quantity: 5},
		{ItemID: "07654321", Quantity: 2, DeliveryInstruction: "Tour 2"},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, availability.StatusAvailableNow, lines[0].Availability.Status)
	assert.Equal(t, 5, lines[0].Availability.AvailableQuantity)
	assert.Equal(t, availability.StatusBackOrder, lines[1].Availability.Status)
	require.NotNil(t, lines[1].Availability.NextDelivery)
	assert.Equal(t, time.June, lines[1].Availability.NextDelivery.Month())

	e, hit := c.Get("07654321", "ws-1")
	require.True(t, hit)
	assert.Equal(t, availability.StatusBackOrder, e.Status)
	assert.Equal(t, 2, e.RequestedQuantity)
}

func TestPlaceOrder_QuantityFromSubmittedPositions(t *testing.T) {
	const answer = `<m:bestellenResponse xmlns:m="urn:msv3:v2">
  <m:Position><m:PZN>01234567</m:PZN>
    <m:Anteil><m:Menge>1</m:Menge><m:Typ>Normal</m:Typ></m:Anteil>
    <m:Anteil><m:Menge>9</m:Menge><m:Typ>Nachlieferung</m:Typ></m:Anteil>
  </m:Position>
  <m:Position>
    <m:Anteil><m:Menge>2</m:Menge><m:Typ>Normal</m:Typ></m:Anteil>
  </m:Position>
</m:bestellenResponse>`
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionPlaceOrder: ok(envelope(answer)),
	})
	client, c, _ := newTestClient(t)

	lines, err := client.PlaceOrder(context.Background(), ep, "", []message.OrderPosition{
		{ItemID: "01234567", Quantity: 10},
		{ItemID: "07654321", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, 10, lines[0].Line.Ordered)
	assert.Equal(t, availability.StatusPartial, lines[0].Availability.Status)
	assert.Equal(t, 1, lines[0].Availability.AvailableQuantity)

	assert.Equal(t, "07654321", lines[1].Line.ItemID)
	assert.Equal(t, 3, lines[1].Line.Ordered)
	assert.Equal(t, availability.StatusPartial, lines[1].Availability.Status)

	e, hit := c.Get("01234567", "ws-1")
	require.True(t, hit)
	assert.Equal(t, availability.StatusPartial, e.Status)
	assert.Equal(t, 10, e.RequestedQuantity)
}

func TestPlaceOrder_Fault(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionPlaceOrder: func() (int, string) { return http.StatusInternalServerError, faultAnswer },
	})
	client, c, _ := newTestClient(t)

	lines, err := client.PlaceOrder(context.Background(), ep, "", []message.OrderPosition{{ItemID: "1", Quantity: 1}})

	var fault *response.ProtocolFault
	assert.True(t, errors.As(err, &fault))
	assert.Nil(t, lines)
	assert.Equal(t, 0, c.Len())
}

func TestCheckAvailability_CacheFirst(t *testing.T) {
	w, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionAvailability: ok(envelope(availabilityAnswer)),
	})
	client, c, _ := newTestClient(t)
	_ = c.Upsert(context.Background(), "01234567", "ws-1", 3, availability.Result{Status: availability.StatusUnavailable}, 0)

	statuses, err := client.CheckAvailability(context.Background(), ep, []message.AvailabilityItem{
		{ItemID: "01234567", Quantity: 3},
		{ItemID: "07654321", Quantity: 10},
		{ItemID: "09999999", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.True(t, statuses[0].Cached)
	assert.Equal(t, availability.StatusUnavailable, statuses[0].Status)
	assert.False(t, statuses[1].Cached)
	assert.Equal(t, availability.StatusPartial, statuses[1].Status)
	assert.Equal(t, availability.StatusUnknown, statuses[2].Status, "items missing from the answer are unknown")
	assert.Equal(t, 1, w.count(message.ActionAvailability))

	statuses, err = client.CheckAvailability(context.Background(), ep, []message.AvailabilityItem{
		{ItemID: "07654321", Quantity: 10},
	})
	require.NoError(t, err)
	assert.True(t, statuses[0].Cached)
	assert.Equal(t, 1, w.count(message.ActionAvailability), "second check is served from cache")
}

func TestQueryAvailability_RequestedFromItems(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionAvailability: ok(envelope(`<r><Artikel><PZN>01234567</PZN><VerfuegbareMenge>1</VerfuegbareMenge></Artikel></r>`)),
	})
	client, c, _ := newTestClient(t)

	positions, err := client.QueryAvailability(context.Background(), ep, []message.AvailabilityItem{
		{ItemID: "01234567", Quantity: 5},
	})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 5, positions[0].Requested)
	assert.Equal(t, message.PositionPartial, positions[0].Status())

	e, hit := c.Get("01234567", "ws-1")
	require.True(t, hit)
	assert.Equal(t, availability.StatusPartial, e.Status)
	assert.Equal(t, 5, e.RequestedQuantity)
}

func TestCheckAvailability_LargerQuantityRequeries(t *testing.T) {
	w, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionAvailability: ok(envelope(`<r><Artikel><PZN>01234567</PZN><Anfragemenge>50</Anfragemenge><VerfuegbareMenge>2</VerfuegbareMenge></Artikel></r>`)),
	})
	client, c, _ := newTestClient(t)
	_ = c.Upsert(context.Background(), "01234567", "ws-1", 2,
		availability.Result{Status: availability.StatusAvailableNow, AvailableQuantity: 2}, 0)

	statuses, err := client.CheckAvailability(context.Background(), ep, []message.AvailabilityItem{
		{ItemID: "01234567", Quantity: 50},
	})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Cached)
	assert.Equal(t, availability.StatusPartial, statuses[0].Status)
	assert.Equal(t, 2, statuses[0].AvailableQuantity)
	assert.Equal(t, 1, w.count(message.ActionAvailability))
}

func TestCheckAvailability_SmallerQuantityFromPartialEntry(t *testing.T) {
	w, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){})
	client, c, _ := newTestClient(t)
	_ = c.Upsert(context.Background(), "01234567", "ws-1", 10,
		availability.Result{Status: availability.StatusPartial, AvailableQuantity: 4}, 0)

	statuses, err := client.CheckAvailability(context.Background(), ep, []message.AvailabilityItem{
		{ItemID: "01234567", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Cached)
	assert.Equal(t, availability.StatusAvailableNow, statuses[0].Status)
	assert.Equal(t, 0, w.count(message.ActionAvailability))
}

func TestCompare(t *testing.T) {
	_, slow := newWholesaler(t, "slow", map[string]func() (int, string){
		message.ActionAvailability: func() (int, string) {
			time.Sleep(20 * time.Millisecond)
			return http.StatusOK, envelope(availabilityAnswer)
		},
	})
	slow.Priority = 1
	_, broken := newWholesaler(t, "broken", map[string]func() (int, string){
		message.ActionAvailability: func() (int, string) { return http.StatusUnauthorized, "" },
	})
	broken.Priority = 0
	_, full := newWholesaler(t, "full", map[string]func() (int, string){
		message.ActionAvailability: ok(envelope(`<r><Artikel><PZN>01234567</PZN><Anfragemenge>3</Anfragemenge><VerfuegbareMenge>3</VerfuegbareMenge></Artikel></r>`)),
	})
	full.Priority = 2

	client, _, _ := newTestClient(t, func(c *Config) { c.Concurrency = 2 })

	offers := client.Compare(context.Background(), []*message.Endpoint{full, nil, slow, broken},
		[]message.AvailabilityItem{{ItemID: "01234567", Quantity: 3}})
	require.Len(t, offers, 3)

	assert.Equal(t, "broken", offers[0].Endpoint.ID)
	var authErr *transport.AuthenticationError
	assert.True(t, errors.As(offers[0].Err, &authErr))
	assert.Equal(t, "slow", offers[1].Endpoint.ID)
	assert.NoError(t, offers[1].Err)
	assert.Equal(t, "full", offers[2].Endpoint.ID)

	best, found := Best(offers)
	require.True(t, found)
	assert.Equal(t, "full", best.Endpoint.ID)
}

type endpointMap map[string]*message.Endpoint

func (m endpointMap) Endpoint(_ context.Context, id string) (*message.Endpoint, error) {
	ep, ok := m[id]
	if !ok {
		return nil, errors.New("unknown wholesaler")
	}
	return ep, nil
}

func TestResolveEndpoint(t *testing.T) {
	client, _, _ := newTestClient(t)
	_, err := client.ResolveEndpoint(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoEndpointSource)

	ep := &message.Endpoint{ID: "ws-1"}
	client, _, _ = newTestClient(t, func(c *Config) { c.Endpoints = endpointMap{"ws-1": ep} })

	got, err := client.ResolveEndpoint(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Same(t, ep, got)

	_, err = client.ResolveEndpoint(context.Background(), "nope")
	assert.ErrorContains(t, err, "nope")
}

func TestObserversAreChained(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionAvailability: ok(envelope(availabilityAnswer)),
	})
	var observed atomic.Int32
	client, _, sink := newTestClient(t, func(c *Config) {
		c.Transport.Observer = transport.ObserverFunc(func(context.Context, transport.Attempt) { observed.Add(1) })
	})

	_, err := client.QueryAvailability(context.Background(), ep, []message.AvailabilityItem{{ItemID: "01234567", Quantity: 3}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, observed.Load())
	assert.Len(t, sink.all(), 1)
}

func TestProbe(t *testing.T) {
	_, ep := newWholesaler(t, "ws-1", map[string]func() (int, string){
		message.ActionAvailability: func() (int, string) { return http.StatusInternalServerError, faultAnswer },
	})
	client, c, _ := newTestClient(t)

	res, err := client.Probe(context.Background(), ep, "01234567")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, ep.BaseURL+"/v2.0/VerfuegbarkeitAbfragen", res.Route.URL)
	var fault *response.ProtocolFault
	assert.True(t, errors.As(res.Answer, &fault))
	assert.Equal(t, 0, c.Len())
}
