package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till/payment"
)

type captured struct {
	mu     sync.Mutex
	events []*payment.Event
	err    error
}

func (c *captured) EmitPaymentEvent(_ context.Context, ev *payment.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

type mapDeduper struct {
	seen map[string]bool
	err  error
}

func (d *mapDeduper) Forget(_ context.Context, key string) error {
	delete(d.seen, key)
	return nil
}

func (d *mapDeduper) Seen(_ context.Context, key string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	was := d.seen[key]
	d.seen[key] = true
	return was, nil
}

const completed = `{"event":"checkout.order.completed","payload":{"merchantOrderId":"M-1","state":"COMPLETED","amount":50000}}`

func post(t *testing.T, h http.Handler, body string, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAlwaysResponds200(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"Completed", completed},
		{"Unknown event", `{"event":"checkout.order.pending","payload":{"orderId":"O-1"}}`},
		{"Malformed JSON", `{not json`},
		{"Empty body", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&captured{})
			rec := post(t, h.Routes(), tc.body, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"received":true}`, rec.Body.String())
		})
	}
}

func TestDispatchesKnownEvents(t *testing.T) {
	sink := &captured{}
	h := NewHandler(sink)

	post(t, h.Routes(), completed, "")
	post(t, h.Routes(), `{"event":"pg.refund.completed","payload":{"orderId":"O-9","refundId":"R-1","state":"COMPLETED","amount":100}}`, "")
	post(t, h.Routes(), `{"event":"something.else","payload":{}}`, "")

	require.Len(t, sink.events, 2)
	first := sink.events[0]
	assert.Equal(t, payment.OrderCompleted, first.Type)
	assert.Equal(t, "M-1", first.Payload.Reference())
	assert.Equal(t, int64(50000), first.Payload.Amount)
	assert.True(t, strings.HasPrefix(first.ID, "whk_"))
	assert.False(t, first.ReceivedAt.IsZero())

	refund := sink.events[1]
	assert.True(t, refund.Type.IsRefund())
	assert.Equal(t, "O-9", refund.Payload.Reference())
}

func TestCredentials(t *testing.T) {
	sink := &captured{}
	h := NewHandler(sink, WithCredentials("gateway", "s3cret"))

	rec := post(t, h.Routes(), completed, "wrong")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sink.events)

	sum := sha256.Sum256([]byte("gateway:s3cret"))
	post(t, h.Routes(), completed, hex.EncodeToString(sum[:]))
	assert.Len(t, sink.events, 1)
}

func TestDeduplicatesRetries(t *testing.T) {
	sink := &captured{}
	h := NewHandler(sink, WithDeduper(&mapDeduper{seen: map[string]bool{}}))

	post(t, h.Routes(), completed, "")
	post(t, h.Routes(), completed, "")
	assert.Len(t, sink.events, 1)

	// A new state for the same order is a different delivery.
	post(t, h.Routes(), `{"event":"checkout.order.failed","payload":{"merchantOrderId":"M-1","state":"FAILED"}}`, "")
	assert.Len(t, sink.events, 2)
}

func TestDeduperFailureStillDispatches(t *testing.T) {
	sink := &captured{}
	h := NewHandler(sink, WithDeduper(&mapDeduper{err: errors.New("redis down")}))

	post(t, h.Routes(), completed, "")
	assert.Len(t, sink.events, 1)
}

func TestFailedDispatchClearsDedupeMark(t *testing.T) {
	sink := &captured{err: errors.New("kafka unavailable")}
	dedupe := &mapDeduper{seen: map[string]bool{}}
	h := NewHandler(sink, WithDeduper(dedupe))

	rec := post(t, h.Routes(), completed, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, dedupe.seen)

	sink.err = nil
	post(t, h.Routes(), completed, "")
	post(t, h.Routes(), completed, "")
	assert.Len(t, sink.events, 2)
}

func TestEventsWithoutOrderAreNotDeduplicated(t *testing.T) {
	sink := &captured{}
	dedupe := &mapDeduper{seen: map[string]bool{}}
	h := NewHandler(sink, WithDeduper(dedupe))

	body := `{"event":"pg.refund.failed","payload":{"state":"FAILED","amount":100}}`
	post(t, h.Routes(), body, "")
	post(t, h.Routes(), body, "")

	assert.Len(t, sink.events, 2)
	assert.Empty(t, dedupe.seen)
}

func TestParseKeepsRawPayload(t *testing.T) {
	ev, err := parse([]byte(completed))
	require.NoError(t, err)
	assert.Contains(t, string(ev.Payload.Raw), "merchantOrderId")
}
