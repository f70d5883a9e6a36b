package lemonsqueezy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"course-billing/internal/config"
	"course-billing/internal/gateway"
	"course-billing/internal/lifecycle"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	subscriptions []lifecycle.SubscriptionEvent
	orders        []lifecycle.OrderEvent
	refunds       []lifecycle.OrderEvent
	err           error
}

func (f *fakeProcessor) ApplySubscription(_ context.Context, ev lifecycle.SubscriptionEvent) error {
	f.subscriptions = append(f.subscriptions, ev)
	return f.err
}

func (f *fakeProcessor) RecordOrder(_ context.Context, ev lifecycle.OrderEvent) error {
	f.orders = append(f.orders, ev)
	return f.err
}

func (f *fakeProcessor) RecordRefund(_ context.Context, ev lifecycle.OrderEvent) error {
	f.refunds = append(f.refunds, ev)
	return f.err
}

type fakeUserIndex struct {
	users map[string]int64
}

func (f *fakeUserIndex) LocalUserFor(_ context.Context, subscriptionID string) (int64, bool, error) {
	id, ok := f.users[subscriptionID]
	return id, ok, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestGateway(t *testing.T, handler http.Handler) (*Gateway, *fakeProcessor, *fakeUserIndex) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	proc := &fakeProcessor{}
	index := &fakeUserIndex{users: map[string]int64{}}
	cfg := &config.LemonSqueezy{
		BaseApiURL:    srv.URL,
		APIKey:        "test-key",
		StoreID:       "7",
		WebhookSecret: "whsec_test",
	}
	return New(cfg, proc, index, testLogger()), proc, index
}

func jsonHandler(t *testing.T, statuses map[string]int, bodies map[string]string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, ok := bodies[key]
		if !ok {
			t.Errorf("unexpected provider call %s", key)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if status, ok := statuses[key]; ok {
			w.WriteHeader(status)
		}
		_, _ = w.Write([]byte(body))
	})
}

func TestTestConnection(t *testing.T) {
	gw, _, _ := newTestGateway(t, jsonHandler(t, nil, map[string]string{
		"GET /stores/7": `{"data":{"type":"stores","id":"7","attributes":{"name":"Course Store","currency":"USD"}}}`,
	}))

	require.NoError(t, gw.TestConnection(context.Background()))
}

func TestTestConnectionAuthFailure(t *testing.T) {
	gw, _, _ := newTestGateway(t, jsonHandler(t,
		map[string]int{"GET /stores/7": http.StatusUnauthorized},
		map[string]string{"GET /stores/7": `{"errors":[{"status":"401","title":"Unauthorized"}]}`},
	))

	err := gw.TestConnection(context.Background())
	require.Error(t, err)
	assert.Equal(t, gateway.ErrAuth, gateway.KindOf(err))
	assert.False(t, gateway.IsRetryable(err))
}

func TestGetProducts(t *testing.T) {
	var gotQuery string
	gw, _, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[
			{"type":"products","id":"42","attributes":{"name":"Go Course","price":1999,"status":"published",
				"variants":[{"attributes":{"is_subscription":true}}]}},
			{"type":"products","id":"43","attributes":{"name":"Ebook","price":900,"status":"published"}}
		]}`))
	}))

	products, err := gw.GetProducts(context.Background(), gateway.ProductFilter{Status: "published"})
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Contains(t, gotQuery, "filter%5Bstore_id%5D=7")
	assert.Contains(t, gotQuery, "filter%5Bstatus%5D=published")

	assert.Equal(t, "42", products[0].ID)
	assert.Equal(t, gateway.ProductSubscription, products[0].Type)
	assert.Equal(t, "19.99", products[0].Price.String())
	assert.Equal(t, gateway.ProductOneTime, products[1].Type)
}

func TestGetProductNotFound(t *testing.T) {
	gw, _, _ := newTestGateway(t, jsonHandler(t,
		map[string]int{"GET /products/999": http.StatusNotFound},
		map[string]string{"GET /products/999": `{"errors":[{"status":"404","title":"Not Found"}]}`},
	))

	_, err := gw.GetProduct(context.Background(), "999")
	require.Error(t, err)
	assert.Equal(t, gateway.ErrNotFound, gateway.KindOf(err))
}

func TestCreateCheckout(t *testing.T) {
	var checkoutBody []byte
	gw, _, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /variants":
			_, _ = w.Write([]byte(`{"data":[{"type":"variants","id":"4201","attributes":{"product_id":42}}]}`))
		case "POST /checkouts":
			checkoutBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"type":"checkouts","id":"co-1","attributes":{"url":"https://store.lemonsqueezy.com/checkout/co-1"}}}`))
		default:
			t.Errorf("unexpected provider call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	session, err := gw.CreateCheckout(context.Background(), gateway.CheckoutArgs{
		ProductID:     "42",
		CustomerEmail: "ada@example.com",
		LocalUserID:   42,
	})
	require.NoError(t, err)
	assert.Equal(t, "co-1", session.ID)
	assert.Equal(t, "https://store.lemonsqueezy.com/checkout/co-1", session.URL)

	var payload checkoutPayload
	require.NoError(t, json.Unmarshal(checkoutBody, &payload))
	assert.Equal(t, "4201", payload.Data.Relationships.Variant.Data.ID)
	assert.Equal(t, "7", payload.Data.Relationships.Store.Data.ID)
	assert.Equal(t, map[string]interface{}{"user_id": "42"},
		payload.Data.Attributes.CheckoutData["custom"])
}

func TestCreateCheckoutNoVariants(t *testing.T) {
	gw, _, _ := newTestGateway(t, jsonHandler(t, nil, map[string]string{
		"GET /variants": `{"data":[]}`,
	}))

	_, err := gw.CreateCheckout(context.Background(), gateway.CheckoutArgs{ProductID: "42"})
	require.Error(t, err)
	assert.Equal(t, gateway.ErrInvalidProduct, gateway.KindOf(err))
}

func TestCreateCheckoutMissingProduct(t *testing.T) {
	gw, _, _ := newTestGateway(t, jsonHandler(t, nil, nil))

	_, err := gw.CreateCheckout(context.Background(), gateway.CheckoutArgs{})
	require.Error(t, err)
	assert.Equal(t, gateway.ErrValidation, gateway.KindOf(err))
}

func TestCancelSubscription(t *testing.T) {
	var patchBody []byte
	gw, _, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/subscriptions/sub-9", r.URL.Path)
		patchBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"data":{"type":"subscriptions","id":"sub-9","attributes":{"status":"cancelled"}}}`))
	}))

	require.NoError(t, gw.CancelSubscription(context.Background(), "sub-9"))

	var patch subscriptionPatch
	require.NoError(t, json.Unmarshal(patchBody, &patch))
	assert.Equal(t, true, patch.Data.Attributes["cancelled"])
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhookSignature(t *testing.T) {
	gw, _, _ := newTestGateway(t, jsonHandler(t, nil, nil))
	body := []byte(`{"meta":{"event_name":"order_created"},"data":{"id":"1"}}`)
	sig := signBody("whsec_test", body)

	assert.True(t, gw.ValidateWebhookSignature(body, sig, nil))

	// Uppercase hex and surrounding whitespace are tolerated.
	assert.True(t, gw.ValidateWebhookSignature(body, "  "+strings.ToUpper(sig)+"\n", nil))

	// Any single bit flip in the body must break the signature.
	for i := range body {
		for bit := 0; bit < 8; bit++ {
			flipped := make([]byte, len(body))
			copy(flipped, body)
			flipped[i] ^= 1 << bit
			if gw.ValidateWebhookSignature(flipped, sig, nil) {
				t.Fatalf("signature accepted after flipping bit %d of byte %d", bit, i)
			}
		}
	}

	assert.False(t, gw.ValidateWebhookSignature(body, "", nil))
	assert.False(t, gw.ValidateWebhookSignature(body, "not-hex", nil))
	assert.False(t, gw.ValidateWebhookSignature(body, signBody("other-secret", body), nil))
}

func TestValidateWebhookSignatureNoSecret(t *testing.T) {
	cfg := &config.LemonSqueezy{BaseApiURL: "http://unused", StoreID: "7"}
	gw := New(cfg, &fakeProcessor{}, &fakeUserIndex{}, testLogger())

	body := []byte(`{}`)
	assert.False(t, gw.ValidateWebhookSignature(body, signBody("", body), nil))
}

func decodeEnvelope(t *testing.T, body string) *gateway.WebhookEnvelope {
	t.Helper()
	var env gateway.WebhookEnvelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	return &env
}

func TestHandleWebhookOrderCreated(t *testing.T) {
	gw, proc, _ := newTestGateway(t, jsonHandler(t, nil, nil))

	env := decodeEnvelope(t, `{
		"meta": {"event_name": "order_created", "custom_data": {"user_id": "42"}},
		"data": {"type": "orders", "id": "1001", "attributes": {
			"customer_id": 55, "currency": "USD", "status": "paid", "total": 1999,
			"first_order_item": {"product_id": 42, "variant_id": 4201}
		}}
	}`)

	require.NoError(t, gw.HandleWebhook(context.Background(), env, nil))
	require.Len(t, proc.orders, 1)
	assert.Empty(t, proc.subscriptions)
	assert.Empty(t, proc.refunds)

	ev := proc.orders[0]
	assert.Equal(t, gateway.EventOrderCreated, ev.Name)
	assert.Equal(t, "1001", ev.Transaction.ID)
	assert.Equal(t, gateway.TxPaid, ev.Transaction.Status)
	require.NotNil(t, ev.LocalUserID)
	assert.Equal(t, int64(42), *ev.LocalUserID)
}

func TestHandleWebhookRefund(t *testing.T) {
	gw, proc, _ := newTestGateway(t, jsonHandler(t, nil, nil))

	env := decodeEnvelope(t, `{
		"meta": {"event_name": "order_refunded"},
		"data": {"type": "orders", "id": "1001", "attributes": {
			"currency": "USD", "status": "refunded", "total": 1999,
			"refunded": true, "refunded_amount": 1999,
			"first_order_item": {"product_id": 42}
		}}
	}`)

	require.NoError(t, gw.HandleWebhook(context.Background(), env, nil))
	require.Len(t, proc.refunds, 1)
	assert.Empty(t, proc.orders)
	assert.True(t, proc.refunds[0].Transaction.Refunded)
}

func TestHandleWebhookSubscriptionUserFallback(t *testing.T) {
	gw, proc, index := newTestGateway(t, jsonHandler(t, nil, nil))
	index.users["sub-9"] = 42

	// No user id in the payload; the local index resolves the owner.
	env := decodeEnvelope(t, `{
		"meta": {"event_name": "subscription_cancelled"},
		"data": {"type": "subscriptions", "id": "sub-9", "attributes": {
			"customer_id": 55, "product_id": 42, "status": "cancelled",
			"updated_at": "2026-08-02T00:00:00Z"
		}}
	}`)

	require.NoError(t, gw.HandleWebhook(context.Background(), env, nil))
	require.Len(t, proc.subscriptions, 1)

	ev := proc.subscriptions[0]
	assert.Equal(t, gateway.EventSubscriptionCancelled, ev.Name)
	assert.Equal(t, gateway.StatusCancelled, ev.Subscription.Status)
	require.NotNil(t, ev.LocalUserID)
	assert.Equal(t, int64(42), *ev.LocalUserID)
}

func TestHandleWebhookUnknownEvent(t *testing.T) {
	gw, proc, _ := newTestGateway(t, jsonHandler(t, nil, nil))

	env := decodeEnvelope(t, `{
		"meta": {"event_name": "affiliate_activated"},
		"data": {"type": "affiliates", "id": "a-1", "attributes": {}}
	}`)

	require.NoError(t, gw.HandleWebhook(context.Background(), env, nil))
	assert.Empty(t, proc.subscriptions)
	assert.Empty(t, proc.orders)
	assert.Empty(t, proc.refunds)
}
