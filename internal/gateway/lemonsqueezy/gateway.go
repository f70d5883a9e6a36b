// Package lemonsqueezy implements the payment-gateway contract against the
// Lemon Squeezy REST API: catalogue reads, hosted-checkout creation,
// subscription management, and the webhook event dispatch that drives the
// subscription lifecycle.
package lemonsqueezy

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"course-billing/internal/config"
	"course-billing/internal/gateway"
	"course-billing/internal/lifecycle"

	"github.com/sirupsen/logrus"
)

const (
	gatewayID   = "lemon_squeezy"
	gatewayName = "Lemon Squeezy"

	defaultPageSize = 50
)

// Processor consumes normalized lifecycle events. Satisfied by
// *lifecycle.Tracker.
type Processor interface {
	ApplySubscription(ctx context.Context, ev lifecycle.SubscriptionEvent) error
	RecordOrder(ctx context.Context, ev lifecycle.OrderEvent) error
	RecordRefund(ctx context.Context, ev lifecycle.OrderEvent) error
}

// UserIndex resolves a provider subscription id to the local user that
// owns it, for events whose metadata carries no user id.
type UserIndex interface {
	LocalUserFor(ctx context.Context, subscriptionID string) (int64, bool, error)
}

type Gateway struct {
	client        *client
	storeID       string
	webhookSecret string
	testMode      bool
	processor     Processor
	userIndex     UserIndex
	log           *logrus.Entry
}

func New(cfg *config.LemonSqueezy, processor Processor, userIndex UserIndex, log *logrus.Logger) *Gateway {
	gw := &Gateway{
		client:        newClient(cfg, log),
		storeID:       cfg.StoreID,
		webhookSecret: cfg.WebhookSecret,
		testMode:      cfg.TestMode,
		processor:     processor,
		userIndex:     userIndex,
		log:           log.WithField("component", "lemonsqueezy"),
	}
	if cfg.APIKey == "" {
		gw.log.Warn("API key not configured")
	}
	if cfg.StoreID == "" {
		gw.log.Warn("store ID not configured")
	}
	return gw
}

func (g *Gateway) ID() string   { return gatewayID }
func (g *Gateway) Name() string { return gatewayName }

// TestConnection verifies stored credentials with a lightweight store read.
func (g *Gateway) TestConnection(ctx context.Context) error {
	if g.storeID == "" {
		return gateway.NewError(gateway.ErrAuth, "store ID is required")
	}

	var resp apiOneResponse
	if err := g.client.get(ctx, "/stores/"+g.storeID, nil, &resp); err != nil {
		return err
	}

	var attrs storeAttributes
	if err := json.Unmarshal(resp.Data.Attributes, &attrs); err != nil || attrs.Name == "" {
		return gateway.NewError(gateway.ErrInvalidResponse, "store response missing name")
	}

	g.log.WithField("store", attrs.Name).Info("gateway connection verified")
	return nil
}

func (g *Gateway) GetProducts(ctx context.Context, filter gateway.ProductFilter) ([]gateway.Product, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = defaultPageSize
	}

	query := url.Values{}
	query.Set("filter[store_id]", g.storeID)
	query.Set("page[number]", strconv.Itoa(filter.Page))
	query.Set("page[size]", strconv.Itoa(filter.PerPage))
	if filter.Status != "" {
		query.Set("filter[status]", filter.Status)
	}

	var resp apiListResponse
	if err := g.client.get(ctx, "/products", query, &resp); err != nil {
		return nil, err
	}

	products := make([]gateway.Product, 0, len(resp.Data))
	for _, res := range resp.Data {
		p, err := normalizeProduct(res)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

func (g *Gateway) GetProduct(ctx context.Context, productID string) (*gateway.Product, error) {
	var resp apiOneResponse
	if err := g.client.get(ctx, "/products/"+productID, nil, &resp); err != nil {
		return nil, err
	}
	return normalizeProduct(resp.Data)
}

// CreateCheckout builds a hosted checkout for a product. The provider sells
// variants, not products, so the first purchasable variant is resolved
// first; a product with no variants cannot be sold and fails as
// invalid_product. The local user id is planted as custom metadata, which
// is how later webhooks are tied back to a platform account.
func (g *Gateway) CreateCheckout(ctx context.Context, args gateway.CheckoutArgs) (*gateway.CheckoutSession, error) {
	if args.ProductID == "" {
		return nil, gateway.NewError(gateway.ErrValidation, "product id is required")
	}

	variantID, err := g.resolveVariant(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}

	checkoutData := map[string]interface{}{}
	if args.CustomerEmail != "" {
		checkoutData["email"] = args.CustomerEmail
	}
	if args.CustomerName != "" {
		checkoutData["name"] = args.CustomerName
	}
	if args.LocalUserID > 0 {
		checkoutData["custom"] = map[string]string{
			"user_id": strconv.FormatInt(args.LocalUserID, 10),
		}
	}

	payload := checkoutPayload{
		Data: checkoutPayloadData{
			Type: "checkouts",
			Attributes: checkoutPayloadAttrs{
				CustomPrice: customPriceMinor(args.CustomPrice),
				ProductOptions: map[string]interface{}{
					"enabled_variants": []string{variantID},
				},
				CheckoutOptions: map[string]interface{}{
					"embed": args.Embed,
				},
				CheckoutData: checkoutData,
			},
			Relationships: checkoutRelationships{
				Store:   relationship{Data: relationshipData{Type: "stores", ID: g.storeID}},
				Variant: relationship{Data: relationshipData{Type: "variants", ID: variantID}},
			},
		},
	}

	var resp apiOneResponse
	if err := g.client.post(ctx, "/checkouts", payload, &resp); err != nil {
		return nil, err
	}
	return normalizeCheckout(resp.Data)
}

func (g *Gateway) resolveVariant(ctx context.Context, productID string) (string, error) {
	query := url.Values{}
	query.Set("filter[product_id]", productID)

	var resp apiListResponse
	if err := g.client.get(ctx, "/variants", query, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", gateway.NewError(gateway.ErrInvalidProduct,
			fmt.Sprintf("product %s has no purchasable variant", productID))
	}
	return resp.Data[0].ID, nil
}

func (g *Gateway) GetCheckoutSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	var resp apiOneResponse
	if err := g.client.get(ctx, "/checkouts/"+sessionID, nil, &resp); err != nil {
		return nil, err
	}
	return normalizeCheckout(resp.Data)
}

func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (*gateway.Subscription, error) {
	var resp apiOneResponse
	if err := g.client.get(ctx, "/subscriptions/"+subscriptionID, nil, &resp); err != nil {
		return nil, err
	}
	return normalizeSubscription(resp.Data)
}

func (g *Gateway) UpdateSubscription(ctx context.Context, subscriptionID string, args gateway.UpdateArgs) (*gateway.Subscription, error) {
	attrs := map[string]interface{}{}
	if args.Pause != nil {
		if *args.Pause {
			attrs["pause"] = map[string]string{"mode": "void"}
		} else {
			attrs["pause"] = nil
		}
	}
	if args.BillingAnchor > 0 {
		attrs["billing_anchor"] = args.BillingAnchor
	}

	payload := subscriptionPatch{
		Data: subscriptionPatchData{
			Type:       "subscriptions",
			ID:         subscriptionID,
			Attributes: attrs,
		},
	}

	var resp apiOneResponse
	if err := g.client.patch(ctx, "/subscriptions/"+subscriptionID, payload, &resp); err != nil {
		return nil, err
	}
	return normalizeSubscription(resp.Data)
}

func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	payload := subscriptionPatch{
		Data: subscriptionPatchData{
			Type:       "subscriptions",
			ID:         subscriptionID,
			Attributes: map[string]interface{}{"cancelled": true},
		},
	}
	return g.client.patch(ctx, "/subscriptions/"+subscriptionID, payload, nil)
}

func (g *Gateway) GetCustomerSubscriptions(ctx context.Context, customerID string) ([]gateway.Subscription, error) {
	query := url.Values{}
	query.Set("filter[store_id]", g.storeID)
	query.Set("filter[customer_id]", customerID)

	var resp apiListResponse
	if err := g.client.get(ctx, "/subscriptions", query, &resp); err != nil {
		return nil, err
	}

	subs := make([]gateway.Subscription, 0, len(resp.Data))
	for _, res := range resp.Data {
		s, err := normalizeSubscription(res)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, nil
}

func (g *Gateway) GetCustomerTransactions(ctx context.Context, customerID string, filter gateway.TransactionFilter) ([]gateway.Transaction, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = defaultPageSize
	}

	query := url.Values{}
	query.Set("filter[store_id]", g.storeID)
	query.Set("filter[customer_id]", customerID)
	query.Set("page[number]", strconv.Itoa(filter.Page))
	query.Set("page[size]", strconv.Itoa(filter.PerPage))

	var resp apiListResponse
	if err := g.client.get(ctx, "/orders", query, &resp); err != nil {
		return nil, err
	}

	txs := make([]gateway.Transaction, 0, len(resp.Data))
	for _, res := range resp.Data {
		tx, err := normalizeTransaction(res)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

// ValidateWebhookSignature checks the lowercase-hex HMAC-SHA256 of the raw
// request body against the shared webhook secret. The comparison is
// constant time; the body is never parsed before verification.
func (g *Gateway) ValidateWebhookSignature(rawBody []byte, signature string, _ http.Header) bool {
	if g.webhookSecret == "" {
		g.log.Warn("webhook secret not configured")
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), decoded)
}

// HandleWebhook dispatches a verified envelope by event name. Unknown
// events are logged and acknowledged as success so new provider event
// types never break delivery.
func (g *Gateway) HandleWebhook(ctx context.Context, env *gateway.WebhookEnvelope, _ http.Header) error {
	eventName := env.Meta.EventName
	g.log.WithField("event", eventName).Info("processing webhook event")

	switch eventName {
	case gateway.EventOrderCreated:
		return g.handleOrderEvent(ctx, env, g.processor.RecordOrder)

	case gateway.EventOrderRefunded:
		return g.handleOrderEvent(ctx, env, g.processor.RecordRefund)

	case gateway.EventSubscriptionCreated,
		gateway.EventSubscriptionUpdated,
		gateway.EventSubscriptionCancelled,
		gateway.EventSubscriptionResumed,
		gateway.EventSubscriptionExpired,
		gateway.EventSubscriptionPaused,
		gateway.EventSubscriptionUnpaused,
		gateway.EventSubscriptionPayFailed,
		gateway.EventSubscriptionPaySuccess:
		return g.handleSubscriptionEvent(ctx, env)

	default:
		g.log.WithField("event", eventName).Warn("unhandled webhook event, acknowledging")
		return nil
	}
}

func (g *Gateway) handleOrderEvent(ctx context.Context, env *gateway.WebhookEnvelope, record func(context.Context, lifecycle.OrderEvent) error) error {
	var res apiResource
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return gateway.WrapError(gateway.ErrValidation, "decode order payload", err)
	}
	tx, err := normalizeTransaction(res)
	if err != nil {
		return err
	}

	ev := lifecycle.OrderEvent{Name: env.Meta.EventName, Transaction: *tx}
	if userID, ok := ResolveLocalUser(env); ok {
		ev.LocalUserID = &userID
	}
	return record(ctx, ev)
}

func (g *Gateway) handleSubscriptionEvent(ctx context.Context, env *gateway.WebhookEnvelope) error {
	var res apiResource
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return gateway.WrapError(gateway.ErrValidation, "decode subscription payload", err)
	}
	sub, err := normalizeSubscription(res)
	if err != nil {
		return err
	}

	ev := lifecycle.SubscriptionEvent{Name: env.Meta.EventName, Subscription: *sub}
	if userID, ok := ResolveLocalUser(env); ok {
		ev.LocalUserID = &userID
	} else if userID, ok, err := g.userIndex.LocalUserFor(ctx, sub.ID); err != nil {
		return fmt.Errorf("look up subscription owner: %w", err)
	} else if ok {
		ev.LocalUserID = &userID
	}

	return g.processor.ApplySubscription(ctx, ev)
}
