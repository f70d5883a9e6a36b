package lemonsqueezy

import (
	"encoding/json"
	"strconv"
	"strings"

	"course-billing/internal/gateway"

	"github.com/shopspring/decimal"
)

// The provider stamps most stores in USD; the attribute set carries no
// currency on products, so normalization falls back to this.
const defaultCurrency = "USD"

func normalizeProduct(res apiResource) (*gateway.Product, error) {
	var attrs productAttributes
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return nil, gateway.WrapError(gateway.ErrInvalidResponse, "decode product attributes", err)
	}

	return &gateway.Product{
		ID:          res.ID,
		Name:        attrs.Name,
		Description: attrs.Description,
		Price:       gateway.MinorToMajor(attrs.Price, defaultCurrency),
		Currency:    defaultCurrency,
		Type:        determineProductType(&attrs),
		Status:      attrs.Status,
		BuyNowURL:   attrs.BuyNowURL,
		CreatedAt:   attrs.CreatedAt,
		UpdatedAt:   attrs.UpdatedAt,
	}, nil
}

// determineProductType inspects embedded variants when present; products
// without a recurring variant are one-time purchases.
func determineProductType(attrs *productAttributes) gateway.ProductType {
	for _, v := range attrs.Variants {
		if v.Attributes.IsSubscription {
			return gateway.ProductSubscription
		}
	}
	return gateway.ProductOneTime
}

func normalizeCheckout(res apiResource) (*gateway.CheckoutSession, error) {
	var attrs checkoutAttributes
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return nil, gateway.WrapError(gateway.ErrInvalidResponse, "decode checkout attributes", err)
	}

	session := &gateway.CheckoutSession{
		ID:       res.ID,
		URL:      attrs.URL,
		EmbedURL: attrs.EmbedURL,
		TestMode: attrs.TestMode,
	}
	if attrs.ExpiresAt != nil {
		session.ExpiresAt = *attrs.ExpiresAt
	}
	return session, nil
}

func normalizeSubscription(res apiResource) (*gateway.Subscription, error) {
	var attrs subscriptionAttributes
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return nil, gateway.WrapError(gateway.ErrInvalidResponse, "decode subscription attributes", err)
	}

	sub := &gateway.Subscription{
		ID:         res.ID,
		CustomerID: formatID(attrs.CustomerID),
		OrderID:    formatID(attrs.OrderID),
		ProductID:  formatID(attrs.ProductID),
		VariantID:  formatID(attrs.VariantID),
		Status:     normalizeSubscriptionStatus(attrs.Status),
		CardBrand:  attrs.CardBrand,
		CardLast4:  attrs.CardLastFour,
		CreatedAt:  attrs.CreatedAt,
		UpdatedAt:  attrs.UpdatedAt,
		TestMode:   attrs.TestMode,
	}
	if attrs.TrialEndsAt != nil {
		sub.TrialEndsAt = *attrs.TrialEndsAt
	}
	if attrs.RenewsAt != nil {
		sub.RenewsAt = *attrs.RenewsAt
	}
	if attrs.EndsAt != nil {
		sub.EndsAt = *attrs.EndsAt
	}
	return sub, nil
}

// normalizeSubscriptionStatus maps the provider's vocabulary onto the
// contract's status set.
func normalizeSubscriptionStatus(status string) gateway.SubscriptionStatus {
	switch strings.ToLower(status) {
	case "on_trial", "trialing":
		return gateway.StatusTrialing
	case "active":
		return gateway.StatusActive
	case "paused":
		return gateway.StatusPaused
	case "cancelled", "canceled":
		return gateway.StatusCancelled
	case "expired":
		return gateway.StatusExpired
	case "unpaid", "past_due":
		return gateway.StatusUnpaid
	default:
		return gateway.SubscriptionStatus(strings.ToLower(status))
	}
}

func normalizeTransaction(res apiResource) (*gateway.Transaction, error) {
	var attrs orderAttributes
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return nil, gateway.WrapError(gateway.ErrInvalidResponse, "decode order attributes", err)
	}

	currency := attrs.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	return &gateway.Transaction{
		ID:             res.ID,
		CustomerID:     formatID(attrs.CustomerID),
		ProductID:      formatID(attrs.FirstOrderItem.ProductID),
		VariantID:      formatID(attrs.FirstOrderItem.VariantID),
		OrderNumber:    attrs.OrderNumber,
		Status:         normalizeTransactionStatus(attrs.Status),
		Currency:       currency,
		Subtotal:       gateway.MinorToMajor(attrs.Subtotal, currency),
		Discount:       gateway.MinorToMajor(attrs.DiscountTotal, currency),
		Tax:            gateway.MinorToMajor(attrs.Tax, currency),
		Total:          gateway.MinorToMajor(attrs.Total, currency),
		Refunded:       attrs.Refunded,
		RefundedAmount: gateway.MinorToMajor(attrs.RefundedAmount, currency),
		CustomerEmail:  attrs.UserEmail,
		CustomerName:   attrs.UserName,
		CreatedAt:      attrs.CreatedAt,
		UpdatedAt:      attrs.UpdatedAt,
		TestMode:       attrs.TestMode,
	}, nil
}

func normalizeTransactionStatus(status string) gateway.TransactionStatus {
	switch strings.ToLower(status) {
	case "paid":
		return gateway.TxPaid
	case "refunded", "partial_refund":
		return gateway.TxRefunded
	case "failed":
		return gateway.TxFailed
	default:
		return gateway.TxPending
	}
}

// ResolveLocalUser extracts the owning platform user id from an event
// envelope. The id is planted at checkout time as custom metadata; every
// handler resolves it through this one function. The secondary
// subscription-to-user index is consulted by the caller when this returns
// false.
func ResolveLocalUser(env *gateway.WebhookEnvelope) (int64, bool) {
	if raw, ok := env.Meta.CustomData["user_id"]; ok {
		if id, ok := parseUserID(raw); ok {
			return id, true
		}
	}

	// Older checkouts carried the id inside the order's custom block.
	var res apiResource
	if err := json.Unmarshal(env.Data, &res); err != nil {
		return 0, false
	}
	var attrs struct {
		Custom map[string]json.RawMessage `json:"custom"`
		Order  *struct {
			Custom map[string]json.RawMessage `json:"custom"`
		} `json:"order"`
	}
	if err := json.Unmarshal(res.Attributes, &attrs); err != nil {
		return 0, false
	}
	if raw, ok := attrs.Custom["user_id"]; ok {
		if id, ok := parseUserID(raw); ok {
			return id, true
		}
	}
	if attrs.Order != nil {
		if raw, ok := attrs.Order.Custom["user_id"]; ok {
			if id, ok := parseUserID(raw); ok {
				return id, true
			}
		}
	}
	return 0, false
}

// parseUserID accepts both JSON string and number encodings; checkout
// custom data is stringly typed on the wire.
func parseUserID(raw json.RawMessage) (int64, bool) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		id, err := strconv.ParseInt(strings.TrimSpace(asString), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil && asNumber > 0 {
		return asNumber, true
	}
	return 0, false
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// customPriceMinor converts an operator-supplied major-unit override into
// the provider's integer cents.
func customPriceMinor(price *decimal.Decimal) *int64 {
	if price == nil {
		return nil
	}
	minor := gateway.MajorToMinor(*price, defaultCurrency)
	return &minor
}
