package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType discriminates one-off purchases from recurring billing.
type ProductType string

const (
	ProductOneTime      ProductType = "one_time"
	ProductSubscription ProductType = "subscription"
)

// SubscriptionStatus is the normalized lifecycle status. Provider-specific
// spellings are mapped into this set by the concrete gateway.
type SubscriptionStatus string

const (
	StatusTrialing  SubscriptionStatus = "trialing"
	StatusActive    SubscriptionStatus = "active"
	StatusPaused    SubscriptionStatus = "paused"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
	StatusUnpaid    SubscriptionStatus = "unpaid"
)

// Terminal reports whether s is an end state a subscription never leaves
// through provider events alone.
func (s SubscriptionStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

type TransactionStatus string

const (
	TxPending  TransactionStatus = "pending"
	TxPaid     TransactionStatus = "paid"
	TxRefunded TransactionStatus = "refunded"
	TxFailed   TransactionStatus = "failed"
)

// Product is a gateway-side catalogue entry, read-only from our side.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Type        ProductType
	Status      string
	BuyNowURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CheckoutSession is ephemeral; only the order/subscription it produces is
// ever persisted.
type CheckoutSession struct {
	ID        string
	URL       string
	EmbedURL  string
	ExpiresAt time.Time
	TestMode  bool
}

type Subscription struct {
	ID          string
	CustomerID  string
	OrderID     string
	ProductID   string
	VariantID   string
	Status      SubscriptionStatus
	CardBrand   string
	CardLast4   string
	TrialEndsAt time.Time
	RenewsAt    time.Time
	EndsAt      time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	TestMode    bool
}

// Transaction is an immutable record of a completed purchase; only the
// refund fields may change after creation.
type Transaction struct {
	ID             string
	CustomerID     string
	ProductID      string
	VariantID      string
	OrderNumber    int64
	Status         TransactionStatus
	Currency       string
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	Refunded       bool
	RefundedAmount decimal.Decimal
	CustomerEmail  string
	CustomerName   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	TestMode       bool
}

type ProductFilter struct {
	Page    int
	PerPage int
	Status  string
}

type TransactionFilter struct {
	Page    int
	PerPage int
}

type CheckoutArgs struct {
	ProductID     string
	CustomerEmail string
	CustomerName  string
	LocalUserID   int64
	// CustomPrice overrides the variant price when non-nil, in major units.
	CustomPrice *decimal.Decimal
	Embed       bool
}

type UpdateArgs struct {
	// Pause pauses (true) or resumes (false) billing when non-nil.
	Pause *bool
	// BillingAnchor moves the monthly billing day when non-zero.
	BillingAnchor int
}

// WebhookEnvelope is the provider's decoded event wrapper:
// { meta: { event_name, custom_data }, data: {...} }. Data stays raw so the
// concrete gateway can unmarshal it into its own payload shapes.
type WebhookEnvelope struct {
	Meta struct {
		EventName  string                     `json:"event_name"`
		CustomData map[string]json.RawMessage `json:"custom_data"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Webhook event names shared by the dispatch table and the lifecycle
// tracker. These follow the provider's vocabulary; a new provider maps its
// own names onto these.
const (
	EventOrderCreated           = "order_created"
	EventOrderRefunded          = "order_refunded"
	EventSubscriptionCreated    = "subscription_created"
	EventSubscriptionUpdated    = "subscription_updated"
	EventSubscriptionCancelled  = "subscription_cancelled"
	EventSubscriptionResumed    = "subscription_resumed"
	EventSubscriptionExpired    = "subscription_expired"
	EventSubscriptionPaused     = "subscription_paused"
	EventSubscriptionUnpaused   = "subscription_unpaused"
	EventSubscriptionPayFailed  = "subscription_payment_failed"
	EventSubscriptionPaySuccess = "subscription_payment_success"
)

// PaymentGateway is the provider-agnostic contract every payment backend
// implements. New providers are added as new implementations, never by
// branching on a provider name inside shared logic.
type PaymentGateway interface {
	ID() string
	Name() string

	TestConnection(ctx context.Context) error

	GetProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (*Product, error)

	CreateCheckout(ctx context.Context, args CheckoutArgs) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, args UpdateArgs) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetCustomerSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	GetCustomerTransactions(ctx context.Context, customerID string, filter TransactionFilter) ([]Transaction, error)

	// ValidateWebhookSignature checks the HMAC of the raw, unparsed request
	// body. Implementations must compare in constant time.
	ValidateWebhookSignature(rawBody []byte, signature string, header http.Header) bool

	// HandleWebhook dispatches a decoded envelope by event name. Unknown
	// event names are a successful no-op.
	HandleWebhook(ctx context.Context, envelope *WebhookEnvelope, header http.Header) error
}
