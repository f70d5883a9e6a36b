package lemonsqueezy

import (
	"encoding/json"
	"time"
)

// JSON:API resource shapes as the provider sends them. Attributes stay raw
// until the resource type is known.
type apiResource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

type apiListResponse struct {
	Data []apiResource `json:"data"`
}

type apiOneResponse struct {
	Data apiResource `json:"data"`
}

type apiErrorResponse struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type storeAttributes struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type productAttributes struct {
	StoreID     int64     `json:"store_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Price       int64     `json:"price"`
	BuyNowURL   string    `json:"buy_now_url"`
	ThumbURL    string    `json:"thumb_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Present on embedded payloads only; used for type detection.
	Variants []struct {
		Attributes struct {
			IsSubscription bool `json:"is_subscription"`
		} `json:"attributes"`
	} `json:"variants"`
}

type variantAttributes struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	Price          int64  `json:"price"`
	IsSubscription bool   `json:"is_subscription"`
	Status         string `json:"status"`
}

type checkoutAttributes struct {
	StoreID   int64      `json:"store_id"`
	URL       string     `json:"url"`
	EmbedURL  string     `json:"embed_url"`
	ExpiresAt *time.Time `json:"expires_at"`
	TestMode  bool       `json:"test_mode"`
	CreatedAt time.Time  `json:"created_at"`
}

type subscriptionAttributes struct {
	StoreID      int64  `json:"store_id"`
	CustomerID   int64  `json:"customer_id"`
	OrderID      int64  `json:"order_id"`
	ProductID    int64  `json:"product_id"`
	VariantID    int64  `json:"variant_id"`
	Status       string `json:"status"`
	CardBrand    string `json:"card_brand"`
	CardLastFour string `json:"card_last_four"`
	Cancelled    bool   `json:"cancelled"`
	Pause        *struct {
		Mode string `json:"mode"`
	} `json:"pause"`
	TrialEndsAt *time.Time `json:"trial_ends_at"`
	RenewsAt    *time.Time `json:"renews_at"`
	EndsAt      *time.Time `json:"ends_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	TestMode    bool       `json:"test_mode"`

	// Order metadata rides along on subscription events and can carry the
	// purchasing user's id.
	Order *struct {
		Custom map[string]json.RawMessage `json:"custom"`
	} `json:"order"`
}

type orderAttributes struct {
	StoreID        int64     `json:"store_id"`
	CustomerID     int64     `json:"customer_id"`
	OrderNumber    int64     `json:"order_number"`
	UserName       string    `json:"user_name"`
	UserEmail      string    `json:"user_email"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	Subtotal       int64     `json:"subtotal"`
	DiscountTotal  int64     `json:"discount_total"`
	Tax            int64     `json:"tax"`
	Total          int64     `json:"total"`
	Refunded       bool      `json:"refunded"`
	RefundedAmount int64     `json:"refunded_amount"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	TestMode       bool      `json:"test_mode"`

	FirstOrderItem struct {
		ProductID int64 `json:"product_id"`
		VariantID int64 `json:"variant_id"`
	} `json:"first_order_item"`

	Custom map[string]json.RawMessage `json:"custom"`
}

// checkoutPayload is the request body for POST /checkouts.
type checkoutPayload struct {
	Data checkoutPayloadData `json:"data"`
}

type checkoutPayloadData struct {
	Type          string                `json:"type"`
	Attributes    checkoutPayloadAttrs  `json:"attributes"`
	Relationships checkoutRelationships `json:"relationships"`
}

type checkoutPayloadAttrs struct {
	CustomPrice     *int64                 `json:"custom_price,omitempty"`
	ProductOptions  map[string]interface{} `json:"product_options"`
	CheckoutOptions map[string]interface{} `json:"checkout_options"`
	CheckoutData    map[string]interface{} `json:"checkout_data"`
}

type checkoutRelationships struct {
	Store   relationship `json:"store"`
	Variant relationship `json:"variant"`
}

type relationship struct {
	Data relationshipData `json:"data"`
}

type relationshipData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// subscriptionPatch is the request body for PATCH /subscriptions/{id}.
type subscriptionPatch struct {
	Data subscriptionPatchData `json:"data"`
}

type subscriptionPatchData struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Attributes map[string]interface{} `json:"attributes"`
}
