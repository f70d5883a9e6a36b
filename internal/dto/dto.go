package dto

import "time"

type CreateCheckoutRequest struct {
	ProductID     string `json:"product_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	UserID        int64  `json:"user_id"`
	// CustomPrice is a major-unit decimal string, e.g. "19.99".
	CustomPrice string `json:"custom_price,omitempty"`
	Embed       bool   `json:"embed,omitempty"`
}

type CreateCheckoutResponse struct {
	CheckoutID string     `json:"checkout_id"`
	URL        string     `json:"url"`
	EmbedURL   string     `json:"embed_url,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type ProductResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	BuyNowURL   string `json:"buy_now_url,omitempty"`
}

type SubscriptionResponse struct {
	SubscriptionID string     `json:"subscription_id"`
	CustomerID     string     `json:"customer_id"`
	ProductID      string     `json:"product_id"`
	Status         string     `json:"status"`
	UserID         *int64     `json:"user_id,omitempty"`
	TrialEndsAt    *time.Time `json:"trial_ends_at,omitempty"`
	RenewsAt       *time.Time `json:"renews_at,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	TestMode       bool       `json:"test_mode"`
}

type TransactionResponse struct {
	OrderID        string `json:"order_id"`
	CustomerID     string `json:"customer_id"`
	ProductID      string `json:"product_id,omitempty"`
	OrderNumber    int64  `json:"order_number,omitempty"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	Subtotal       string `json:"subtotal"`
	Tax            string `json:"tax"`
	Total          string `json:"total"`
	Refunded       bool   `json:"refunded"`
	RefundedAmount string `json:"refunded_amount"`
}
