package model

import "time"

// Subscription is the authoritative local record of a provider
// subscription, keyed by the provider-assigned id. Exactly one row exists
// per provider subscription; rows are never hard-deleted, only moved to a
// terminal status.
type Subscription struct {
	SubscriptionID string `gorm:"primaryKey;size:64;not null"`
	CustomerID     string `gorm:"size:64;index;not null"`
	ProductID      string `gorm:"size:64;index;not null"`
	VariantID      string `gorm:"size:64"`
	Status         string `gorm:"size:32;index;not null"`
	// LocalUserID links the subscription to the platform account that
	// bought it. Resolved once from checkout metadata; immutable after.
	LocalUserID *int64 `gorm:"index"`
	CardBrand   string `gorm:"size:32"`
	CardLast4   string `gorm:"size:8"`
	TrialEndsAt *time.Time
	RenewsAt    *time.Time
	EndsAt      *time.Time
	// ProviderUpdatedAt is the provider's own updated_at for the snapshot
	// this row reflects; stale events carry an older value and are dropped.
	ProviderUpdatedAt time.Time `gorm:"index;not null"`
	TestMode          bool      `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Order is the ledger row for a completed purchase. Amounts are integer
// minor units in the order's currency. Purchase facts are immutable; only
// the refund fields may change after creation.
type Order struct {
	OrderID        string `gorm:"primaryKey;size:64;not null"`
	CustomerID     string `gorm:"size:64;index;not null"`
	ProductID      string `gorm:"size:64;index"`
	VariantID      string `gorm:"size:64"`
	OrderNumber    int64  `gorm:"index"`
	Status         string `gorm:"size:32;index;not null"`
	Currency       string `gorm:"size:8;not null"`
	Subtotal       int64  `gorm:"not null"`
	Discount       int64  `gorm:"not null"`
	Tax            int64  `gorm:"not null"`
	Total          int64  `gorm:"not null"`
	Refunded       bool   `gorm:"not null"`
	RefundedAmount int64  `gorm:"not null"`
	LocalUserID    *int64 `gorm:"index"`
	TestMode       bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WebhookDelivery is the de-duplication marker for at-least-once delivery.
// A delivery is fully identified by what happened, to which entity, at
// which provider timestamp; replays hit the unique index and are absorbed.
type WebhookDelivery struct {
	ID              uint      `gorm:"primaryKey"`
	EventName       string    `gorm:"size:64;uniqueIndex:idx_delivery,priority:1;not null"`
	EntityID        string    `gorm:"size:64;uniqueIndex:idx_delivery,priority:2;not null"`
	EntityUpdatedAt time.Time `gorm:"uniqueIndex:idx_delivery,priority:3;not null"`
	ProcessedAt     time.Time
	CreatedAt       time.Time `gorm:"index"`
}
