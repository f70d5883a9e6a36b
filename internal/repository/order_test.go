package repository

import (
	"context"
	"testing"
	"time"

	"course-billing/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func paidOrder(orderID string) *model.Order {
	return &model.Order{
		OrderID:     orderID,
		CustomerID:  "55",
		ProductID:   "42",
		OrderNumber: 314,
		Status:      "paid",
		Currency:    "USD",
		Subtotal:    1999,
		Tax:         380,
		Total:       2379,
		LocalUserID: int64ptr(42),
	}
}

func TestCreateIfAbsent(t *testing.T) {
	repo := NewOrderRepository(testDB(t))
	ctx := context.Background()

	created, err := repo.CreateIfAbsent(ctx, paidOrder("1001"))
	require.NoError(t, err)
	assert.True(t, created)

	// Replay of the same order must not produce a second ledger row.
	created, err = repo.CreateIfAbsent(ctx, paidOrder("1001"))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.FindByOrderID(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(2379), got.Total)
}

func TestUpdateRefund(t *testing.T) {
	repo := NewOrderRepository(testDB(t))
	ctx := context.Background()

	_, err := repo.CreateIfAbsent(ctx, paidOrder("1001"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateRefund(ctx, "1001", true, 2379))

	got, err := repo.FindByOrderID(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, got.Refunded)
	assert.Equal(t, int64(2379), got.RefundedAmount)
	assert.Equal(t, "refunded", got.Status)

	err = repo.UpdateRefund(ctx, "missing", true, 100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestWebhookDeliveryMarkers(t *testing.T) {
	repo := NewWebhookDeliveryRepository(testDB(t))
	ctx := context.Background()

	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seen, err := repo.Seen(ctx, "subscription_cancelled", "sub-1", ts)
	require.NoError(t, err)
	assert.False(t, seen)

	created, err := repo.MarkProcessed(ctx, "subscription_cancelled", "sub-1", ts)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.MarkProcessed(ctx, "subscription_cancelled", "sub-1", ts)
	require.NoError(t, err)
	assert.False(t, created)

	seen, err = repo.Seen(ctx, "subscription_cancelled", "sub-1", ts)
	require.NoError(t, err)
	assert.True(t, seen)

	// Same entity at a later provider timestamp is a distinct delivery.
	created, err = repo.MarkProcessed(ctx, "subscription_cancelled", "sub-1", ts.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, created)

	purged, err := repo.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)
}
