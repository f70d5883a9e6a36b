package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"course-billing/internal/dto"
	"course-billing/internal/gateway"
	"course-billing/internal/model"
	"course-billing/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeGateway records the checkout args it is given and returns canned
// responses.
type fakeGateway struct {
	gateway.PaymentGateway
	checkoutArgs *gateway.CheckoutArgs
	checkoutErr  error
	cancelled    []string
}

func (f *fakeGateway) ID() string   { return "fake" }
func (f *fakeGateway) Name() string { return "Fake" }

func (f *fakeGateway) CreateCheckout(_ context.Context, args gateway.CheckoutArgs) (*gateway.CheckoutSession, error) {
	f.checkoutArgs = &args
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &gateway.CheckoutSession{ID: "co-1", URL: "https://example.test/co-1"}, nil
}

func (f *fakeGateway) CancelSubscription(_ context.Context, subscriptionID string) error {
	f.cancelled = append(f.cancelled, subscriptionID)
	return nil
}

func (f *fakeGateway) GetProducts(_ context.Context, _ gateway.ProductFilter) ([]gateway.Product, error) {
	return []gateway.Product{{
		ID:       "42",
		Name:     "Go Course",
		Price:    decimal.RequireFromString("19.99"),
		Currency: "USD",
		Type:     gateway.ProductSubscription,
		Status:   "published",
	}}, nil
}

func newService(t *testing.T, gw gateway.PaymentGateway) (BillingService, repository.SubscriptionRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Subscription{}))

	log := logrus.New()
	log.SetOutput(io.Discard)

	subs := repository.NewSubscriptionRepository(db)
	return NewBillingService(gw, subs, log), subs
}

func TestCreateCheckoutPassesArgs(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := newService(t, gw)

	resp, err := svc.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
		ProductID:     "42",
		CustomerEmail: "ada@example.com",
		UserID:        42,
		CustomPrice:   "24.99",
	})
	require.NoError(t, err)
	assert.Equal(t, "co-1", resp.CheckoutID)

	require.NotNil(t, gw.checkoutArgs)
	assert.Equal(t, "42", gw.checkoutArgs.ProductID)
	assert.Equal(t, int64(42), gw.checkoutArgs.LocalUserID)
	require.NotNil(t, gw.checkoutArgs.CustomPrice)
	assert.Equal(t, "24.99", gw.checkoutArgs.CustomPrice.String())
}

func TestCreateCheckoutRejectsBadPrice(t *testing.T) {
	svc, _ := newService(t, &fakeGateway{})

	for _, price := range []string{"abc", "-5.00"} {
		_, err := svc.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
			ProductID:   "42",
			CustomPrice: price,
		})
		require.Error(t, err, "price %q", price)
		assert.Equal(t, gateway.ErrValidation, gateway.KindOf(err))
	}
}

func TestGetProducts(t *testing.T) {
	svc, _ := newService(t, &fakeGateway{})

	products, err := svc.GetProducts(context.Background(), gateway.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "19.99", products[0].Price)
	assert.Equal(t, "subscription", products[0].Type)
}

func TestGetSubscriptionLocalRow(t *testing.T) {
	svc, subs := newService(t, &fakeGateway{})
	ctx := context.Background()

	_, err := svc.GetSubscription(ctx, "missing")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	userID := int64(42)
	require.NoError(t, subs.ApplySnapshot(ctx, &model.Subscription{
		SubscriptionID:    "sub-1",
		CustomerID:        "55",
		ProductID:         "42",
		Status:            "active",
		LocalUserID:       &userID,
		ProviderUpdatedAt: time.Now().UTC(),
	}))

	resp, err := svc.GetSubscription(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Status)
	require.NotNil(t, resp.UserID)
	assert.Equal(t, int64(42), *resp.UserID)
}

func TestCancelSubscriptionDelegates(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := newService(t, gw)

	require.NoError(t, svc.CancelSubscription(context.Background(), "sub-1"))
	assert.Equal(t, []string{"sub-1"}, gw.cancelled)
}
