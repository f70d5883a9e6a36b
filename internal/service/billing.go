package service

import (
	"context"
	"errors"
	"fmt"

	"course-billing/internal/dto"
	"course-billing/internal/gateway"
	"course-billing/internal/model"
	"course-billing/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrSubscriptionNotFound covers both the local store and provider misses.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// BillingService is the platform-facing surface: checkout creation,
// catalogue reads, and subscription/ledger queries. Webhook ingestion goes
// through the handler straight to the gateway; this service never mutates
// lifecycle state itself.
type BillingService interface {
	CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest) (*dto.CreateCheckoutResponse, error)
	GetProducts(ctx context.Context, filter gateway.ProductFilter) ([]dto.ProductResponse, error)
	GetProduct(ctx context.Context, productID string) (*dto.ProductResponse, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetCustomerSubscriptions(ctx context.Context, customerID string) ([]dto.SubscriptionResponse, error)
	GetCustomerTransactions(ctx context.Context, customerID string, filter gateway.TransactionFilter) ([]dto.TransactionResponse, error)
	TestGatewayConnection(ctx context.Context) error
}

type billingServiceImpl struct {
	gw   gateway.PaymentGateway
	subs repository.SubscriptionRepository
	log  *logrus.Entry
}

func NewBillingService(gw gateway.PaymentGateway, subs repository.SubscriptionRepository, log *logrus.Logger) BillingService {
	return &billingServiceImpl{
		gw:   gw,
		subs: subs,
		log:  log.WithField("component", "billing_service"),
	}
}

func (s *billingServiceImpl) CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest) (*dto.CreateCheckoutResponse, error) {
	args := gateway.CheckoutArgs{
		ProductID:     req.ProductID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		LocalUserID:   req.UserID,
		Embed:         req.Embed,
	}
	if req.CustomPrice != "" {
		price, err := decimal.NewFromString(req.CustomPrice)
		if err != nil || price.IsNegative() {
			return nil, gateway.NewError(gateway.ErrValidation, "invalid custom price")
		}
		args.CustomPrice = &price
	}

	session, err := s.gw.CreateCheckout(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	resp := &dto.CreateCheckoutResponse{
		CheckoutID: session.ID,
		URL:        session.URL,
		EmbedURL:   session.EmbedURL,
	}
	if !session.ExpiresAt.IsZero() {
		t := session.ExpiresAt
		resp.ExpiresAt = &t
	}
	return resp, nil
}

func (s *billingServiceImpl) GetProducts(ctx context.Context, filter gateway.ProductFilter) ([]dto.ProductResponse, error) {
	products, err := s.gw.GetProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]dto.ProductResponse, len(products))
	for i := range products {
		out[i] = productResponse(&products[i])
	}
	return out, nil
}

func (s *billingServiceImpl) GetProduct(ctx context.Context, productID string) (*dto.ProductResponse, error) {
	product, err := s.gw.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	resp := productResponse(product)
	return &resp, nil
}

// GetSubscription reads the authoritative local row; the provider is not
// consulted because webhook delivery keeps the row eventually consistent.
func (s *billingServiceImpl) GetSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.subs.GetBySubscriptionID(ctx, subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	resp := subscriptionResponse(sub)
	return &resp, nil
}

// CancelSubscription asks the provider to cancel; the local row transitions
// when the subscription_cancelled webhook lands, keeping one source of
// state transitions.
func (s *billingServiceImpl) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if err := s.gw.CancelSubscription(ctx, subscriptionID); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	s.log.WithField("subscription_id", subscriptionID).Info("cancellation requested")
	return nil
}

func (s *billingServiceImpl) GetCustomerSubscriptions(ctx context.Context, customerID string) ([]dto.SubscriptionResponse, error) {
	subs, err := s.gw.GetCustomerSubscriptions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer subscriptions: %w", err)
	}

	out := make([]dto.SubscriptionResponse, len(subs))
	for i := range subs {
		sub := subs[i]
		out[i] = dto.SubscriptionResponse{
			SubscriptionID: sub.ID,
			CustomerID:     sub.CustomerID,
			ProductID:      sub.ProductID,
			Status:         string(sub.Status),
			TestMode:       sub.TestMode,
		}
		if !sub.TrialEndsAt.IsZero() {
			t := sub.TrialEndsAt
			out[i].TrialEndsAt = &t
		}
		if !sub.RenewsAt.IsZero() {
			t := sub.RenewsAt
			out[i].RenewsAt = &t
		}
		if !sub.EndsAt.IsZero() {
			t := sub.EndsAt
			out[i].EndsAt = &t
		}
	}
	return out, nil
}

func (s *billingServiceImpl) GetCustomerTransactions(ctx context.Context, customerID string, filter gateway.TransactionFilter) ([]dto.TransactionResponse, error) {
	txs, err := s.gw.GetCustomerTransactions(ctx, customerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list customer transactions: %w", err)
	}

	out := make([]dto.TransactionResponse, len(txs))
	for i := range txs {
		tx := txs[i]
		out[i] = dto.TransactionResponse{
			OrderID:        tx.ID,
			CustomerID:     tx.CustomerID,
			ProductID:      tx.ProductID,
			OrderNumber:    tx.OrderNumber,
			Status:         string(tx.Status),
			Currency:       tx.Currency,
			Subtotal:       tx.Subtotal.String(),
			Tax:            tx.Tax.String(),
			Total:          tx.Total.String(),
			Refunded:       tx.Refunded,
			RefundedAmount: tx.RefundedAmount.String(),
		}
	}
	return out, nil
}

func (s *billingServiceImpl) TestGatewayConnection(ctx context.Context) error {
	return s.gw.TestConnection(ctx)
}

func productResponse(p *gateway.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Currency:    p.Currency,
		Type:        string(p.Type),
		Status:      p.Status,
		BuyNowURL:   p.BuyNowURL,
	}
}

func subscriptionResponse(sub *model.Subscription) dto.SubscriptionResponse {
	return dto.SubscriptionResponse{
		SubscriptionID: sub.SubscriptionID,
		CustomerID:     sub.CustomerID,
		ProductID:      sub.ProductID,
		Status:         sub.Status,
		UserID:         sub.LocalUserID,
		TrialEndsAt:    sub.TrialEndsAt,
		RenewsAt:       sub.RenewsAt,
		EndsAt:         sub.EndsAt,
		TestMode:       sub.TestMode,
	}
}
