// Package lifecycle turns normalized billing events into authoritative
// subscription-state transitions and the enrollment side effects they
// imply. Events are re-applied against the latest stored state rather than
// assumed ordered; the store's conditional update is the serialization
// point, so replays and stale arrivals are absorbed without double-applying
// side effects.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"course-billing/internal/enrollment"
	"course-billing/internal/gateway"
	"course-billing/internal/model"
	"course-billing/internal/notify"
	"course-billing/internal/repository"

	"github.com/sirupsen/logrus"
)

type accessAction int

const (
	accessNone accessAction = iota
	accessGrant
	accessRevoke
	accessRevokeOnPausePolicy
)

// transition is the pure (event) -> (status override, side effect) row of
// the dispatch table. An empty status keeps whatever the snapshot says.
type transition struct {
	status        gateway.SubscriptionStatus
	access        accessAction
	notifyFailure bool
}

var transitions = map[string]transition{
	gateway.EventSubscriptionCreated:    {access: accessGrant},
	gateway.EventSubscriptionUpdated:    {},
	gateway.EventSubscriptionCancelled:  {status: gateway.StatusCancelled, access: accessRevoke},
	gateway.EventSubscriptionResumed:    {status: gateway.StatusActive, access: accessGrant},
	gateway.EventSubscriptionExpired:    {status: gateway.StatusExpired, access: accessRevoke},
	gateway.EventSubscriptionPaused:     {status: gateway.StatusPaused, access: accessRevokeOnPausePolicy},
	gateway.EventSubscriptionUnpaused:   {status: gateway.StatusActive, access: accessGrant},
	gateway.EventSubscriptionPayFailed:  {notifyFailure: true},
	gateway.EventSubscriptionPaySuccess: {access: accessGrant},
}

// SubscriptionEvent is a normalized lifecycle event plus the local user it
// was resolved to, when resolution succeeded.
type SubscriptionEvent struct {
	Name         string
	Subscription gateway.Subscription
	LocalUserID  *int64
}

// OrderEvent is a normalized purchase event.
type OrderEvent struct {
	Name        string
	Transaction gateway.Transaction
	LocalUserID *int64
}

type Tracker struct {
	subs          repository.SubscriptionRepository
	orders        repository.OrderRepository
	deliveries    repository.WebhookDeliveryRepository
	enroller      enrollment.Enroller
	notifier      notify.Notifier
	revokeOnPause bool
	log           *logrus.Entry
}

func NewTracker(
	subs repository.SubscriptionRepository,
	orders repository.OrderRepository,
	deliveries repository.WebhookDeliveryRepository,
	enroller enrollment.Enroller,
	notifier notify.Notifier,
	revokeOnPause bool,
	log *logrus.Logger,
) *Tracker {
	return &Tracker{
		subs:          subs,
		orders:        orders,
		deliveries:    deliveries,
		enroller:      enroller,
		notifier:      notifier,
		revokeOnPause: revokeOnPause,
		log:           log.WithField("component", "lifecycle"),
	}
}

// ApplySubscription applies one lifecycle event. Storage failures are
// returned so the endpoint reports a retryable attempt; stale and duplicate
// deliveries are absorbed as success; enrollment and notification failures
// are logged but never undo the state write.
func (t *Tracker) ApplySubscription(ctx context.Context, ev SubscriptionEvent) error {
	tr, ok := transitions[ev.Name]
	if !ok {
		// Dispatch should have filtered unknown names already; a miss here
		// is an internal inconsistency.
		return gateway.NewError(gateway.ErrValidation, fmt.Sprintf("no transition for event %q", ev.Name))
	}

	seen, err := t.deliveries.Seen(ctx, ev.Name, ev.Subscription.ID, ev.Subscription.UpdatedAt)
	if err != nil {
		return fmt.Errorf("check delivery marker: %w", err)
	}
	if seen {
		t.log.WithFields(logrus.Fields{
			"event":           ev.Name,
			"subscription_id": ev.Subscription.ID,
		}).Info("duplicate delivery absorbed")
		return nil
	}

	row := subscriptionRow(&ev.Subscription, ev.LocalUserID)
	if tr.status != "" {
		row.Status = string(tr.status)
	}

	if err := t.subs.ApplySnapshot(ctx, row); err != nil {
		if errors.Is(err, repository.ErrStaleSnapshot) {
			t.log.WithFields(logrus.Fields{
				"event":           ev.Name,
				"subscription_id": ev.Subscription.ID,
				"event_updated":   ev.Subscription.UpdatedAt,
			}).Info("stale event absorbed")
			return nil
		}
		return fmt.Errorf("apply subscription snapshot: %w", err)
	}

	t.runSideEffects(ctx, ev.Name, tr, row)

	if _, err := t.deliveries.MarkProcessed(ctx, ev.Name, ev.Subscription.ID, ev.Subscription.UpdatedAt); err != nil {
		// Re-delivery without a marker is safe; everything above is
		// idempotent.
		t.log.WithError(err).Warn("failed to record delivery marker")
	}

	t.log.WithFields(logrus.Fields{
		"event":           ev.Name,
		"subscription_id": ev.Subscription.ID,
		"status":          row.Status,
	}).Info("subscription event applied")
	return nil
}

func (t *Tracker) runSideEffects(ctx context.Context, eventName string, tr transition, row *model.Subscription) {
	action := tr.access
	if action == accessRevokeOnPausePolicy {
		if t.revokeOnPause {
			action = accessRevoke
		} else {
			action = accessNone
		}
	}
	// A fresh subscription only grants access when it is actually usable.
	if eventName == gateway.EventSubscriptionCreated &&
		row.Status != string(gateway.StatusActive) && row.Status != string(gateway.StatusTrialing) {
		action = accessNone
	}

	if row.LocalUserID == nil {
		if action != accessNone || tr.notifyFailure {
			t.log.WithFields(logrus.Fields{
				"event":           eventName,
				"subscription_id": row.SubscriptionID,
			}).Warn("no local user resolved; access unchanged")
		}
		return
	}
	userID := *row.LocalUserID

	switch action {
	case accessGrant:
		if err := t.enroller.Grant(ctx, userID, row.ProductID); err != nil {
			t.log.WithError(err).WithFields(logrus.Fields{
				"user_id": userID, "product_id": row.ProductID,
			}).Error("grant failed; enrollment will be reconciled by audit")
		}
	case accessRevoke:
		if err := t.enroller.Revoke(ctx, userID, row.ProductID); err != nil {
			t.log.WithError(err).WithFields(logrus.Fields{
				"user_id": userID, "product_id": row.ProductID,
			}).Error("revoke failed; enrollment will be reconciled by audit")
		}
	}

	if tr.notifyFailure {
		if err := t.notifier.PaymentFailed(ctx, userID, row.SubscriptionID); err != nil {
			t.log.WithError(err).Warn("payment-failure notification failed")
		}
	}
}

// RecordOrder creates the ledger row for an order_created event and grants
// access for paid one-time purchases. The insert-once ledger makes replays
// visible, so a duplicate delivery grants nothing twice.
func (t *Tracker) RecordOrder(ctx context.Context, ev OrderEvent) error {
	row := orderRow(&ev.Transaction, ev.LocalUserID)

	created, err := t.orders.CreateIfAbsent(ctx, row)
	if err != nil {
		return fmt.Errorf("store order: %w", err)
	}
	if !created {
		t.log.WithField("order_id", ev.Transaction.ID).Info("duplicate order delivery absorbed")
		return nil
	}

	if ev.Transaction.Status == gateway.TxPaid && ev.LocalUserID != nil {
		if err := t.enroller.Grant(ctx, *ev.LocalUserID, ev.Transaction.ProductID); err != nil {
			t.log.WithError(err).WithFields(logrus.Fields{
				"user_id": *ev.LocalUserID, "product_id": ev.Transaction.ProductID,
			}).Error("grant failed; enrollment will be reconciled by audit")
		}
	}

	if _, err := t.deliveries.MarkProcessed(ctx, ev.Name, ev.Transaction.ID, ev.Transaction.UpdatedAt); err != nil {
		t.log.WithError(err).Warn("failed to record delivery marker")
	}

	t.log.WithFields(logrus.Fields{
		"order_id": ev.Transaction.ID,
		"status":   ev.Transaction.Status,
	}).Info("order recorded")
	return nil
}

// RecordRefund updates the mutable refund facts of an existing order. A
// refund arriving before its order (out-of-order delivery) creates the row
// from the event snapshot instead.
func (t *Tracker) RecordRefund(ctx context.Context, ev OrderEvent) error {
	row := orderRow(&ev.Transaction, ev.LocalUserID)

	created, err := t.orders.CreateIfAbsent(ctx, row)
	if err != nil {
		return fmt.Errorf("store refunded order: %w", err)
	}
	if !created {
		currency := ev.Transaction.Currency
		err = t.orders.UpdateRefund(ctx, ev.Transaction.ID,
			ev.Transaction.Refunded,
			gateway.MajorToMinor(ev.Transaction.RefundedAmount, currency))
		if err != nil {
			return fmt.Errorf("update order refund: %w", err)
		}
	}

	t.log.WithFields(logrus.Fields{
		"order_id":        ev.Transaction.ID,
		"refunded_amount": ev.Transaction.RefundedAmount.String(),
	}).Info("order refund recorded")
	return nil
}

func subscriptionRow(sub *gateway.Subscription, localUserID *int64) *model.Subscription {
	row := &model.Subscription{
		SubscriptionID:    sub.ID,
		CustomerID:        sub.CustomerID,
		ProductID:         sub.ProductID,
		VariantID:         sub.VariantID,
		Status:            string(sub.Status),
		LocalUserID:       localUserID,
		CardBrand:         sub.CardBrand,
		CardLast4:         sub.CardLast4,
		ProviderUpdatedAt: sub.UpdatedAt,
		TestMode:          sub.TestMode,
	}
	if !sub.TrialEndsAt.IsZero() {
		t := sub.TrialEndsAt
		row.TrialEndsAt = &t
	}
	if !sub.RenewsAt.IsZero() {
		t := sub.RenewsAt
		row.RenewsAt = &t
	}
	if !sub.EndsAt.IsZero() {
		t := sub.EndsAt
		row.EndsAt = &t
	}
	return row
}

func orderRow(tx *gateway.Transaction, localUserID *int64) *model.Order {
	currency := tx.Currency
	return &model.Order{
		OrderID:        tx.ID,
		CustomerID:     tx.CustomerID,
		ProductID:      tx.ProductID,
		VariantID:      tx.VariantID,
		OrderNumber:    tx.OrderNumber,
		Status:         string(tx.Status),
		Currency:       currency,
		Subtotal:       gateway.MajorToMinor(tx.Subtotal, currency),
		Discount:       gateway.MajorToMinor(tx.Discount, currency),
		Tax:            gateway.MajorToMinor(tx.Tax, currency),
		Total:          gateway.MajorToMinor(tx.Total, currency),
		Refunded:       tx.Refunded,
		RefundedAmount: gateway.MajorToMinor(tx.RefundedAmount, currency),
		LocalUserID:    localUserID,
		TestMode:       tx.TestMode,
	}
}
