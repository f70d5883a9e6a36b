// Package notify is the boundary to user-facing messaging. Payment-failure
// events only notify; actual email delivery is owned by an external system.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Notifier interface {
	PaymentFailed(ctx context.Context, localUserID int64, subscriptionID string) error
}

// logNotifier records the failure for the external messaging pipeline to
// pick up from the log stream.
type logNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(log *logrus.Logger) Notifier {
	return &logNotifier{log: log.WithField("component", "notify")}
}

func (n *logNotifier) PaymentFailed(ctx context.Context, localUserID int64, subscriptionID string) error {
	n.log.WithFields(logrus.Fields{
		"user_id":         localUserID,
		"subscription_id": subscriptionID,
		"event":           "payment_failed",
	}).Warn("subscription payment failed")
	return nil
}
