package repository

import (
	"context"
	"errors"
	"time"

	"course-billing/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleSnapshot is returned when an event carries a provider timestamp
// older than the stored row; the caller absorbs it as already-processed.
var ErrStaleSnapshot = errors.New("subscription snapshot is older than stored state")

type SubscriptionRepository interface {
	// ApplySnapshot inserts or conditionally overwrites the row for
	// sub.SubscriptionID. The update only wins when the stored
	// provider_updated_at is not newer than the snapshot's, which is the
	// serialization point for concurrent deliveries of the same
	// subscription. Returns ErrStaleSnapshot when the row is fresher.
	ApplySnapshot(ctx context.Context, sub *model.Subscription) error

	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	// LocalUserFor resolves the owning platform user from the stored row,
	// if the association has been established.
	LocalUserFor(ctx context.Context, subscriptionID string) (int64, bool, error)
	ListByLocalUser(ctx context.Context, localUserID int64) ([]*model.Subscription, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{db: db}
}

func (r *subscriptionRepoImpl) ApplySnapshot(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Insert path: first event for this subscription wins the row.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(sub)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var current model.Subscription
		if err := tx.Where("subscription_id = ?", sub.SubscriptionID).First(&current).Error; err != nil {
			return err
		}

		// The user association is immutable for the life of the
		// subscription; never let a later event repoint it.
		localUserID := current.LocalUserID
		if localUserID == nil {
			localUserID = sub.LocalUserID
		}

		res = tx.Model(&model.Subscription{}).
			Where("subscription_id = ? AND provider_updated_at <= ?",
				sub.SubscriptionID, sub.ProviderUpdatedAt).
			Updates(map[string]interface{}{
				"customer_id":         sub.CustomerID,
				"product_id":          sub.ProductID,
				"variant_id":          sub.VariantID,
				"status":              sub.Status,
				"local_user_id":       localUserID,
				"card_brand":          sub.CardBrand,
				"card_last4":          sub.CardLast4,
				"trial_ends_at":       sub.TrialEndsAt,
				"renews_at":           sub.RenewsAt,
				"ends_at":             sub.EndsAt,
				"provider_updated_at": sub.ProviderUpdatedAt,
				"test_mode":           sub.TestMode,
				"updated_at":          time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleSnapshot
		}

		sub.LocalUserID = localUserID
		return nil
	})
}

func (r *subscriptionRepoImpl) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) LocalUserFor(ctx context.Context, subscriptionID string) (int64, bool, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Select("local_user_id").
		Where("subscription_id = ?", subscriptionID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if sub.LocalUserID == nil {
		return 0, false, nil
	}
	return *sub.LocalUserID, true, nil
}

func (r *subscriptionRepoImpl) ListByLocalUser(ctx context.Context, localUserID int64) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("local_user_id = ?", localUserID).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
