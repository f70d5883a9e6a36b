package repository

import (
	"context"
	"time"

	"course-billing/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookDeliveryRepository interface {
	// MarkProcessed records a delivery marker and reports whether this
	// call created it. false means the identical delivery was already
	// fully processed and side effects must be skipped.
	MarkProcessed(ctx context.Context, eventName, entityID string, entityUpdatedAt time.Time) (bool, error)
	Seen(ctx context.Context, eventName, entityID string, entityUpdatedAt time.Time) (bool, error)
	// PurgeOlderThan trims markers past the retention window.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type webhookDeliveryRepoImpl struct {
	db *gorm.DB
}

func NewWebhookDeliveryRepository(db *gorm.DB) WebhookDeliveryRepository {
	return &webhookDeliveryRepoImpl{db: db}
}

func (r *webhookDeliveryRepoImpl) MarkProcessed(ctx context.Context, eventName, entityID string, entityUpdatedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.WebhookDelivery{
			EventName:       eventName,
			EntityID:        entityID,
			EntityUpdatedAt: entityUpdatedAt,
			ProcessedAt:     time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *webhookDeliveryRepoImpl) Seen(ctx context.Context, eventName, entityID string, entityUpdatedAt time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WebhookDelivery{}).
		Where("event_name = ? AND entity_id = ? AND entity_updated_at = ?",
			eventName, entityID, entityUpdatedAt).
		Count(&count).Error
	return count > 0, err
}

func (r *webhookDeliveryRepoImpl) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.WebhookDelivery{})
	return res.RowsAffected, res.Error
}
