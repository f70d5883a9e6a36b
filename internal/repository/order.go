package repository

import (
	"context"
	"time"

	"course-billing/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	// CreateIfAbsent inserts the order row once; a replayed order_created
	// event is reported through the returned bool (false = already there).
	CreateIfAbsent(ctx context.Context, order *model.Order) (bool, error)
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	// UpdateRefund touches the only mutable order facts.
	UpdateRefund(ctx context.Context, orderID string, refunded bool, refundedAmount int64) error
	ListByLocalUser(ctx context.Context, localUserID int64) ([]*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) CreateIfAbsent(ctx context.Context, order *model.Order) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepoImpl) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) UpdateRefund(ctx context.Context, orderID string, refunded bool, refundedAmount int64) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"refunded":        refunded,
			"refunded_amount": refundedAmount,
			"status":          statusForRefund(refunded),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func statusForRefund(refunded bool) string {
	if refunded {
		return "refunded"
	}
	return "paid"
}

func (r *orderRepoImpl) ListByLocalUser(ctx context.Context, localUserID int64) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("local_user_id = ?", localUserID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
