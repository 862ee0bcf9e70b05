package repository

import (
	"context"
	"errors"
	"time"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// 同じ注文への支払い開始を直列にする（sqliteでは何もしない）
func (r *OrderGormRepository) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindByPickupCode(ctx context.Context, code string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("pickup_code = ?", code).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("buyer_id = ?", buyerID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at desc").Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

// 店舗のキュー。古い順（先に来た注文から処理する）
func (r *OrderGormRepository) ListForRestaurant(ctx context.Context, f repo.RestaurantOrderFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("restaurant_id = ?", f.RestaurantID)

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at asc").Order("id asc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListPendingCreatedBefore(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OrderStatusPending, before).
		Order("created_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, err
	}
	return items, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, repo.ErrDuplicate
		}
		return 0, err
	}
	return order.ID, nil
}

// UPDATE ... WHERE id = ? AND status = ?
// 同じ注文への同時操作は片方だけが通る
func (r *OrderGormRepository) UpdateStatusIfCurrent(ctx context.Context, orderID int64, ch repo.StatusChange) (bool, error) {
	updates := map[string]interface{}{
		"status":     ch.To,
		"updated_at": ch.At,
	}
	if ch.PaidAt != nil {
		updates["paid_at"] = *ch.PaidAt
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, ch.From).
		Updates(updates)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) SetPickupCodeIfAbsent(ctx context.Context, orderID int64, code string) (bool, error) {
	var affected int64

	//postgresはtx内でエラーが出るとtx全体が使えなくなるのでsavepointで囲む
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND pickup_code IS NULL", orderID).
			Update("pickup_code", code)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, repo.ErrDuplicate
	}
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *OrderGormRepository) RedeemPickupCode(ctx context.Context, code string, restaurantID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("pickup_code = ? AND restaurant_id = ? AND status = ? AND pickup_code_spent_at IS NULL",
			code, restaurantID, model.OrderStatusReady).
		Updates(map[string]interface{}{
			"status":               model.OrderStatusCompleted,
			"pickup_code_spent_at": at,
			"updated_at":           at,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error) {
	//新規チェックアウトでは見つからないのが普通なのでFirstは使わない
	var orders []model.Order
	res := r.db.WithContext(ctx).
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).
		Limit(1).
		Find(&orders)
	if res.Error != nil {
		return model.Order{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return model.Order{}, false, nil
	}
	return orders[0], true, nil
}
