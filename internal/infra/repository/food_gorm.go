package repository

import (
	"context"
	"errors"
	"strings"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"

	"gorm.io/gorm"
)

type FoodGormRepository struct {
	db *gorm.DB
}

func NewFoodGormRepository(db *gorm.DB) *FoodGormRepository {
	return &FoodGormRepository{db: db}
}

// 論理削除されたものは見えない（gorm.DeletedAt）
func (r *FoodGormRepository) FindByID(ctx context.Context, id int64) (model.Food, error) {
	var f model.Food
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Food{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Food{}, err
	}
	return f, nil
}

func (r *FoodGormRepository) ListAvailable(ctx context.Context, q repo.FoodListQuery) ([]model.Food, int64, error) {
	var foods []model.Food
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Food{})

	//販売中かつ残りがあるもの（論理削除はgormが外す）
	tx = tx.Where("is_available = ? AND quantity > 0", true)

	if q.RestaurantID != nil {
		tx = tx.Where("restaurant_id = ?", *q.RestaurantID)
	}

	// q nameを対象。sqliteでも動くようにLOWERでそろえる
	if strings.TrimSpace(q.Q) != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(q.Q)) + "%"
		tx = tx.Where("LOWER(name) LIKE ?", like)
	}

	//価格帯
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Food{}, 0, err
	}

	//sort
	switch q.Sort {
	case "price_asc":
		tx = tx.Order("price asc").Order("id asc")
	case "price_desc":
		tx = tx.Order("price desc").Order("id desc")
	default:
		tx = tx.Order("created_at desc").Order("id desc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Offset(offset).Limit(q.Limit).Find(&foods).Error; err != nil {
		return []model.Food{}, 0, err
	}

	return foods, total, nil
}

// 数量が足りるときだけ減らす
func (r *FoodGormRepository) ReserveIfEnough(ctx context.Context, foodID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Food{}).
		Where("id = ? AND is_available = ? AND quantity >= ?", foodID, true, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// 数量戻し（キャンセル）。削除済みの食品にも戻す
func (r *FoodGormRepository) Release(ctx context.Context, foodID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Food{}).
		Where("id = ?", foodID).
		Update("quantity", gorm.Expr("quantity + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
