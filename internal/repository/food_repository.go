package repository

import (
	"context"

	"foodrescue/internal/domain/model"
)

// GET /foods の検索条件
type FoodListQuery struct {
	RestaurantID *int64
	Q            string
	MinPrice     *int64
	MaxPrice     *int64
	Sort         string // "" / new / price_asc / price_desc
	Page         int
	Limit        int
}

// 外部カタログの参照と数量確保だけを約束。CRUDはカタログ側。
type FoodRepository interface {
	//削除済みはErrNotFound
	FindByID(ctx context.Context, id int64) (model.Food, error)

	//販売中で残りがあるものだけ
	ListAvailable(ctx context.Context, q FoodListQuery) ([]model.Food, int64, error)

	// 数量が足りるときだけ減算
	ReserveIfEnough(ctx context.Context, foodID int64, qty int64) (bool, error)

	// 数量戻し（キャンセル）
	Release(ctx context.Context, foodID int64, qty int64) error
}
