package repository

import (
	"context"
	"time"

	"foodrescue/internal/domain/model"
)

// 店舗向けキューの絞り込み
type RestaurantOrderFilter struct {
	RestaurantID int64
	Status       model.OrderStatus
	Page         int
	Limit        int
}

// 条件付き更新で一緒に書く列
type StatusChange struct {
	From   model.OrderStatus
	To     model.OrderStatus
	PaidAt *time.Time
	At     time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	//行ロック付き（tx内で使う）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	FindByPickupCode(ctx context.Context, code string) (model.Order, error)
	ListByBuyerID(ctx context.Context, buyerID int64, page int, limit int) ([]model.Order, int64, error)
	ListForRestaurant(ctx context.Context, f RestaurantOrderFilter) ([]model.Order, int64, error)
	ListPendingCreatedBefore(ctx context.Context, before time.Time, limit int) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//status = From のときだけ To にする。更新できなければ false（競合）
	UpdateStatusIfCurrent(ctx context.Context, orderID int64, ch StatusChange) (bool, error)

	UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) error

	//未発行のときだけ書く。既にあれば false、他の注文と衝突なら ErrDuplicate
	SetPickupCodeIfAbsent(ctx context.Context, orderID int64, code string) (bool, error)

	//READY かつ店舗一致のときだけ COMPLETED にしてコードを使用済みにする
	RedeemPickupCode(ctx context.Context, code string, restaurantID int64, at time.Time) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error)
}
