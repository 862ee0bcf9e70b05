package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 遷移表。ここに無い組み合わせは全部不正
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusReady},
	OrderStatusReady:     {OrderStatusCompleted},
}

// AllOrderStatuses は定義済みステータスの一覧（表示順）
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusConfirmed,
		OrderStatusReady,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusConfirmed,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// 終端（COMPLETED / CANCELLED）からは動かない
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition は from → to が遷移表にあるか
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// 1注文 = 1店舗。明細と金額は作成後に変更しない
type Order struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID       int64         `gorm:"not null;index;uniqueIndex:idx_orders_buyer_idem,priority:1" json:"buyer_id"`
	RestaurantID  int64         `gorm:"not null;index" json:"restaurant_id"`
	Subtotal      int64         `gorm:"not null" json:"subtotal"`
	Total         int64         `gorm:"not null" json:"total"`
	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`

	//PAIDになった時に一度だけ発行。NULLは未発行
	PickupCode        *string    `gorm:"type:varchar(32);uniqueIndex" json:"pickup_code,omitempty"`
	PickupCodeSpentAt *time.Time `json:"pickup_code_spent_at,omitempty"`

	Notes          string     `gorm:"type:text" json:"notes,omitempty"`
	IdempotencyKey string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_buyer_idem,priority:2" json:"-"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}
