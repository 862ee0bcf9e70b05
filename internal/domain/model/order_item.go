package model

import "time"

// 注文時点の価格スナップショット
type OrderItem struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          int64     `gorm:"not null;index" json:"order_id"`
	FoodID           int64     `gorm:"not null;index" json:"food_id"`
	FoodNameSnapshot string    `gorm:"type:varchar(255);not null" json:"food_name_snapshot"`
	PriceAtOrderTime int64     `gorm:"not null" json:"price_at_order_time"`
	Quantity         int64     `gorm:"not null" json:"quantity"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// OrderTotal は Σ(price_at_order_time × quantity)
func OrderTotal(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.PriceAtOrderTime * it.Quantity
	}
	return total
}
