package model

import (
	"time"

	"gorm.io/gorm"
)

// 余剰食品（カタログ側の持ち物。ここでは参照と数量の確保だけ）
type Food struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RestaurantID int64          `gorm:"not null;index" json:"restaurant_id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Price        int64          `gorm:"not null" json:"price"`
	Quantity     int64          `gorm:"not null" json:"quantity"`
	IsAvailable  bool           `gorm:"not null;default:false" json:"is_available"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
