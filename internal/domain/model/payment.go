package model

import "time"

// 決済の記録。ステータスを変えるのは決済代行のコールバックだけ
type PaymentRecord struct {
	ID      int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID int64 `gorm:"not null;index" json:"order_id"`

	//こちらで採番して決済代行に渡す参照
	Reference string `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`

	//決済代行が返すID（冪等キー）。セッション作成前はNULL
	ExternalPaymentID *string `gorm:"type:varchar(255);uniqueIndex" json:"external_payment_id,omitempty"`

	PaymentURL  string        `gorm:"type:text" json:"payment_url,omitempty"`
	Amount      int64         `gorm:"not null" json:"amount"`
	Status      PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
