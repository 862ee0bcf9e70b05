package model

import "time"

type AuditAction string

const (
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//決済コールバックを処理した。
	AuditActionPaymentCallback AuditAction = "PAYMENT_CALLBACK"
	//受け取りコードを発行した。
	AuditActionIssuePickupCode AuditAction = "ISSUE_PICKUP_CODE"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder   AuditResourceType = "order"
	AuditResourcePayment AuditResourceType = "payment"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザーのID。SYSTEMは0
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	//BUYER / RESTAURANT / ADMIN / SYSTEM
	ActorRole Role `gorm:"type:varchar(20);not null" json:"actor_role"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//どの注文の履歴か。決済の記録も注文にぶら下げる
	OrderID int64 `gorm:"not null;index" json:"order_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
