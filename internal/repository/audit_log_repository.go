package repository

import (
	"context"

	"foodrescue/internal/domain/model"
)

// 監査ログは追記だけ。読むのは注文ごとの履歴
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error

	//注文と、その注文への決済の記録を古い順で
	ListByOrderID(ctx context.Context, orderID int64, limit int) ([]model.AuditLog, error)
}
