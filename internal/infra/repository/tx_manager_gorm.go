package repository

import (
	"context"

	repo "foodrescue/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	payments   repo.PaymentRepository
	foods      repo.FoodRepository
	auditLogs  repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository         { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *txReposGorm) Payments() repo.PaymentRepository     { return r.payments }
func (r *txReposGorm) Foods() repo.FoodRepository           { return r.foods }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newTxRepos(tx))
	})
}

func newTxRepos(db *gorm.DB) *txReposGorm {
	return &txReposGorm{
		orders:     NewOrderGormRepository(db),
		orderItems: NewOrderItemGormRepository(db),
		payments:   NewPaymentGormRepository(db),
		foods:      NewFoodGormRepository(db),
		auditLogs:  NewAuditLogGormRepository(db),
	}
}
