package usecase

import (
	"context"
	"errors"
	"time"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"

	"github.com/labstack/gommon/log"
)

const reaperBatchSize = 100

// PendingOrderReaper は支払われないまま古くなったPENDING注文をSYSTEMとしてキャンセルし、確保した数量を戻す
type PendingOrderReaper struct {
	tx       repo.TransactionManager
	orders   *OrderUsecase
	clock    Clock
	ttl      time.Duration
	interval time.Duration
	logger   *log.Logger
}

func NewPendingOrderReaper(tx repo.TransactionManager, orders *OrderUsecase, clock Clock, ttl time.Duration, interval time.Duration, logger *log.Logger) *PendingOrderReaper {
	if logger == nil {
		logger = log.New("reaper")
	}
	return &PendingOrderReaper{tx: tx, orders: orders, clock: clock, ttl: ttl, interval: interval, logger: logger}
}

// Run はctxが終わるまで定期実行する。ttl<=0なら何もしない
func (p *PendingOrderReaper) Run(ctx context.Context) {
	if p.ttl <= 0 || p.interval <= 0 {
		p.logger.Infof("pending order reaper disabled")
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.RunOnce(ctx)
			if err != nil {
				p.logger.Errorf("reap pending orders: %v", err)
				continue
			}
			if n > 0 {
				p.logger.Infof("cancelled %d stale pending orders", n)
			}
		}
	}
}

// RunOnce は1回分。キャンセルした件数を返す
func (p *PendingOrderReaper) RunOnce(ctx context.Context) (int, error) {
	cutoff := p.clock.Now().Add(-p.ttl)

	var stale []model.Order
	err := p.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		stale, err = r.Orders().ListPendingCreatedBefore(ctx, cutoff, reaperBatchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range stale {
		_, err := p.orders.CancelStalePending(ctx, o.ID)
		if errors.Is(err, ErrInvalidTransition) {
			//直前に支払われた。問題なし
			p.logger.Debugf("order %d changed before reaping", o.ID)
			continue
		}
		if err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}
