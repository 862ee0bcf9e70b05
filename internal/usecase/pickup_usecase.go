package usecase

import (
	"context"
	"errors"
	"time"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"

	"github.com/labstack/gommon/log"
)

// コードが他の注文と衝突したときの作り直し回数
const maxCodeAttempts = 5

type PickupUsecase struct {
	tx       repo.TransactionManager
	codes    CodeGenerator
	clock    Clock
	notifier Notifier
	logger   *log.Logger
}

func NewPickupUsecase(tx repo.TransactionManager, codes CodeGenerator, clock Clock, notifier Notifier, logger *log.Logger) *PickupUsecase {
	if logger == nil {
		logger = log.New("pickup")
	}
	return &PickupUsecase{tx: tx, codes: codes, clock: clock, notifier: notifier, logger: logger}
}

type VerifyPickupOutput struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// IssueCode は単体でtxを張る版。通常はPAID遷移と同じtxの中で issueCode が呼ばれる
func (u *PickupUsecase) IssueCode(ctx context.Context, orderID int64) (string, error) {
	var code string
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}
		if o.Status != model.OrderStatusPaid {
			return withMessage(ErrInvalidTransition, "pickup code is issued only for PAID orders (order is %s)", o.Status)
		}
		code, err = u.issueCode(ctx, r, orderID, u.clock.Now())
		return err
	})
	if err != nil {
		return "", normalize(err)
	}
	return code, nil
}

func (u *PickupUsecase) issueCode(ctx context.Context, r repo.TxRepos, orderID int64, now time.Time) (string, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := u.codes.NewCode()
		if err != nil {
			return "", internal(err)
		}

		ok, err := r.Orders().SetPickupCodeIfAbsent(ctx, orderID, code)
		if errors.Is(err, repo.ErrDuplicate) {
			//衝突は上書きせず作り直す
			u.logger.Warnf("pickup code collision order=%d attempt=%d", orderID, attempt)
			continue
		}
		if err != nil {
			return "", internal(err)
		}
		if !ok {
			//ここに来るのは二重発行のバグ
			u.logger.Errorf("pickup code already issued order=%d", orderID)
			return "", ErrCodeAlreadyIssued
		}

		//コード自体は監査ログに残さない
		if err := writeAudit(ctx, r, model.SystemActor(), model.AuditActionIssuePickupCode, model.AuditResourceOrder, orderID, orderID,
			map[string]interface{}{"issued": false},
			map[string]interface{}{"issued": true},
			now,
		); err != nil {
			return "", err
		}
		return code, nil
	}
	return "", internal(errors.New("could not generate a unique pickup code"))
}

// VerifyAndComplete は受け取り時のコード照合。
// 同じコードを同時に2回読んでも成功するのは1回だけ
func (u *PickupUsecase) VerifyAndComplete(ctx context.Context, rawCode string, actor model.Actor) (VerifyPickupOutput, error) {
	if actor.Role != model.RoleRestaurant || actor.RestaurantID <= 0 {
		return VerifyPickupOutput{}, ErrNotAuthorized
	}
	code, ok := NormalizePickupCode(rawCode)
	if !ok {
		return VerifyPickupOutput{}, ErrCodeNotFound
	}

	now := u.clock.Now()
	var completed model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByPickupCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCodeNotFound
		}
		if err != nil {
			return internal(err)
		}
		if o.RestaurantID != actor.RestaurantID {
			return ErrNotAuthorized
		}
		if o.Status != model.OrderStatusReady {
			return withMessage(ErrOrderNotReady, "order %d is %s", o.ID, o.Status)
		}

		redeemed, err := r.Orders().RedeemPickupCode(ctx, code, actor.RestaurantID, now)
		if err != nil {
			return internal(err)
		}
		if !redeemed {
			//同時に読まれて先を越された
			return withMessage(ErrOrderNotReady, "order %d was already picked up", o.ID)
		}

		if err := writeAudit(ctx, r, actor, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID, o.ID,
			map[string]interface{}{"status": o.Status},
			map[string]interface{}{"status": model.OrderStatusCompleted},
			now,
		); err != nil {
			return err
		}

		o.Status = model.OrderStatusCompleted
		o.PickupCodeSpentAt = &now
		o.UpdatedAt = now
		completed = o
		return nil
	})
	if err != nil {
		return VerifyPickupOutput{}, normalize(err)
	}

	notify(ctx, u.notifier, u.logger, completed, now)
	return VerifyPickupOutput{OrderID: completed.ID, Status: string(completed.Status)}, nil
}
