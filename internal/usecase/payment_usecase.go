package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"

	"github.com/labstack/gommon/log"
)

type PaymentUsecase struct {
	tx        repo.TransactionManager
	gateway   PaymentGateway
	pickup    *PickupUsecase
	ids       IDGenerator
	clock     Clock
	notifier  Notifier
	logger    *log.Logger
	currency  string
	returnURL string
	timeout   time.Duration
}

type PaymentSettings struct {
	Currency  string
	ReturnURL string
	Timeout   time.Duration
}

func NewPaymentUsecase(tx repo.TransactionManager, gateway PaymentGateway, pickup *PickupUsecase, ids IDGenerator, clock Clock, notifier Notifier, logger *log.Logger, s PaymentSettings) *PaymentUsecase {
	if logger == nil {
		logger = log.New("payment")
	}
	if s.Timeout <= 0 {
		s.Timeout = 10 * time.Second
	}
	return &PaymentUsecase{
		tx:        tx,
		gateway:   gateway,
		pickup:    pickup,
		ids:       ids,
		clock:     clock,
		notifier:  notifier,
		logger:    logger,
		currency:  s.Currency,
		returnURL: s.ReturnURL,
		timeout:   s.Timeout,
	}
}

type InitiatePaymentOutput struct {
	OrderID           int64  `json:"order_id"`
	Amount            int64  `json:"amount"`
	PaymentURL        string `json:"payment_url"`
	ExternalPaymentID string `json:"external_payment_id"`
}

type CallbackInput struct {
	ExternalPaymentID string
	Outcome           string
}

type CallbackOutput struct {
	OrderID     int64  `json:"order_id"`
	OrderStatus string `json:"order_status"`
	//false は再送などで何も変えなかった
	Applied bool `json:"applied"`
}

type PaymentStatusOutput struct {
	OrderID           int64      `json:"order_id"`
	OrderStatus       string     `json:"order_status"`
	PaymentStatus     string     `json:"payment_status"`
	Amount            int64      `json:"amount"`
	ExternalPaymentID string     `json:"external_payment_id,omitempty"`
	PaymentURL        string     `json:"payment_url,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

// InitiatePayment は決済代行にセッションを作り、支払いURLを返す。
// 記録を先に作ってから外部を呼ぶ（外部呼び出し中はtxを持たない）
func (u *PaymentUsecase) InitiatePayment(ctx context.Context, buyerID int64, orderID int64) (InitiatePaymentOutput, error) {
	if buyerID <= 0 {
		return InitiatePaymentOutput{}, ErrNotAuthorized
	}
	if orderID <= 0 {
		return InitiatePaymentOutput{}, withMessage(ErrValidation, "invalid order_id")
	}

	now := u.clock.Now()
	var rec model.PaymentRecord
	var open *model.PaymentRecord
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}
		if o.BuyerID != buyerID {
			return ErrNotFound
		}
		if o.Status != model.OrderStatusPending {
			return withMessage(ErrOrderNotPayable, "order %d is %s", o.ID, o.Status)
		}

		prev, err := r.Payments().FindLatestByOrderID(ctx, o.ID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
		case err != nil:
			return internal(err)
		case prev.Status == model.PaymentStatusSuccess:
			return withMessage(ErrOrderNotPayable, "order %d is already paid", o.ID)
		case prev.Status == model.PaymentStatusPending && prev.ExternalPaymentID != nil:
			//まだ開いているセッションを返す（再送で二重に請求しない）
			open = &prev
			return nil
		case prev.Status == model.PaymentStatusPending:
			if now.Sub(prev.CreatedAt) < u.timeout {
				return ErrPaymentInProgress
			}
			//セッション作成の途中で落ちた記録
			if _, err := r.Payments().UpdateStatusIfCurrent(ctx, prev.ID,
				[]model.PaymentStatus{model.PaymentStatusPending}, model.PaymentStatusFailed, now); err != nil {
				return internal(err)
			}
		}

		rec = model.PaymentRecord{
			OrderID:   o.ID,
			Reference: u.ids.NewID(),
			Amount:    o.Total,
			Status:    model.PaymentStatusPending,
			CreatedAt: now,
		}
		id, err := r.Payments().Create(ctx, rec)
		if err != nil {
			return internal(err)
		}
		rec.ID = id
		return nil
	})
	if err != nil {
		return InitiatePaymentOutput{}, normalize(err)
	}
	if open != nil {
		return InitiatePaymentOutput{
			OrderID:           open.OrderID,
			Amount:            open.Amount,
			PaymentURL:        open.PaymentURL,
			ExternalPaymentID: *open.ExternalPaymentID,
		}, nil
	}

	gctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	session, err := u.gateway.CreateSession(gctx, PaymentSessionRequest{
		Reference: rec.Reference,
		OrderID:   rec.OrderID,
		Amount:    rec.Amount,
		Currency:  u.currency,
		ReturnURL: u.returnURL,
	})
	if err != nil {
		u.logger.Warnf("create payment session order=%d ref=%s failed: %v", orderID, rec.Reference, err)
		u.failRecord(ctx, rec.ID)
		return InitiatePaymentOutput{}, &Error{Kind: KindGateway, Code: ErrGatewayUnavailable.Code, Message: ErrGatewayUnavailable.Message, cause: err}
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Payments().AttachSession(ctx, rec.ID, session.ExternalPaymentID, session.PaymentURL)
	})
	if err != nil {
		return InitiatePaymentOutput{}, internal(err)
	}

	return InitiatePaymentOutput{
		OrderID:           rec.OrderID,
		Amount:            rec.Amount,
		PaymentURL:        session.PaymentURL,
		ExternalPaymentID: session.ExternalPaymentID,
	}, nil
}

// セッションを作れなかった記録はFAILEDにしておく（ログだけ）
func (u *PaymentUsecase) failRecord(ctx context.Context, paymentID int64) {
	//呼び出し元がタイムアウトしていても記録は閉じる
	bg := context.WithoutCancel(ctx)
	err := u.tx.WithinTx(bg, func(r repo.TxRepos) error {
		_, err := r.Payments().UpdateStatusIfCurrent(bg, paymentID,
			[]model.PaymentStatus{model.PaymentStatusPending}, model.PaymentStatusFailed, u.clock.Now())
		return err
	})
	if err != nil {
		u.logger.Errorf("mark payment %d failed: %v", paymentID, err)
	}
}

// HandleCallback は決済代行からの結果通知。
// 同じ通知が何回来ても効果は1回だけ
func (u *PaymentUsecase) HandleCallback(ctx context.Context, in CallbackInput) (CallbackOutput, error) {
	extID := strings.TrimSpace(in.ExternalPaymentID)
	if extID == "" {
		return CallbackOutput{}, withMessage(ErrValidation, "external_payment_id is required")
	}
	outcome := model.PaymentStatus(strings.ToUpper(strings.TrimSpace(in.Outcome)))
	if outcome != model.PaymentStatusSuccess && outcome != model.PaymentStatusFailed {
		return CallbackOutput{}, withMessage(ErrValidation, "outcome must be SUCCESS or FAILED")
	}

	now := u.clock.Now()
	var out CallbackOutput
	var paid model.Order

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByExternalID(ctx, extID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return internal(err)
		}
		o, err := r.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return internal(err)
		}
		out = CallbackOutput{OrderID: o.ID, OrderStatus: string(o.Status)}

		if outcome == model.PaymentStatusFailed {
			return u.applyFailure(ctx, r, p, o, now, &out)
		}

		ok, err := r.Payments().UpdateStatusIfCurrent(ctx, p.ID,
			[]model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusFailed}, model.PaymentStatusSuccess, now)
		if err != nil {
			return internal(err)
		}
		if !ok {
			//再送。何もしない
			return nil
		}
		out.Applied = true

		if err := r.Orders().UpdatePaymentStatus(ctx, o.ID, model.PaymentStatusSuccess); err != nil {
			return internal(err)
		}
		if err := writeAudit(ctx, r, model.SystemActor(), model.AuditActionPaymentCallback, model.AuditResourcePayment, p.ID, o.ID,
			map[string]interface{}{"status": p.Status},
			map[string]interface{}{"status": model.PaymentStatusSuccess, "order_id": o.ID},
			now,
		); err != nil {
			return err
		}

		if o.Status != model.OrderStatusPending {
			u.warnRefund(o, p)
			return nil
		}

		updated, err := applyTransition(ctx, r, o, model.OrderStatusPaid, model.SystemActor(), now)
		if errors.Is(err, ErrInvalidTransition) {
			//同時にキャンセルされた
			cur, ferr := r.Orders().FindByID(ctx, o.ID)
			if ferr != nil {
				return internal(ferr)
			}
			out.OrderStatus = string(cur.Status)
			u.warnRefund(cur, p)
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := u.pickup.issueCode(ctx, r, o.ID, now); err != nil {
			return err
		}
		paid = updated
		out.OrderStatus = string(updated.Status)
		return nil
	})
	if err != nil {
		return CallbackOutput{}, normalize(err)
	}

	if paid.ID != 0 {
		notify(ctx, u.notifier, u.logger, paid, now)
	}
	return out, nil
}

func (u *PaymentUsecase) applyFailure(ctx context.Context, r repo.TxRepos, p model.PaymentRecord, o model.Order, now time.Time, out *CallbackOutput) error {
	ok, err := r.Payments().UpdateStatusIfCurrent(ctx, p.ID,
		[]model.PaymentStatus{model.PaymentStatusPending}, model.PaymentStatusFailed, now)
	if err != nil {
		return internal(err)
	}
	if !ok {
		return nil
	}
	out.Applied = true

	//注文はPENDINGのまま（購入者は払い直せる）
	if o.Status == model.OrderStatusPending {
		if err := r.Orders().UpdatePaymentStatus(ctx, o.ID, model.PaymentStatusFailed); err != nil {
			return internal(err)
		}
	}
	return writeAudit(ctx, r, model.SystemActor(), model.AuditActionPaymentCallback, model.AuditResourcePayment, p.ID, o.ID,
		map[string]interface{}{"status": p.Status},
		map[string]interface{}{"status": model.PaymentStatusFailed, "order_id": o.ID},
		now,
	)
}

// PENDING以外の注文に入った支払いは全部返金対象（キャンセル済み or 二重払い）
func (u *PaymentUsecase) warnRefund(o model.Order, p model.PaymentRecord) {
	if o.Status == model.OrderStatusCancelled {
		u.logger.Warnf("payment %d succeeded for cancelled order=%d, refund required", p.ID, o.ID)
		return
	}
	u.logger.Warnf("duplicate payment %d for order=%d (already %s), refund required", p.ID, o.ID, o.Status)
}

func (u *PaymentUsecase) GetPaymentStatus(ctx context.Context, buyerID int64, orderID int64) (PaymentStatusOutput, error) {
	if buyerID <= 0 {
		return PaymentStatusOutput{}, ErrNotAuthorized
	}

	var out PaymentStatusOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}
		if o.BuyerID != buyerID {
			return ErrNotFound
		}

		out = PaymentStatusOutput{
			OrderID:       o.ID,
			OrderStatus:   string(o.Status),
			PaymentStatus: string(o.PaymentStatus),
			Amount:        o.Total,
			PaidAt:        o.PaidAt,
		}

		p, err := r.Payments().FindLatestByOrderID(ctx, o.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return internal(err)
		}
		if p.ExternalPaymentID != nil {
			out.ExternalPaymentID = *p.ExternalPaymentID
		}
		out.PaymentURL = p.PaymentURL
		return nil
	})
	if err != nil {
		return PaymentStatusOutput{}, normalize(err)
	}
	return out, nil
}
