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

const (
	maxNotesLen          = 500
	maxIdempotencyKeyLen = 255
)

type OrderUsecase struct {
	tx       repo.TransactionManager
	ids      IDGenerator
	clock    Clock
	notifier Notifier
	logger   *log.Logger
	grace    time.Duration
}

func NewOrderUsecase(tx repo.TransactionManager, ids IDGenerator, clock Clock, notifier Notifier, logger *log.Logger, cancelGrace time.Duration) *OrderUsecase {
	if logger == nil {
		logger = log.New("order")
	}
	return &OrderUsecase{tx: tx, ids: ids, clock: clock, notifier: notifier, logger: logger, grace: cancelGrace}
}

type OrderLineInput struct {
	FoodID   int64 `json:"food_id"`
	Quantity int64 `json:"quantity"`
}

type CreateOrderInput struct {
	Items          []OrderLineInput
	Notes          string
	IdempotencyKey string
}

type OrderItemOutput struct {
	FoodID           int64  `json:"food_id"`
	Name             string `json:"name"`
	PriceAtOrderTime int64  `json:"price_at_order_time"`
	Quantity         int64  `json:"quantity"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	BuyerID       int64             `json:"buyer_id"`
	RestaurantID  int64             `json:"restaurant_id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	Subtotal      int64             `json:"subtotal"`
	Total         int64             `json:"total"`
	PickupCode    string            `json:"pickup_code,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []OrderItemOutput `json:"items"`
}

type AuditEntryOutput struct {
	Action     string    `json:"action"`
	ActorRole  string    `json:"actor_role"`
	BeforeJSON string    `json:"before"`
	AfterJSON  string    `json:"after"`
	CreatedAt  time.Time `json:"created_at"`
}

// 同じキーの同時挿入に負けたときにtxを巻き戻すための目印
var errIdempotencyRace = errors.New("idempotency race")

// CreateOrder はカートの中身から注文を作る。
// 全部の食品が確保できたときだけ作る（1つでもダメなら何も残らない）
func (u *OrderUsecase) CreateOrder(ctx context.Context, actor model.Actor, in CreateOrderInput) (OrderOutput, error) {
	if actor.Role != model.RoleBuyer || actor.UserID <= 0 {
		return OrderOutput{}, ErrNotAuthorized
	}

	lines, err := normalizeLines(in.Items)
	if err != nil {
		return OrderOutput{}, err
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLen {
		return OrderOutput{}, withMessage(ErrValidation, "notes must be at most %d characters", maxNotesLen)
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		//キー無しなら毎回別の注文
		key = u.ids.NewID()
	}
	if len(key) > maxIdempotencyKeyLen {
		return OrderOutput{}, withMessage(ErrValidation, "idempotency key is too long")
	}

	var out OrderOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, actor.UserID, key)
		if err != nil {
			return internal(err)
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return internal(err)
			}
			out = toOrderOutput(existing, items, true)
			return nil
		}

		now := u.clock.Now()
		orderItems := make([]model.OrderItem, 0, len(lines))
		var restaurantID int64

		for _, ln := range lines {
			f, err := r.Foods().FindByID(ctx, ln.FoodID)
			if errors.Is(err, repo.ErrNotFound) {
				return itemUnavailable(ln.FoodID, "does not exist")
			}
			if err != nil {
				return internal(err)
			}
			if !f.IsAvailable {
				return itemUnavailable(ln.FoodID, "is not available")
			}

			//1注文1店舗
			if restaurantID == 0 {
				restaurantID = f.RestaurantID
			} else if f.RestaurantID != restaurantID {
				return ErrMixedRestaurants
			}

			ok, err := r.Foods().ReserveIfEnough(ctx, f.ID, ln.Quantity)
			if err != nil {
				return internal(err)
			}
			if !ok {
				return itemUnavailable(ln.FoodID, "does not have enough quantity left")
			}

			//価格はカートではなくカタログの現在値
			orderItems = append(orderItems, model.OrderItem{
				FoodID:           f.ID,
				FoodNameSnapshot: f.Name,
				PriceAtOrderTime: f.Price,
				Quantity:         ln.Quantity,
				CreatedAt:        now,
			})
		}

		total := model.OrderTotal(orderItems)
		order := model.Order{
			BuyerID:        actor.UserID,
			RestaurantID:   restaurantID,
			Subtotal:       total,
			Total:          total,
			Status:         model.OrderStatusPending,
			PaymentStatus:  model.PaymentStatusPending,
			Notes:          notes,
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			return errIdempotencyRace
		}
		if err != nil {
			return internal(err)
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return internal(err)
		}

		order.ID = orderID
		out = toOrderOutput(order, orderItems, true)
		return nil
	})

	if errors.Is(err, errIdempotencyRace) {
		//相手のtxはcommit済みなので読み直して同じ結果を返す
		return u.findByIdempotencyKey(ctx, actor.UserID, key)
	}
	if err != nil {
		return OrderOutput{}, normalize(err)
	}
	return out, nil
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, buyerID int64, key string) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, found, err := r.Orders().FindByIdempotencyKey(ctx, buyerID, key)
		if err != nil {
			return internal(err)
		}
		if !found {
			return internal(errors.New("idempotent order vanished"))
		}
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return internal(err)
		}
		out = toOrderOutput(o, items, true)
		return nil
	})
	if err != nil {
		return OrderOutput{}, normalize(err)
	}
	return out, nil
}

// 同じ食品はまとめる。順番は最初に出てきた順
func normalizeLines(items []OrderLineInput) ([]OrderLineInput, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	idx := make(map[int64]int, len(items))
	lines := make([]OrderLineInput, 0, len(items))
	for _, it := range items {
		if it.FoodID <= 0 {
			return nil, withMessage(ErrValidation, "invalid food_id")
		}
		if it.Quantity < 1 {
			return nil, withMessage(ErrInvalidQuantity, "quantity for food %d must be at least 1", it.FoodID)
		}
		if i, ok := idx[it.FoodID]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}
		idx[it.FoodID] = len(lines)
		lines = append(lines, it)
	}
	return lines, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, buyerID int64, page int, limit int) ([]OrderOutput, int64, error) {
	if buyerID <= 0 {
		return []OrderOutput{}, 0, ErrNotAuthorized
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var outs []OrderOutput
	var total int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListByBuyerID(ctx, buyerID, page, limit)
		if err != nil {
			return internal(err)
		}
		total = n

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return internal(err)
			}
			outs = append(outs, toOrderOutput(o, items, true))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, 0, normalize(err)
	}
	return outs, total, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, buyerID int64, orderID int64) (OrderOutput, error) {
	if buyerID <= 0 {
		return OrderOutput{}, ErrNotAuthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, withMessage(ErrValidation, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}
		if o.BuyerID != buyerID {
			//他人の注文は「存在しない扱い」にする
			return ErrNotFound
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internal(err)
		}
		out = toOrderOutput(o, items, true)
		return nil
	})
	if err != nil {
		return OrderOutput{}, normalize(err)
	}
	return out, nil
}

// Transition は注文ステータスを変える。
// 成功したら変更後の注文を返し、commit後に通知する
func (u *OrderUsecase) Transition(ctx context.Context, orderID int64, to model.OrderStatus, actor model.Actor) (OrderOutput, error) {
	return u.transition(ctx, orderID, "", to, actor)
}

// CancelStalePending はPENDINGのままの注文だけSYSTEMとしてキャンセルする。
// 一覧を取った後に支払われた注文は INVALID_TRANSITION
func (u *OrderUsecase) CancelStalePending(ctx context.Context, orderID int64) (OrderOutput, error) {
	return u.transition(ctx, orderID, model.OrderStatusPending, model.OrderStatusCancelled, model.SystemActor())
}

// from が空でなければ、今の状態が from のときだけ動かす
func (u *OrderUsecase) transition(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, actor model.Actor) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, withMessage(ErrValidation, "invalid id")
	}
	if !to.Valid() {
		return OrderOutput{}, withMessage(ErrValidation, "unknown status %q", to)
	}

	var out OrderOutput
	var updated model.Order
	now := u.clock.Now()

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}
		if actor.Role == model.RoleBuyer && o.BuyerID != actor.UserID {
			return ErrNotFound
		}

		if err := authorizeTransition(o, to, actor, u.grace, now); err != nil {
			return err
		}
		if from != "" && o.Status != from {
			return invalidTransition(o.Status, to)
		}

		updated, err = applyTransition(ctx, r, o, to, actor, now)
		if err != nil {
			return err
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internal(err)
		}
		out = toOrderOutput(updated, items, actor.Role != model.RoleRestaurant)
		return nil
	})
	if err != nil {
		return OrderOutput{}, normalize(err)
	}

	u.publish(ctx, updated, now)
	return out, nil
}

// History は注文の監査ログ（古い順）
func (u *OrderUsecase) History(ctx context.Context, actor model.Actor, orderID int64) ([]AuditEntryOutput, error) {
	if orderID <= 0 {
		return []AuditEntryOutput{}, withMessage(ErrValidation, "invalid id")
	}

	var outs []AuditEntryOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return internal(err)
		}
		if !canView(o, actor) {
			return ErrNotFound
		}

		logs, err := r.AuditLogs().ListByOrderID(ctx, orderID, 100)
		if err != nil {
			return internal(err)
		}
		outs = make([]AuditEntryOutput, 0, len(logs))
		for _, l := range logs {
			outs = append(outs, AuditEntryOutput{
				Action:     string(l.Action),
				ActorRole:  string(l.ActorRole),
				BeforeJSON: l.BeforeJSON,
				AfterJSON:  l.AfterJSON,
				CreatedAt:  l.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return []AuditEntryOutput{}, normalize(err)
	}
	return outs, nil
}

func canView(o model.Order, actor model.Actor) bool {
	switch actor.Role {
	case model.RoleBuyer:
		return actor.UserID > 0 && o.BuyerID == actor.UserID
	case model.RoleRestaurant:
		return actor.RestaurantID > 0 && o.RestaurantID == actor.RestaurantID
	case model.RoleAdmin, model.RoleSystem:
		return true
	}
	return false
}

// 通知の失敗はログだけ（注文は確定済み）
func (u *OrderUsecase) publish(ctx context.Context, o model.Order, at time.Time) {
	notify(ctx, u.notifier, u.logger, o, at)
}

func notify(ctx context.Context, n Notifier, logger *log.Logger, o model.Order, at time.Time) {
	if n == nil {
		return
	}
	ev, ok := eventFor(o, at)
	if !ok {
		return
	}
	if err := n.Notify(ctx, ev); err != nil {
		logger.Warnf("notify %s order=%d failed: %v", ev.Type, o.ID, err)
	}
}

// withCode=false は店舗向け（受け取りコードは購入者だけが見る）
func toOrderOutput(o model.Order, items []model.OrderItem, withCode bool) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			FoodID:           it.FoodID,
			Name:             it.FoodNameSnapshot,
			PriceAtOrderTime: it.PriceAtOrderTime,
			Quantity:         it.Quantity,
		})
	}

	out := OrderOutput{
		ID:            o.ID,
		BuyerID:       o.BuyerID,
		RestaurantID:  o.RestaurantID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal,
		Total:         o.Total,
		Notes:         o.Notes,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		Items:         outItems,
	}
	if withCode && o.PickupCode != nil {
		out.PickupCode = *o.PickupCode
	}
	return out
}
