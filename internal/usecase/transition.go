package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"
)

// authorizeTransition は「誰が」「どこへ」動かせるかを見る。
// 遷移表の判定は権限チェックの後（他人の注文の状態を漏らさない）
func authorizeTransition(o model.Order, to model.OrderStatus, actor model.Actor, grace time.Duration, now time.Time) error {
	switch actor.Role {
	case model.RoleBuyer:
		if actor.UserID <= 0 || o.BuyerID != actor.UserID {
			return ErrNotAuthorized
		}
		if to != model.OrderStatusCancelled {
			return withMessage(ErrNotAuthorized, "buyers can only cancel their orders")
		}
	case model.RoleRestaurant:
		if actor.RestaurantID <= 0 || o.RestaurantID != actor.RestaurantID {
			return ErrNotAuthorized
		}
		if to == model.OrderStatusCompleted {
			return withMessage(ErrNotAuthorized, "completing an order requires the pickup code")
		}
		if to != model.OrderStatusConfirmed && to != model.OrderStatusReady {
			return withMessage(ErrNotAuthorized, "restaurants can only confirm or mark ready")
		}
	case model.RoleAdmin:
		if to != model.OrderStatusCancelled {
			return withMessage(ErrNotAuthorized, "admins can only cancel orders")
		}
	case model.RoleSystem:
		if to != model.OrderStatusPaid && to != model.OrderStatusCancelled {
			return ErrNotAuthorized
		}
	default:
		return ErrNotAuthorized
	}

	if !model.CanTransition(o.Status, to) {
		return invalidTransition(o.Status, to)
	}

	//購入者のPAID後キャンセルは猶予時間内だけ。ADMINとSYSTEMは対象外
	if actor.Role == model.RoleBuyer && o.Status == model.OrderStatusPaid {
		if o.PaidAt == nil || now.After(o.PaidAt.Add(grace)) {
			return ErrCancellationWindowExpired
		}
	}
	return nil
}

// applyTransition はtx内で条件付き更新をして、数量戻しと監査ログまでやる。
// 先に誰かが動かしていたら読み直して INVALID_TRANSITION
func applyTransition(ctx context.Context, r repo.TxRepos, o model.Order, to model.OrderStatus, actor model.Actor, now time.Time) (model.Order, error) {
	ch := repo.StatusChange{From: o.Status, To: to, At: now}
	if to == model.OrderStatusPaid {
		ch.PaidAt = &now
	}

	ok, err := r.Orders().UpdateStatusIfCurrent(ctx, o.ID, ch)
	if err != nil {
		return model.Order{}, internal(err)
	}
	if !ok {
		cur, err := r.Orders().FindByID(ctx, o.ID)
		if err != nil {
			return model.Order{}, internal(err)
		}
		return model.Order{}, invalidTransition(cur.Status, to)
	}

	//キャンセルなら確保していた数量を戻す
	if to == model.OrderStatusCancelled {
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return model.Order{}, internal(err)
		}
		for _, it := range items {
			if err := r.Foods().Release(ctx, it.FoodID, it.Quantity); err != nil && !errors.Is(err, repo.ErrNotFound) {
				return model.Order{}, internal(err)
			}
		}
	}

	before := o.Status
	o.Status = to
	o.UpdatedAt = now
	if ch.PaidAt != nil {
		o.PaidAt = ch.PaidAt
	}

	if err := writeAudit(ctx, r, actor, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID, o.ID,
		map[string]interface{}{"status": before},
		map[string]interface{}{"status": to},
		now,
	); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func writeAudit(ctx context.Context, r repo.TxRepos, actor model.Actor, action model.AuditAction, rt model.AuditResourceType, resourceID int64, orderID int64, before, after map[string]interface{}, now time.Time) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return internal(err)
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return internal(err)
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		ActorRole:    actor.Role,
		Action:       action,
		ResourceType: rt,
		ResourceID:   resourceID,
		OrderID:      orderID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    now,
	}); err != nil {
		return internal(err)
	}
	return nil
}
