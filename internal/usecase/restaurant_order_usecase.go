package usecase

import (
	"context"
	"strings"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"
)

// 店舗側の一覧と操作。遷移そのものは OrderUsecase に任せる
type RestaurantOrderUsecase struct {
	tx     repo.TransactionManager
	orders *OrderUsecase
	pickup *PickupUsecase
}

func NewRestaurantOrderUsecase(tx repo.TransactionManager, orders *OrderUsecase, pickup *PickupUsecase) *RestaurantOrderUsecase {
	return &RestaurantOrderUsecase{tx: tx, orders: orders, pickup: pickup}
}

type RestaurantOrderListInput struct {
	Status string
	Page   int
	Limit  int
}

type RestaurantOrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *RestaurantOrderUsecase) List(ctx context.Context, actor model.Actor, in RestaurantOrderListInput) (RestaurantOrderListOutput, error) {
	if actor.Role != model.RoleRestaurant || actor.RestaurantID <= 0 {
		return RestaurantOrderListOutput{}, ErrNotAuthorized
	}

	status := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if status != "" && !status.Valid() {
		return RestaurantOrderListOutput{}, withMessage(ErrValidation, "unknown status %q", in.Status)
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 50
	}

	out := RestaurantOrderListOutput{Page: in.Page, Limit: in.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListForRestaurant(ctx, repo.RestaurantOrderFilter{
			RestaurantID: actor.RestaurantID,
			Status:       status,
			Page:         in.Page,
			Limit:        in.Limit,
		})
		if err != nil {
			return internal(err)
		}
		out.Total = total

		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return internal(err)
			}
			out.Items = append(out.Items, toOrderOutput(o, items, false))
		}
		return nil
	})
	if err != nil {
		return RestaurantOrderListOutput{}, normalize(err)
	}
	return out, nil
}

// PAID → CONFIRMED
func (u *RestaurantOrderUsecase) Confirm(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	return u.orders.Transition(ctx, orderID, model.OrderStatusConfirmed, actor)
}

// CONFIRMED → READY
func (u *RestaurantOrderUsecase) MarkReady(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	return u.orders.Transition(ctx, orderID, model.OrderStatusReady, actor)
}

// 受け渡し。コード照合は PickupUsecase
func (u *RestaurantOrderUsecase) CompletePickup(ctx context.Context, actor model.Actor, code string) (VerifyPickupOutput, error) {
	return u.pickup.VerifyAndComplete(ctx, code, actor)
}
