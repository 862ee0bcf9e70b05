package usecase_test

import (
	"context"
	"testing"
	"time"

	"foodrescue/internal/domain/model"
	"foodrescue/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// CreateOrder
// =====================

func TestCreateOrder_SnapshotsPricesAndTotal(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 120, 10)
	soup := f.seedFood(t, 1, "soup", 250, 3)

	out := f.createOrder(t, 7, line(bread.ID, 2), line(soup.ID, 1))

	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.Equal(t, string(model.PaymentStatusPending), out.PaymentStatus)
	assert.Equal(t, int64(1), out.RestaurantID)
	assert.Equal(t, int64(490), out.Total)
	assert.Equal(t, out.Total, out.Subtotal)
	require.Len(t, out.Items, 2)
	assert.Equal(t, int64(8), f.foodQuantity(t, bread.ID))
	assert.Equal(t, int64(2), f.foodQuantity(t, soup.ID))

	//カタログの値上げは既存の注文に影響しない
	require.NoError(t, f.db.Model(&model.Food{}).Where("id = ?", bread.ID).Update("price", 999).Error)

	got, err := f.orders.GetMyOrder(context.Background(), 7, out.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(490), got.Total)
	var sum int64
	for _, it := range got.Items {
		sum += it.PriceAtOrderTime * it.Quantity
	}
	assert.Equal(t, got.Total, sum)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.CreateOrder(context.Background(), buyerActor(7), usecase.CreateOrderInput{})
	assert.ErrorIs(t, err, usecase.ErrEmptyCart)
	assert.Equal(t, int64(0), f.countOrders(t))
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 120, 10)

	_, err := f.orders.CreateOrder(context.Background(), buyerActor(7), usecase.CreateOrderInput{
		Items: []usecase.OrderLineInput{line(bread.ID, 0)},
	})
	assert.ErrorIs(t, err, usecase.ErrInvalidQuantity)
	assert.Equal(t, int64(10), f.foodQuantity(t, bread.ID))
}

// 削除済みの食品が混ざっていたら何も作らない（確保した数量も戻る）
func TestCreateOrder_DeletedFoodCreatesNothing(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 120, 10)
	soup := f.seedFood(t, 1, "soup", 250, 3)
	require.NoError(t, f.db.Delete(&model.Food{}, soup.ID).Error)

	_, err := f.orders.CreateOrder(context.Background(), buyerActor(7), usecase.CreateOrderInput{
		Items: []usecase.OrderLineInput{line(bread.ID, 2), line(soup.ID, 1)},
	})

	require.ErrorIs(t, err, usecase.ErrItemUnavailable)
	assert.Contains(t, err.Error(), "food")
	e, ok := usecase.AsError(err)
	require.True(t, ok)
	assert.Equal(t, usecase.KindValidation, e.Kind)
	assert.Equal(t, int64(0), f.countOrders(t))
	assert.Equal(t, int64(10), f.foodQuantity(t, bread.ID))
}

func TestCreateOrder_NotEnoughQuantity(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 120, 1)

	_, err := f.orders.CreateOrder(context.Background(), buyerActor(7), usecase.CreateOrderInput{
		Items: []usecase.OrderLineInput{line(bread.ID, 2)},
	})
	assert.ErrorIs(t, err, usecase.ErrItemUnavailable)
	assert.Equal(t, int64(1), f.foodQuantity(t, bread.ID))
}

func TestCreateOrder_UnavailableFood(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 120, 5)
	require.NoError(t, f.db.Model(&model.Food{}).Where("id = ?", bread.ID).Update("is_available", false).Error)

	_, err := f.orders.CreateOrder(context.Background(), buyerActor(7), usecase.CreateOrderInput{
		Items: []usecase.OrderLineInput{line(bread.ID, 1)},
	})
	assert.ErrorIs(t, err, usecase.ErrItemUnavailable)
}

func TestCreateOrder_MixedRestaurants(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 120, 5)
	rice := f.seedFood(t, 2, "rice", 80, 5)

	_, err := f.orders.CreateOrder(context.Background(), buyerActor(7), usecase.CreateOrderInput{
		Items: []usecase.OrderLineInput{line(bread.ID, 1), line(rice.ID, 1)},
	})
	assert.ErrorIs(t, err, usecase.ErrMixedRestaurants)
	assert.Equal(t, int64(5), f.foodQuantity(t, bread.ID))
	assert.Equal(t, int64(0), f.countOrders(t))
}

func TestCreateOrder_SameKeyReturnsSameOrder(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 120, 10)
	in := usecase.CreateOrderInput{Items: []usecase.OrderLineInput{line(bread.ID, 3)}, IdempotencyKey: "cart-rev-1"}

	first, err := f.orders.CreateOrder(context.Background(), buyerActor(7), in)
	require.NoError(t, err)
	second, err := f.orders.CreateOrder(context.Background(), buyerActor(7), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), f.countOrders(t))
	assert.Equal(t, int64(7), f.foodQuantity(t, bread.ID))

	//別の購入者なら同じキーでも別注文
	other, err := f.orders.CreateOrder(context.Background(), buyerActor(8), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateOrder_MergesRepeatedFood(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)

	out := f.createOrder(t, 7, line(bread.ID, 1), line(bread.ID, 2))
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(3), out.Items[0].Quantity)
	assert.Equal(t, int64(300), out.Total)
}

func TestCreateOrder_RequiresBuyer(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)

	_, err := f.orders.CreateOrder(context.Background(), restaurantActor(1), usecase.CreateOrderInput{
		Items: []usecase.OrderLineInput{line(bread.ID, 1)},
	})
	assert.ErrorIs(t, err, usecase.ErrNotAuthorized)
}

// =====================
// 読み取り
// =====================

func TestGetMyOrder_OtherBuyerIsNotFound(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))

	_, err := f.orders.GetMyOrder(context.Background(), 8, out.ID)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestListMyOrders_NewestFirstAndOwnOnly(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	first := f.createOrder(t, 7, line(bread.ID, 1))
	f.clock.Advance(time.Minute)
	second := f.createOrder(t, 7, line(bread.ID, 1))
	f.createOrder(t, 8, line(bread.ID, 1))

	outs, total, err := f.orders.ListMyOrders(context.Background(), 7, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, outs, 2)
	assert.Equal(t, second.ID, outs[0].ID)
	assert.Equal(t, first.ID, outs[1].ID)
}

// =====================
// Transition
// =====================

func TestTransition_RestaurantCannotConfirmPendingOrder(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))

	_, err := f.queue.Confirm(context.Background(), restaurantActor(1), out.ID)

	require.ErrorIs(t, err, usecase.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "PENDING")
	assert.Contains(t, err.Error(), "CONFIRMED")
	assert.Equal(t, model.OrderStatusPending, f.reload(t, out.ID).Status)
}

func TestTransition_BuyerCancelsPendingAndStockReturns(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 4))
	require.Equal(t, int64(6), f.foodQuantity(t, bread.ID))

	got, err := f.orders.Transition(context.Background(), out.ID, model.OrderStatusCancelled, buyerActor(7))
	require.NoError(t, err)

	assert.Equal(t, string(model.OrderStatusCancelled), got.Status)
	assert.Equal(t, int64(10), f.foodQuantity(t, bread.ID))
	assert.Len(t, f.notifier.eventsOf(usecase.EventOrderCancelled), 1)

	//終端からは動かない
	_, err = f.orders.Transition(context.Background(), out.ID, model.OrderStatusCancelled, buyerActor(7))
	assert.ErrorIs(t, err, usecase.ErrInvalidTransition)
}

func TestTransition_BuyerCancelAfterGraceWindow(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))
	f.pay(t, 7, out.ID)

	f.clock.Advance(cancelGrace + time.Second)
	_, err := f.orders.Transition(context.Background(), out.ID, model.OrderStatusCancelled, buyerActor(7))

	assert.ErrorIs(t, err, usecase.ErrCancellationWindowExpired)
	assert.Equal(t, model.OrderStatusPaid, f.reload(t, out.ID).Status)
}

func TestTransition_BuyerCancelWithinGraceWindow(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))
	f.pay(t, 7, out.ID)

	f.clock.Advance(cancelGrace - time.Second)
	got, err := f.orders.Transition(context.Background(), out.ID, model.OrderStatusCancelled, buyerActor(7))

	require.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusCancelled), got.Status)
}

func TestTransition_AdminCancelIgnoresGraceWindow(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))
	f.pay(t, 7, out.ID)
	f.clock.Advance(time.Hour)

	_, err := f.orders.Transition(context.Background(), out.ID, model.OrderStatusCancelled, adminActor())
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, f.reload(t, out.ID).Status)
}

func TestTransition_BuyerCannotCancelConfirmedOrder(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))
	f.pay(t, 7, out.ID)
	_, err := f.queue.Confirm(context.Background(), restaurantActor(1), out.ID)
	require.NoError(t, err)

	_, err = f.orders.Transition(context.Background(), out.ID, model.OrderStatusCancelled, buyerActor(7))
	assert.ErrorIs(t, err, usecase.ErrInvalidTransition)
}

func TestTransition_Authorization(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))
	f.pay(t, 7, out.ID)

	tests := []struct {
		name  string
		to    model.OrderStatus
		actor model.Actor
		want  error
	}{
		{"other buyer sees nothing", model.OrderStatusCancelled, buyerActor(8), usecase.ErrNotFound},
		{"buyer cannot confirm", model.OrderStatusConfirmed, buyerActor(7), usecase.ErrNotAuthorized},
		{"other restaurant", model.OrderStatusConfirmed, restaurantActor(2), usecase.ErrNotAuthorized},
		{"restaurant cannot complete without code", model.OrderStatusCompleted, restaurantActor(1), usecase.ErrNotAuthorized},
		{"restaurant cannot cancel", model.OrderStatusCancelled, restaurantActor(1), usecase.ErrNotAuthorized},
		{"admin only cancels", model.OrderStatusConfirmed, adminActor(), usecase.ErrNotAuthorized},
		{"unknown status", model.OrderStatus("SHIPPED"), adminActor(), usecase.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Transition(context.Background(), out.ID, tt.to, tt.actor)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, model.OrderStatusPaid, f.reload(t, out.ID).Status)
		})
	}
}

func TestTransition_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.Transition(context.Background(), 404, model.OrderStatusCancelled, adminActor())
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestHistory_RecordsEveryStep(t *testing.T) {
	f := newFixture(t)
	bread := f.seedFood(t, 1, "bread", 100, 10)
	out := f.createOrder(t, 7, line(bread.ID, 1))
	f.pay(t, 7, out.ID)
	f.prepare(t, 1, out.ID)

	entries, err := f.orders.History(context.Background(), buyerActor(7), out.ID)
	require.NoError(t, err)

	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		string(model.AuditActionPaymentCallback),
		string(model.AuditActionUpdateOrderStatus), // PAID
		string(model.AuditActionIssuePickupCode),
		string(model.AuditActionUpdateOrderStatus), // CONFIRMED
		string(model.AuditActionUpdateOrderStatus), // READY
	}, actions)
	assert.Contains(t, entries[0].AfterJSON, string(model.PaymentStatusSuccess))
	assert.Equal(t, string(model.RoleSystem), entries[0].ActorRole)
	assert.Contains(t, entries[4].AfterJSON, "READY")
	assert.Equal(t, string(model.RoleRestaurant), entries[4].ActorRole)

	_, err = f.orders.History(context.Background(), restaurantActor(2), out.ID)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}
