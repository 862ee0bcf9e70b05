package model_test

import (
	"testing"

	"foodrescue/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_Table(t *testing.T) {
	legal := map[[2]model.OrderStatus]bool{
		{model.OrderStatusPending, model.OrderStatusPaid}:      true,
		{model.OrderStatusPending, model.OrderStatusCancelled}: true,
		{model.OrderStatusPaid, model.OrderStatusConfirmed}:    true,
		{model.OrderStatusPaid, model.OrderStatusCancelled}:    true,
		{model.OrderStatusConfirmed, model.OrderStatusReady}:   true,
		{model.OrderStatusReady, model.OrderStatusCompleted}:   true,
	}

	for _, from := range model.AllOrderStatuses() {
		for _, to := range model.AllOrderStatuses() {
			want := legal[[2]model.OrderStatus{from, to}]
			assert.Equal(t, want, model.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	for _, s := range model.AllOrderStatuses() {
		if s.Terminal() {
			for _, to := range model.AllOrderStatuses() {
				assert.False(t, model.CanTransition(s, to), "%s is terminal", s)
			}
		}
	}
	assert.True(t, model.OrderStatusCompleted.Terminal())
	assert.True(t, model.OrderStatusCancelled.Terminal())
	assert.False(t, model.OrderStatus("SHIPPED").Valid())
}

func TestOrderTotal(t *testing.T) {
	items := []model.OrderItem{
		{PriceAtOrderTime: 120, Quantity: 2},
		{PriceAtOrderTime: 35, Quantity: 3},
	}
	assert.Equal(t, int64(345), model.OrderTotal(items))
	assert.Equal(t, int64(0), model.OrderTotal(nil))
}
