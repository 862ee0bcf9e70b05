package usecase

import (
	"context"
	"time"

	"foodrescue/internal/domain/model"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 受け取りコードの生成。推測できない十分な空間から作る
type CodeGenerator interface {
	NewCode() (string, error)
}

type PaymentSessionRequest struct {
	Reference string
	OrderID   int64
	Amount    int64 // 最小通貨単位
	Currency  string
	ReturnURL string
}

type PaymentSession struct {
	ExternalPaymentID string
	PaymentURL        string
}

// 外部の決済代行。セッションを作ってリダイレクト先を返す
type PaymentGateway interface {
	CreateSession(ctx context.Context, req PaymentSessionRequest) (PaymentSession, error)
}

type OrderEventType string

const (
	EventOrderPaid      OrderEventType = "ORDER_PAID"
	EventOrderConfirmed OrderEventType = "ORDER_CONFIRMED"
	EventOrderReady     OrderEventType = "ORDER_READY"
	EventOrderCompleted OrderEventType = "ORDER_COMPLETED"
	EventOrderCancelled OrderEventType = "ORDER_CANCELLED"
)

type OrderEvent struct {
	Type         OrderEventType    `json:"type"`
	OrderID      int64             `json:"order_id"`
	BuyerID      int64             `json:"buyer_id"`
	RestaurantID int64             `json:"restaurant_id"`
	Status       model.OrderStatus `json:"status"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// 通知は外部コンポーネント。ここはイベントを渡すだけ
type Notifier interface {
	Notify(ctx context.Context, ev OrderEvent) error
}

func eventFor(o model.Order, at time.Time) (OrderEvent, bool) {
	var t OrderEventType
	switch o.Status {
	case model.OrderStatusPaid:
		t = EventOrderPaid
	case model.OrderStatusConfirmed:
		t = EventOrderConfirmed
	case model.OrderStatusReady:
		t = EventOrderReady
	case model.OrderStatusCompleted:
		t = EventOrderCompleted
	case model.OrderStatusCancelled:
		t = EventOrderCancelled
	default:
		return OrderEvent{}, false
	}
	return OrderEvent{
		Type:         t,
		OrderID:      o.ID,
		BuyerID:      o.BuyerID,
		RestaurantID: o.RestaurantID,
		Status:       o.Status,
		OccurredAt:   at,
	}, true
}
