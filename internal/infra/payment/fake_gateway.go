package payment

import (
	"context"
	"net/url"

	"foodrescue/internal/usecase"

	"github.com/google/uuid"
)

// FakeGateway は外部を呼ばずにセッションを返す（開発用）。
// 結果は POST /payments/webhook を手で叩いて返す
type FakeGateway struct {
	checkoutBase string
}

func NewFakeGateway(checkoutBase string) *FakeGateway {
	if checkoutBase == "" {
		checkoutBase = "http://localhost:8080/fake-checkout"
	}
	return &FakeGateway{checkoutBase: checkoutBase}
}

func (g *FakeGateway) CreateSession(ctx context.Context, req usecase.PaymentSessionRequest) (usecase.PaymentSession, error) {
	if err := ctx.Err(); err != nil {
		return usecase.PaymentSession{}, err
	}
	id := "fake_" + uuid.NewString()
	q := url.Values{}
	q.Set("session", id)
	q.Set("amount", formatAmount(req.Amount))
	q.Set("currency", req.Currency)
	q.Set("return", req.ReturnURL)
	return usecase.PaymentSession{
		ExternalPaymentID: id,
		PaymentURL:        g.checkoutBase + "?" + q.Encode(),
	}, nil
}
