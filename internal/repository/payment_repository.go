package repository

import (
	"context"
	"time"

	"foodrescue/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.PaymentRecord) (int64, error)
	FindByExternalID(ctx context.Context, externalPaymentID string) (model.PaymentRecord, error)
	FindLatestByOrderID(ctx context.Context, orderID int64) (model.PaymentRecord, error)

	//セッション作成後に外部IDとURLを書く
	AttachSession(ctx context.Context, paymentID int64, externalPaymentID string, paymentURL string) error

	//status が from のいずれかのときだけ to にする
	UpdateStatusIfCurrent(ctx context.Context, paymentID int64, from []model.PaymentStatus, to model.PaymentStatus, at time.Time) (bool, error)
}
