package repository

import (
	"context"
	"errors"
	"time"

	"foodrescue/internal/domain/model"
	repo "foodrescue/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.PaymentRecord) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, repo.ErrDuplicate
		}
		return 0, err
	}
	return p.ID, nil
}

func (r *PaymentGormRepository) FindByExternalID(ctx context.Context, externalPaymentID string) (model.PaymentRecord, error) {
	var p model.PaymentRecord
	err := r.db.WithContext(ctx).Where("external_payment_id = ?", externalPaymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentRecord{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentRecord{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindLatestByOrderID(ctx context.Context, orderID int64) (model.PaymentRecord, error) {
	//支払い前の注文では無いのが普通
	var ps []model.PaymentRecord
	res := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id desc").Limit(1).Find(&ps)
	if res.Error != nil {
		return model.PaymentRecord{}, res.Error
	}
	if res.RowsAffected == 0 {
		return model.PaymentRecord{}, repo.ErrNotFound
	}
	return ps[0], nil
}

func (r *PaymentGormRepository) AttachSession(ctx context.Context, paymentID int64, externalPaymentID string, paymentURL string) error {
	res := r.db.WithContext(ctx).Model(&model.PaymentRecord{}).
		Where("id = ?", paymentID).
		Updates(map[string]interface{}{
			"external_payment_id": externalPaymentID,
			"payment_url":         paymentURL,
		})

	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return repo.ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentGormRepository) UpdateStatusIfCurrent(ctx context.Context, paymentID int64, from []model.PaymentStatus, to model.PaymentStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PaymentRecord{}).
		Where("id = ? AND status IN ?", paymentID, from).
		Updates(map[string]interface{}{
			"status":       to,
			"processed_at": at,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
