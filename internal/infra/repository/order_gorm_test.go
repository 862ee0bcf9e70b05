package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"foodrescue/internal/config"
	"foodrescue/internal/domain/model"
	"foodrescue/internal/infra/db"
	infraRepo "foodrescue/internal/infra/repository"
	repo "foodrescue/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(config.Config{
		DBDriver:   "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func insertOrder(t *testing.T, r *infraRepo.OrderGormRepository, buyerID, restaurantID int64, status model.OrderStatus, createdAt time.Time) int64 {
	t.Helper()
	id, err := r.Create(context.Background(), model.Order{
		BuyerID:        buyerID,
		RestaurantID:   restaurantID,
		Subtotal:       100,
		Total:          100,
		Status:         status,
		PaymentStatus:  model.PaymentStatusPending,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	})
	require.NoError(t, err)
	return id
}

func TestOrderRepo_UpdateStatusIfCurrent(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewOrderGormRepository(openDB(t))
	id := insertOrder(t, r, 1, 2, model.OrderStatusPending, t0)

	paidAt := t0.Add(time.Minute)
	ok, err := r.UpdateStatusIfCurrent(ctx, id, repo.StatusChange{
		From: model.OrderStatusPending, To: model.OrderStatusPaid, At: paidAt, PaidAt: &paidAt,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	//同じ前提でもう一度は通らない
	ok, err = r.UpdateStatusIfCurrent(ctx, id, repo.StatusChange{
		From: model.OrderStatusPending, To: model.OrderStatusCancelled, At: paidAt,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	o, err := r.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, o.Status)
	require.NotNil(t, o.PaidAt)
	assert.True(t, o.PaidAt.Equal(paidAt))
}

func TestOrderRepo_FindByIDMissing(t *testing.T) {
	r := infraRepo.NewOrderGormRepository(openDB(t))
	_, err := r.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestOrderRepo_IdempotencyKeyIsUniquePerBuyer(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewOrderGormRepository(openDB(t))
	base := model.Order{
		BuyerID: 1, RestaurantID: 2, Status: model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending, IdempotencyKey: "k1",
		CreatedAt: t0, UpdatedAt: t0,
	}

	id, err := r.Create(ctx, base)
	require.NoError(t, err)

	_, err = r.Create(ctx, base)
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	other := base
	other.BuyerID = 9
	_, err = r.Create(ctx, other)
	require.NoError(t, err)

	o, found, err := r.FindByIdempotencyKey(ctx, 1, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, o.ID)

	_, found, err = r.FindByIdempotencyKey(ctx, 1, "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

type logLines struct{ lines []string }

func (w *logLines) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

// 新規チェックアウトの「見つからない」はエラーログにしない
func TestOrderRepo_FindByIdempotencyKey_MissIsQuiet(t *testing.T) {
	ctx := context.Background()
	w := &logLines{}
	gdb := openDB(t).Session(&gorm.Session{Logger: logger.New(w, logger.Config{LogLevel: logger.Warn})})
	r := infraRepo.NewOrderGormRepository(gdb)

	_, found, err := r.FindByIdempotencyKey(ctx, 1, "fresh-key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, w.lines)
}

func TestOrderRepo_FindByIDForUpdate(t *testing.T) {
	ctx := context.Background()
	gdb := openDB(t)
	r := infraRepo.NewOrderGormRepository(gdb)
	id := insertOrder(t, r, 1, 2, model.OrderStatusPending, t0)

	err := infraRepo.NewTxManagerGorm(gdb).WithinTx(ctx, func(tx repo.TxRepos) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, o.ID)

		_, err = tx.Orders().FindByIDForUpdate(ctx, 999)
		assert.ErrorIs(t, err, repo.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestOrderRepo_PickupCode(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewOrderGormRepository(openDB(t))
	a := insertOrder(t, r, 1, 2, model.OrderStatusReady, t0)
	b := insertOrder(t, r, 1, 2, model.OrderStatusPaid, t0)

	ok, err := r.SetPickupCodeIfAbsent(ctx, a, "AAAA-BBBB-CCCC")
	require.NoError(t, err)
	assert.True(t, ok)

	//発行済みには上書きしない
	ok, err = r.SetPickupCodeIfAbsent(ctx, a, "DDDD-EEEE-FFFF")
	require.NoError(t, err)
	assert.False(t, ok)

	//他の注文と同じコードは入らない
	_, err = r.SetPickupCodeIfAbsent(ctx, b, "AAAA-BBBB-CCCC")
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	found, err := r.FindByPickupCode(ctx, "AAAA-BBBB-CCCC")
	require.NoError(t, err)
	assert.Equal(t, a, found.ID)

	//別店舗では使えない
	ok, err = r.RedeemPickupCode(ctx, "AAAA-BBBB-CCCC", 3, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.RedeemPickupCode(ctx, "AAAA-BBBB-CCCC", 2, t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.RedeemPickupCode(ctx, "AAAA-BBBB-CCCC", 2, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	o, err := r.FindByID(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, o.Status)
	assert.NotNil(t, o.PickupCodeSpentAt)
}

func TestOrderRepo_ListForRestaurantOldestFirst(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewOrderGormRepository(openDB(t))
	late := insertOrder(t, r, 1, 2, model.OrderStatusPaid, t0.Add(time.Hour))
	early := insertOrder(t, r, 5, 2, model.OrderStatusPaid, t0)
	insertOrder(t, r, 1, 2, model.OrderStatusPending, t0)
	insertOrder(t, r, 1, 7, model.OrderStatusPaid, t0)

	items, total, err := r.ListForRestaurant(ctx, repo.RestaurantOrderFilter{
		RestaurantID: 2, Status: model.OrderStatusPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, early, items[0].ID)
	assert.Equal(t, late, items[1].ID)

	_, total, err = r.ListForRestaurant(ctx, repo.RestaurantOrderFilter{RestaurantID: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestOrderRepo_ListPendingCreatedBefore(t *testing.T) {
	ctx := context.Background()
	r := infraRepo.NewOrderGormRepository(openDB(t))
	stale := insertOrder(t, r, 1, 2, model.OrderStatusPending, t0)
	insertOrder(t, r, 1, 2, model.OrderStatusPending, t0.Add(2*time.Hour))
	insertOrder(t, r, 1, 2, model.OrderStatusPaid, t0)

	items, err := r.ListPendingCreatedBefore(ctx, t0.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, stale, items[0].ID)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	gdb := openDB(t)
	tm := infraRepo.NewTxManagerGorm(gdb)
	boom := errors.New("boom")

	err := tm.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Orders().Create(ctx, model.Order{
			BuyerID: 1, RestaurantID: 2, Status: model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending, IdempotencyKey: "k",
			CreatedAt: t0, UpdatedAt: t0,
		})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, gdb.Model(&model.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}
