package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"foodrescue/internal/config"
	"foodrescue/internal/domain/model"
	"foodrescue/internal/infra/db"
	infraRepo "foodrescue/internal/infra/repository"
	"foodrescue/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// =====================
// 差し替え部品
// =====================

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

// 決められた順にコードを返す
type scriptedCodes struct {
	mu    sync.Mutex
	codes []string
}

func (g *scriptedCodes) NewCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", fmt.Errorf("no more codes")
	}
	c := g.codes[0]
	g.codes = g.codes[1:]
	return c, nil
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateSession(ctx context.Context, req usecase.PaymentSessionRequest) (usecase.PaymentSession, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(usecase.PaymentSession)
	return s, args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, ev usecase.OrderEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *NotifierMock) eventsOf(t usecase.OrderEventType) []usecase.OrderEvent {
	var out []usecase.OrderEvent
	for _, c := range m.Calls {
		ev := c.Arguments.Get(1).(usecase.OrderEvent)
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// =====================
// fixture（sqlite in-memory）
// =====================

type fixture struct {
	db       *gorm.DB
	tx       *infraRepo.TxManagerGorm
	clock    *fixedClock
	ids      *seqIDs
	gateway  *GatewayMock
	notifier *NotifierMock

	orders   *usecase.OrderUsecase
	pickup   *usecase.PickupUsecase
	payments *usecase.PaymentUsecase
	queue    *usecase.RestaurantOrderUsecase
}

const cancelGrace = 5 * time.Minute

func openTestDB(t *testing.T) *gorm.DB {
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

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := openTestDB(t)

	f := &fixture{
		db:       gdb,
		tx:       infraRepo.NewTxManagerGorm(gdb),
		clock:    &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		ids:      &seqIDs{},
		gateway:  new(GatewayMock),
		notifier: new(NotifierMock),
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.orders = usecase.NewOrderUsecase(f.tx, f.ids, f.clock, f.notifier, nil, cancelGrace)
	f.pickup = usecase.NewPickupUsecase(f.tx, usecase.RandomCodeGenerator{}, f.clock, f.notifier, nil)
	f.payments = usecase.NewPaymentUsecase(f.tx, f.gateway, f.pickup, f.ids, f.clock, f.notifier, nil, usecase.PaymentSettings{
		Currency:  "THB",
		ReturnURL: "http://localhost/return",
		Timeout:   time.Second,
	})
	f.queue = usecase.NewRestaurantOrderUsecase(f.tx, f.orders, f.pickup)
	return f
}

func (f *fixture) seedFood(t *testing.T, restaurantID int64, name string, price int64, qty int64) model.Food {
	t.Helper()
	food := model.Food{RestaurantID: restaurantID, Name: name, Price: price, Quantity: qty, IsAvailable: true}
	require.NoError(t, f.db.Create(&food).Error)
	return food
}

func (f *fixture) foodQuantity(t *testing.T, id int64) int64 {
	t.Helper()
	var food model.Food
	require.NoError(t, f.db.Unscoped().First(&food, id).Error)
	return food.Quantity
}

func (f *fixture) reload(t *testing.T, orderID int64) model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, f.db.First(&o, orderID).Error)
	return o
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) createOrder(t *testing.T, buyerID int64, lines ...usecase.OrderLineInput) usecase.OrderOutput {
	t.Helper()
	out, err := f.orders.CreateOrder(context.Background(), buyerActor(buyerID), usecase.CreateOrderInput{Items: lines})
	require.NoError(t, err)
	return out
}

// initiate → SUCCESS コールバックまで。外部IDを返す
func (f *fixture) pay(t *testing.T, buyerID int64, orderID int64) string {
	t.Helper()
	extID := "ext-" + uuid.NewString()
	f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(r usecase.PaymentSessionRequest) bool {
		return r.OrderID == orderID
	})).Return(usecase.PaymentSession{ExternalPaymentID: extID, PaymentURL: "https://pay.example/" + extID}, nil).Once()

	_, err := f.payments.InitiatePayment(context.Background(), buyerID, orderID)
	require.NoError(t, err)

	_, err = f.payments.HandleCallback(context.Background(), usecase.CallbackInput{ExternalPaymentID: extID, Outcome: "SUCCESS"})
	require.NoError(t, err)
	return extID
}

// PAID → CONFIRMED → READY
func (f *fixture) prepare(t *testing.T, restaurantID int64, orderID int64) {
	t.Helper()
	_, err := f.queue.Confirm(context.Background(), restaurantActor(restaurantID), orderID)
	require.NoError(t, err)
	_, err = f.queue.MarkReady(context.Background(), restaurantActor(restaurantID), orderID)
	require.NoError(t, err)
}

func line(foodID int64, qty int64) usecase.OrderLineInput {
	return usecase.OrderLineInput{FoodID: foodID, Quantity: qty}
}

func buyerActor(id int64) model.Actor {
	return model.Actor{UserID: id, Role: model.RoleBuyer}
}

func restaurantActor(rid int64) model.Actor {
	return model.Actor{UserID: 1000 + rid, Role: model.RoleRestaurant, RestaurantID: rid}
}

func adminActor() model.Actor {
	return model.Actor{UserID: 9999, Role: model.RoleAdmin}
}
