package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodrescue/internal/config"
	"foodrescue/internal/handler"
	"foodrescue/internal/infra/db"
	"foodrescue/internal/infra/notify"
	"foodrescue/internal/infra/payment"
	infraRepo "foodrescue/internal/infra/repository"
	"foodrescue/internal/server"
	"foodrescue/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	logger := log.New("api")

	//.env は無くてもよい（本番は環境変数）
	if err := godotenv.Load(); err != nil {
		logger.Infof("no .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatalf("db connect: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalf("db migrate: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatalf("db handle: %v", err)
	}
	defer sqlDB.Close()

	notifier, closeNotifier := buildNotifier(ctx, cfg, logger)
	defer closeNotifier()

	//usecaseに渡す部品
	txm := infraRepo.NewTxManagerGorm(gormDB)
	idGen := &uuidGenerator{}
	clock := &realClock{}

	orderUC := usecase.NewOrderUsecase(txm, idGen, clock, notifier, log.New("order"), cfg.CancelGracePeriod)
	pickupUC := usecase.NewPickupUsecase(txm, usecase.RandomCodeGenerator{}, clock, notifier, log.New("pickup"))
	paymentUC := usecase.NewPaymentUsecase(txm, buildGateway(cfg), pickupUC, idGen, clock, notifier, log.New("payment"), usecase.PaymentSettings{
		Currency:  cfg.Currency,
		ReturnURL: cfg.PaymentReturnURL,
		Timeout:   cfg.PaymentTimeout,
	})
	queueUC := usecase.NewRestaurantOrderUsecase(txm, orderUC, pickupUC)

	reaper := usecase.NewPendingOrderReaper(txm, orderUC, clock, cfg.PendingOrderTTL, cfg.ReaperInterval, log.New("reaper"))
	go reaper.Run(ctx)

	e := server.New(cfg, server.Handlers{
		Health:          handler.NewHealthHandler(sqlDB),
		Foods:           handler.NewFoodHandler(usecase.NewFoodUsecase(infraRepo.NewFoodGormRepository(gormDB))),
		Orders:          handler.NewOrderHandler(orderUC),
		RestaurantQueue: handler.NewRestaurantOrderHandler(queueUC),
		Payments:        handler.NewPaymentHandler(paymentUC),
	})

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	logger.Infof("listening on %s", addr)
	if err := server.Run(ctx, e, addr); err != nil {
		logger.Fatalf("server: %v", err)
	}
	logger.Infof("shutdown complete")
}

func buildGateway(cfg config.Config) usecase.PaymentGateway {
	if cfg.PaymentGateway == "http" {
		return payment.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)
	}
	return payment.NewFakeGateway("")
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *log.Logger) (usecase.Notifier, func()) {
	switch cfg.Notifier {
	case "amqp":
		n, err := notify.NewAMQPNotifier(cfg.RabbitMQURI, cfg.RabbitMQQueue)
		if err != nil {
			logger.Fatalf("notifier: %v", err)
		}
		return n, func() { _ = n.Close() }
	case "sqs":
		n, err := notify.NewSQSNotifierFromEnv(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			logger.Fatalf("notifier: %v", err)
		}
		return n, func() {}
	}
	return notify.NewLogNotifier(log.New("notify")), func() {}
}
