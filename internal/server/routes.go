package server

import (
	"foodrescue/internal/config"
	"foodrescue/internal/handler"
	"foodrescue/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health          *handler.HealthHandler
	Foods           *handler.FoodHandler
	Orders          *handler.OrderHandler
	RestaurantQueue *handler.RestaurantOrderHandler
	Payments        *handler.PaymentHandler
}

func registerRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Health.RegisterRoutes(e)
	h.Foods.RegisterRoutes(e)

	//店舗向けの静的パス（/orders/restaurant 等）は :id より優先される
	orders := e.Group("/orders", middleware.AuthJWT(cfg.JWTSecret))
	h.Orders.RegisterRoutes(orders)
	h.RestaurantQueue.RegisterRoutes(orders)

	//webhookはユーザーのJWTではなく署名で認証する
	webhook := e.Group("/payments/webhook", middleware.VerifyWebhookSignature(cfg.PaymentWebhookSecret))
	payments := e.Group("/payments", middleware.AuthJWT(cfg.JWTSecret))
	h.Payments.RegisterRoutes(payments, webhook)
}
