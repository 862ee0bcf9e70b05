package handler

import (
	"net/http"

	"foodrescue/internal/domain/model"
	"foodrescue/internal/middleware"
	"foodrescue/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type InitiatePaymentRequest struct {
	OrderID int64 `json:"order_id"`
}

// 決済代行からの通知
type WebhookRequest struct {
	ExternalPaymentID string `json:"external_payment_id"`
	Outcome           string `json:"outcome"`
}

// buyer は AuthJWT 済み、webhook は署名検証済みのグループ
func (h *PaymentHandler) RegisterRoutes(buyer *echo.Group, webhook *echo.Group) {
	buyer.Use(middleware.RequireRole(model.RoleBuyer))
	buyer.POST("/initiate", h.initiate)
	buyer.GET("/:orderId/status", h.status)

	webhook.POST("", h.webhook)
}

func (h *PaymentHandler) initiate(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.InitiatePayment(c.Request().Context(), userID, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) status(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	orderID, ok := parseIDParam(c, "orderId")
	if !ok {
		return badRequest(c, "invalid order id")
	}

	out, err := h.uc.GetPaymentStatus(c.Request().Context(), userID, orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 2xx 以外は決済代行が再送する（404もリトライ対象）
func (h *PaymentHandler) webhook(c echo.Context) error {
	var req WebhookRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.HandleCallback(c.Request().Context(), usecase.CallbackInput{
		ExternalPaymentID: req.ExternalPaymentID,
		Outcome:           req.Outcome,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
