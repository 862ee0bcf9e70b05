package handler

import (
	"net/http"
	"strings"

	"foodrescue/internal/domain/model"
	"foodrescue/internal/middleware"
	"foodrescue/internal/usecase"

	"github.com/labstack/echo/v4"
)

const IdempotencyKeyHeader = "X-Idempotency-Key"

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderCreateRequest struct {
	Items []usecase.OrderLineInput `json:"items"`
	Notes string                   `json:"notes"`
}

type OrderStatusUpdateRequest struct {
	NewStatus string `json:"new_status"`
}

type OrderListResponse struct {
	Items []usecase.OrderOutput `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// g は AuthJWT 済みの /orders グループ
func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	buyer := middleware.RequireRole(model.RoleBuyer)

	g.POST("", h.create, buyer)
	g.GET("", h.list, buyer)
	g.GET("/:id", h.detail, buyer)
	g.PUT("/:id/status", h.updateStatus, middleware.RequireRole(model.RoleBuyer, model.RoleRestaurant, model.RoleAdmin))
	g.GET("/:id/history", h.history, middleware.RequireRole(model.RoleBuyer, model.RoleRestaurant, model.RoleAdmin))
}

func (h *OrderHandler) create(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get(IdempotencyKeyHeader)

	out, err := h.uc.CreateOrder(c.Request().Context(), actor, usecase.CreateOrderInput{
		Items:          req.Items,
		Notes:          req.Notes,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	page, limit, err := parsePaging(c, 20)
	if err != nil {
		return badRequest(c, "invalid page or limit")
	}

	items, total, err := h.uc.ListMyOrders(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, OrderListResponse{Items: items, Total: total, Page: page, Limit: limit})
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetMyOrder(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	to := model.OrderStatus(strings.ToUpper(strings.TrimSpace(req.NewStatus)))

	out, err := h.uc.Transition(c.Request().Context(), id, to, actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) history(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.History(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
