package handler

import (
	"net/http"

	"foodrescue/internal/domain/model"
	"foodrescue/internal/middleware"
	"foodrescue/internal/usecase"

	"github.com/labstack/echo/v4"
)

type RestaurantOrderHandler struct {
	uc *usecase.RestaurantOrderUsecase
}

func NewRestaurantOrderHandler(uc *usecase.RestaurantOrderUsecase) *RestaurantOrderHandler {
	return &RestaurantOrderHandler{uc: uc}
}

type VerifyPickupRequest struct {
	PickupCode string `json:"pickup_code"`
}

// /orders グループに店舗向けのルートを足す
func (h *RestaurantOrderHandler) RegisterRoutes(g *echo.Group) {
	restaurant := middleware.RequireRole(model.RoleRestaurant)

	g.GET("/restaurant", h.list, restaurant)
	g.POST("/:id/confirm", h.confirm, restaurant)
	g.POST("/:id/ready", h.ready, restaurant)
	g.POST("/verify-pickup", h.verifyPickup, restaurant)
}

func (h *RestaurantOrderHandler) list(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	page, limit, err := parsePaging(c, 50)
	if err != nil {
		return badRequest(c, "invalid page or limit")
	}

	out, err := h.uc.List(c.Request().Context(), actor, usecase.RestaurantOrderListInput{
		Status: c.QueryParam("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RestaurantOrderHandler) confirm(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Confirm(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RestaurantOrderHandler) ready(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.MarkReady(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RestaurantOrderHandler) verifyPickup(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req VerifyPickupRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.CompletePickup(c.Request().Context(), actor, req.PickupCode)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
