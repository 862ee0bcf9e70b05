package handler

import (
	"net/http"
	"strconv"

	"foodrescue/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /foods はカタログの読み取り（公開）
type FoodHandler struct {
	uc *usecase.FoodUsecase
}

func NewFoodHandler(uc *usecase.FoodUsecase) *FoodHandler {
	return &FoodHandler{uc: uc}
}

func (h *FoodHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/foods", h.list)
	e.GET("/foods/:id", h.detail)
}

func (h *FoodHandler) list(c echo.Context) error {
	page, limit, err := parsePaging(c, 20)
	if err != nil {
		return badRequest(c, "invalid page or limit")
	}

	restaurantID, err := optionalInt64(c, "restaurant_id")
	if err != nil {
		return badRequest(c, "invalid restaurant_id")
	}
	minPrice, err := optionalInt64(c, "min_price")
	if err != nil {
		return badRequest(c, "invalid min_price")
	}
	maxPrice, err := optionalInt64(c, "max_price")
	if err != nil {
		return badRequest(c, "invalid max_price")
	}

	out, err := h.uc.ListFoods(c.Request().Context(), usecase.ListFoodsInput{
		RestaurantID: restaurantID,
		Q:            c.QueryParam("q"),
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		Sort:         c.QueryParam("sort"),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *FoodHandler) detail(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.GetFood(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func optionalInt64(c echo.Context, name string) (*int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	x, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &x, nil
}
