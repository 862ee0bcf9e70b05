package handler

import (
	"net/http"
	"strconv"

	"foodrescue/internal/domain/model"
	"foodrescue/internal/middleware"

	"github.com/labstack/echo/v4"
)

//middleware.AuthJWT が c.Set した値を取り出す

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func actorFromContext(c echo.Context) (model.Actor, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return model.Actor{}, false
	}
	role, ok := c.Get(middleware.CtxUserRoleKey).(model.Role)
	if !ok {
		return model.Actor{}, false
	}
	rid, _ := c.Get(middleware.CtxRestaurantIDKey).(int64)
	return model.Actor{UserID: id, Role: role, RestaurantID: rid}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// page / limit（省略時はdef）
func parsePaging(c echo.Context, defLimit int) (int, int, error) {
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
		page = p
	}
	limit := defLimit
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, err
		}
		limit = l
	}
	return page, limit, nil
}
