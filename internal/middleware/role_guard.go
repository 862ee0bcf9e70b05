package middleware

import (
	"net/http"

	"foodrescue/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextに入っているroleが許可リストにあるかを確認します。
// AuthJWTの後ろで使う
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(model.Role)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, errorResponse{Error: "NOT_AUTHORIZED", Message: "role not allowed"})
			}
			return next(c)
		}
	}
}
