package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"foodrescue/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // model.Role
	CtxRestaurantIDKey = "restaurant_id" // int64（RESTAURANTのみ）
)

// bearerAuth用のJWT検証ミドルウェア。
// トークンの発行は外部の認証サービス。ここでは署名と中身だけ見る
func AuthJWT(secret string) echo.MiddlewareFunc {
	key := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//JWTをパースして検証する（expもここで見る）
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return key, nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			userID, err := parseInt64(claims["sub"])
			if err != nil || userID <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//roleを取り出す（BUYER/RESTAURANT/ADMIN）
			rawRole, err := parseString(claims["role"])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			role := model.Role(rawRole)
			switch role {
			case model.RoleBuyer, model.RoleRestaurant, model.RoleAdmin:
			default:
				//SYSTEMはトークンでは名乗れない
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//店舗アカウントはどの店舗かが必須
			var restaurantID int64
			if role == model.RoleRestaurant {
				restaurantID, err = parseInt64(claims["rid"])
				if err != nil || restaurantID <= 0 {
					return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
				}
			}

			//contextへ保存
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			c.Set(CtxRestaurantIDKey, restaurantID)

			return next(c)
		}
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func errorJSON(code string) errorResponse {
	return errorResponse{Error: code}
}

// 数値claimはJSONだとfloat64、文字列で来ることもある
func parseInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid int")
	}
}

func parseString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errors.New("invalid string")
	}
	return s, nil
}
