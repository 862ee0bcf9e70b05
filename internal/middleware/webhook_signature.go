package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	SignatureHeader  = "X-Signature"
	maxWebhookBodyMB = 1
)

// VerifyWebhookSignature は決済代行からの通知を HMAC-SHA256(body) で検証する。
// ヘッダは hex か "sha256=<hex>"
func VerifyWebhookSignature(secret string) echo.MiddlewareFunc {
	key := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sig := strings.TrimPrefix(strings.TrimSpace(c.Request().Header.Get(SignatureHeader)), "sha256=")
			want, err := hex.DecodeString(sig)
			if sig == "" || err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("invalid signature"))
			}

			body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodyMB<<20))
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorJSON("invalid body"))
			}

			if !hmac.Equal(want, Sign(key, body)) {
				return c.JSON(http.StatusUnauthorized, errorJSON("invalid signature"))
			}

			//handlerでBindできるように戻す
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			return next(c)
		}
	}
}

func Sign(key []byte, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return mac.Sum(nil)
}
