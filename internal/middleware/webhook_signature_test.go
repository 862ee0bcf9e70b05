package middleware_test

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"foodrescue/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func webhookEcho(secret string) *echo.Echo {
	e := echo.New()
	e.POST("/hook", func(c echo.Context) error {
		//署名検証の後でもbodyが読める
		b, _ := io.ReadAll(c.Request().Body)
		return c.String(http.StatusOK, string(b))
	}, middleware.VerifyWebhookSignature(secret))
	return e
}

func postHook(e *echo.Echo, body string, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(middleware.SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestVerifyWebhookSignature(t *testing.T) {
	const secret = "whsec"
	body := `{"external_payment_id":"ext-1","outcome":"SUCCESS"}`
	good := hex.EncodeToString(middleware.Sign([]byte(secret), []byte(body)))
	e := webhookEcho(secret)

	rec := postHook(e, body, good)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())

	rec = postHook(e, body, "sha256="+good)
	assert.Equal(t, http.StatusOK, rec.Code)

	cases := map[string]string{
		"missing":      "",
		"not hex":      "zz-not-hex",
		"other secret": hex.EncodeToString(middleware.Sign([]byte("other"), []byte(body))),
	}
	for name, sig := range cases {
		rec := postHook(e, body, sig)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}

	//bodyを書き換えたら通らない
	rec = postHook(e, strings.Replace(body, "SUCCESS", "FAILED", 1), good)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
