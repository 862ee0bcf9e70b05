package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"foodrescue/internal/usecase"

	"github.com/shopspring/decimal"
)

// HTTPGateway は決済代行のREST APIでチェックアウトセッションを作る
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL string, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type createSessionRequest struct {
	Reference string            `json:"reference"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	ReturnURL string            `json:"return_url"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type createSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// 金額は最小単位の整数で持っているので小数2桁の文字列にして渡す
func formatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func (g *HTTPGateway) CreateSession(ctx context.Context, req usecase.PaymentSessionRequest) (usecase.PaymentSession, error) {
	body, err := json.Marshal(createSessionRequest{
		Reference: req.Reference,
		Amount:    formatAmount(req.Amount),
		Currency:  req.Currency,
		ReturnURL: req.ReturnURL,
		Metadata:  map[string]string{"order_id": strconv.FormatInt(req.OrderID, 10)},
	})
	if err != nil {
		return usecase.PaymentSession{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/sessions", bytes.NewReader(body))
	if err != nil {
		return usecase.PaymentSession{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	//同じ参照で再送されても二重にセッションを作らせない
	httpReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return usecase.PaymentSession{}, fmt.Errorf("payment gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return usecase.PaymentSession{}, fmt.Errorf("read payment gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return usecase.PaymentSession{}, fmt.Errorf("payment gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out createSessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return usecase.PaymentSession{}, fmt.Errorf("decode payment gateway response: %w", err)
	}
	if out.ID == "" || out.URL == "" {
		return usecase.PaymentSession{}, fmt.Errorf("payment gateway returned empty session")
	}
	return usecase.PaymentSession{ExternalPaymentID: out.ID, PaymentURL: out.URL}, nil
}
