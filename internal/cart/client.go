package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

var (
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrNothingToCheckout  = errors.New("no items from that restaurant in the cart")
)

// APIError はサーバーの {"error":code,"message":msg}
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Retryable は決済代行の一時障害（503）
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusServiceUnavailable
}

type OrderLine struct {
	FoodID           int64  `json:"food_id"`
	Name             string `json:"name"`
	PriceAtOrderTime int64  `json:"price_at_order_time"`
	Quantity         int64  `json:"quantity"`
}

type Order struct {
	ID            int64       `json:"id"`
	RestaurantID  int64       `json:"restaurant_id"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	Total         int64       `json:"total"`
	PickupCode    string      `json:"pickup_code,omitempty"`
	Items         []OrderLine `json:"items"`
}

type PaymentSession struct {
	OrderID           int64  `json:"order_id"`
	Amount            int64  `json:"amount"`
	PaymentURL        string `json:"payment_url"`
	ExternalPaymentID string `json:"external_payment_id"`
}

// カタログの現在値
type CatalogFood struct {
	ID           int64  `json:"id"`
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	QuantityLeft int64  `json:"quantity_left"`
}

func (f CatalogFood) CartFood() Food {
	return Food{ID: f.ID, RestaurantID: f.RestaurantID, Name: f.Name}
}

// Client は購入者側のAPIクライアント
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	checking atomic.Bool
}

func NewClient(baseURL string, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Checkout はカートのうち1店舗分だけ注文にする（1注文1店舗）。
// 冪等キーはRevision+店舗IDなので、タイムアウト後の再送でも注文は1つ。
// 成功したら送った分だけカートから消す
func (c *Client) Checkout(ctx context.Context, s *Store, restaurantID int64, notes string) (Order, error) {
	if !c.checking.CompareAndSwap(false, true) {
		return Order{}, ErrCheckoutInProgress
	}
	defer c.checking.Store(false)

	snap := s.Snapshot()
	sent := make([]Item, 0, len(snap.Items))
	lines := make([]map[string]int64, 0, len(snap.Items))
	for _, it := range snap.Items {
		if it.RestaurantID != restaurantID {
			continue
		}
		sent = append(sent, it)
		lines = append(lines, map[string]int64{"food_id": it.FoodID, "quantity": it.Quantity})
	}
	if len(sent) == 0 {
		return Order{}, ErrNothingToCheckout
	}
	body := map[string]interface{}{"items": lines}
	if notes != "" {
		body["notes"] = notes
	}

	var out Order
	headers := map[string]string{"X-Idempotency-Key": fmt.Sprintf("%s:%d", snap.Revision, restaurantID)}
	if err := c.do(ctx, http.MethodPost, "/orders", body, headers, &out); err != nil {
		return Order{}, err
	}

	//注文はできているので消す失敗は返すだけ（再送しても同じ注文が返る）
	if err := s.RemoveCheckedOut(sent); err != nil {
		return out, fmt.Errorf("order %d created but updating cart failed: %w", out.ID, err)
	}
	return out, nil
}

func (c *Client) GetFood(ctx context.Context, foodID int64) (CatalogFood, error) {
	var out CatalogFood
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/foods/%d", foodID), nil, nil, &out)
	return out, err
}

func (c *Client) InitiatePayment(ctx context.Context, orderID int64) (PaymentSession, error) {
	var out PaymentSession
	err := c.do(ctx, http.MethodPost, "/payments/initiate", map[string]int64{"order_id": orderID}, nil, &out)
	return out, err
}

func (c *Client) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	var out Order
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, nil, &out)
	return out, err
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) (Order, error) {
	var out Order
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d/status", orderID), map[string]string{"new_status": "CANCELLED"}, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, headers map[string]string, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Code = eb.Error
			apiErr.Message = eb.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
