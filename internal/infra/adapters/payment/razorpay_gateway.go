package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay
// REST API (basic auth with key id and secret).
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id or secret empty")
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (r *RazorpayGateway) Name() string      { return "razorpay" }
func (r *RazorpayGateway) PublicKey() string { return r.keyID }

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay http %d: %s %s", e.Status, e.Code, e.Description)
}

func (r *RazorpayGateway) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Code: e.Error.Code, Description: e.Error.Description}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateOrder calls POST /orders. Amount is in minor units.
func (r *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	payload := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	var out struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
	}
	if err := r.do(ctx, http.MethodPost, "/orders", payload, &out); err != nil {
		return adapter.GatewayOrder{}, err
	}
	if out.ID == "" {
		return adapter.GatewayOrder{}, errors.New("razorpay create order: empty id")
	}
	return adapter.GatewayOrder{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
		Status:   out.Status,
	}, nil
}

// ListOrderPayments calls GET /orders/{id}/payments.
func (r *RazorpayGateway) ListOrderPayments(ctx context.Context, gatewayOrderID string) ([]adapter.GatewayPayment, error) {
	if gatewayOrderID == "" {
		return nil, errors.New("razorpay list payments: empty order id")
	}
	var out struct {
		Items []struct {
			ID      string `json:"id"`
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
			Amount  int64  `json:"amount"`
		} `json:"items"`
	}
	if err := r.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(gatewayOrderID)+"/payments", nil, &out); err != nil {
		return nil, err
	}
	res := make([]adapter.GatewayPayment, 0, len(out.Items))
	for _, it := range out.Items {
		res = append(res, adapter.GatewayPayment{ID: it.ID, OrderID: it.OrderID, Status: it.Status, Amount: it.Amount})
	}
	return res, nil
}
