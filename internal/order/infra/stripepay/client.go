// Package stripepay is a thin client for the Stripe Checkout Sessions
// REST API: form-encoded requests, bearer auth, JSON responses. Only the
// two calls the checkout flow needs are wrapped.
package stripepay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/ecommerce-checkout/internal/order/app"
)

const defaultBaseURL = "https://api.stripe.com"

// Config configures the client. BaseURL is overridable for tests and for
// stripe-mock.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements app.PaymentGateway against the Stripe API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

var _ app.PaymentGateway = (*Client)(nil)

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// sessionResponse is the subset of the checkout session object the order
// flow consumes.
type sessionResponse struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	AmountTotal   int64  `json:"amount_total"`
	URL           string `json:"url"`
}

// apiError is Stripe's error envelope.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %d %s %s: %s", e.StatusCode, e.Type, e.Code, e.Message)
}

// CreateCheckoutSession opens one hosted checkout session covering all
// line items of an order.
func (c *Client) CreateCheckoutSession(ctx context.Context, req app.CheckoutSessionRequest) (*app.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("payment_method_types[0]", "card")
	for i, item := range req.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form.Set(prefix+"[price_data][currency]", req.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}

	var session sessionResponse
	if err := c.post(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &app.CheckoutSession{
		ID:            session.ID,
		PaymentIntent: session.PaymentIntent,
		AmountTotal:   session.AmountTotal,
		URL:           session.URL,
	}, nil
}

// ExpireSession invalidates a session whose order could not be persisted.
func (c *Client) ExpireSession(ctx context.Context, sessionID string) error {
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID) + "/expire"
	if err := c.post(ctx, path, url.Values{}, &sessionResponse{}); err != nil {
		return fmt.Errorf("expire session %q: %w", sessionID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope apiError
		_ = json.Unmarshal(body, &envelope)
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       envelope.Error.Type,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
