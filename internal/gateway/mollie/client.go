// Package mollie implements the payment.Gateway contract against the
// Mollie v2 REST API (payments.create, payments.get, methods.list).
package mollie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/qteco/mall-mollie-bridge/internal/payment"
)

const (
	defaultBaseURL = "https://api.mollie.com/v2"
	requestTimeout = 30 * time.Second
)

// Error is a non-retryable rejection from the Mollie API (4xx), decoded
// from its error envelope.
type Error struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("mollie: %d %s: %s", e.StatusCode, e.Title, e.Detail)
}

// Client talks to one Mollie account, identified by an opaque API key.
// The key already encodes test vs live mode (test_... / live_...), the way
// Mollie issues them.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

// WithBaseURL points the client at a different API root. Tests use it to
// target an httptest server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type link struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

type createPaymentBody struct {
	Amount      amount            `json:"amount"`
	Description string            `json:"description"`
	RedirectURL string            `json:"redirectUrl"`
	WebhookURL  string            `json:"webhookUrl"`
	Method      string            `json:"method,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paymentResource struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Amount   amount          `json:"amount"`
	Metadata json.RawMessage `json:"metadata"`
	Links    struct {
		Checkout *link `json:"checkout"`
	} `json:"_links"`
}

// orderNumber extracts the merchant reference from the metadata attached at
// creation time. Mollie allows arbitrary metadata shapes, so a payment not
// created by this bridge simply yields an empty reference.
func (p *paymentResource) orderNumber() string {
	var meta map[string]string
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return ""
	}
	return meta["order_number"]
}

func (c *Client) CreatePayment(ctx context.Context, req payment.CreateRequest) (*payment.Handle, error) {
	body := createPaymentBody{
		Amount:      amount{Currency: req.Currency, Value: req.AmountValue},
		Description: req.Description,
		RedirectURL: req.RedirectURL,
		WebhookURL:  req.WebhookURL,
		Method:      req.Method,
		Metadata:    req.Metadata,
	}
	raw, err := c.do(ctx, http.MethodPost, "/payments", body)
	if err != nil {
		return nil, err
	}
	var res paymentResource
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode create payment response: %w", err)
	}
	h := &payment.Handle{ID: res.ID}
	if res.Links.Checkout != nil {
		h.CheckoutURL = res.Links.Checkout.Href
	}
	return h, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*payment.Snapshot, error) {
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+id, nil)
	if err != nil {
		return nil, err
	}
	var res paymentResource
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode payment %s: %w", id, err)
	}
	// Keep the untyped payload alongside the typed view; reconciliation
	// results carry it for audit logging.
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payment %s payload: %w", id, err)
	}
	return &payment.Snapshot{
		ID:          res.ID,
		Status:      payment.ParseStatus(res.Status),
		OrderNumber: res.orderNumber(),
		Raw:         payload,
	}, nil
}

type methodsResponse struct {
	Embedded struct {
		Methods []struct {
			ID string `json:"id"`
		} `json:"methods"`
	} `json:"_embedded"`
}

// ActiveMethods lists the payment methods enabled in the Mollie dashboard.
func (c *Client) ActiveMethods(ctx context.Context) ([]string, error) {
	raw, err := c.do(ctx, http.MethodGet, "/methods", nil)
	if err != nil {
		return nil, err
	}
	var res methodsResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode methods response: %w", err)
	}
	methods := make([]string, 0, len(res.Embedded.Methods))
	for _, m := range res.Embedded.Methods {
		methods = append(methods, m.ID)
	}
	return methods, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", payment.ErrGatewayUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s response: %v", payment.ErrGatewayUnavailable, method, path, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		c.log.Error().Int("status", resp.StatusCode).Str("path", path).Msg("mollie api error")
		return nil, fmt.Errorf("%w: %s %s returned %d", payment.ErrGatewayUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		apiErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			apiErr.Detail = string(raw)
		}
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}
	return raw, nil
}
