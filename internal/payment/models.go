package payment

import (
	"errors"
	"strings"
	"time"
)

// Standard payment errors.
var (
	ErrGatewayUnavailable = errors.New("payment gateway is currently unavailable")
	ErrInvalidAmount      = errors.New("invalid payment amount")
	ErrInvalidCurrency    = errors.New("invalid currency code")
)

// Status is the gateway-side state of a payment, normalized from the
// provider's wire strings. Unknown is an explicit variant so a new provider
// status shows up in logs instead of silently hitting a default branch.
type Status string

const (
	StatusOpen       Status = "open"
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusCancelled  Status = "cancelled"
	StatusUnknown    Status = "unknown"
)

// ParseStatus normalizes a provider status string. Mollie spells it
// "canceled"; both spellings map to StatusCancelled.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open":
		return StatusOpen
	case "pending":
		return StatusPending
	case "authorized":
		return StatusAuthorized
	case "paid":
		return StatusPaid
	case "failed":
		return StatusFailed
	case "expired":
		return StatusExpired
	case "canceled", "cancelled":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// Terminal reports whether the gateway will not change this status anymore.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CreateRequest carries everything needed to create a payment at the
// gateway. AmountValue is a decimal string with exactly two fraction
// digits, Currency a three-letter ISO code.
type CreateRequest struct {
	AmountValue string
	Currency    string
	Description string
	RedirectURL string
	WebhookURL  string
	Method      string            // provider method code, empty lets the shopper choose
	Metadata    map[string]string // round-tripped through the gateway
}

// Handle is returned when a payment has been created at the gateway.
// It is ephemeral; only the ID is persisted, on the order.
type Handle struct {
	ID          string
	CheckoutURL string
}

// Snapshot is the gateway's current view of a payment. Raw preserves the
// provider payload for audit logging; OrderNumber is the merchant reference
// recovered from the metadata the bridge attached at creation time.
type Snapshot struct {
	ID          string
	Status      Status
	OrderNumber string
	Raw         map[string]any
}

// Event is published once when an order reaches a terminal payment state.
type Event struct {
	EventID     string    `json:"event_id"`
	OrderNumber string    `json:"order_number"`
	PaymentID   string    `json:"payment_id"`
	Status      Status    `json:"status"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}
