package order

import (
	"errors"
	"time"
)

// State is the payment lifecycle state of an order.
// pending is the initial state; the four others are terminal.
type State string

const (
	StatePending   State = "pending"
	StatePaid      State = "paid"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further automatic transition may leave s.
func (s State) Terminal() bool {
	switch s {
	case StatePaid, StateFailed, StateExpired, StateCancelled:
		return true
	}
	return false
}

// ErrOrderNotFound is returned when a lookup matches no order. A webhook
// carrying a payment id that resolves to no order indicates a metadata or
// persistence bug upstream, so callers must log it, never drop it.
var ErrOrderNotFound = errors.New("order not found")

// Order is the merchant-side order record the bridge reconciles against.
// The shop owns the full order; the bridge only reads the fields it needs
// and requests state updates.
type Order struct {
	ID          int64
	OrderNumber string // human-readable reference, e.g. "O-1001"
	TotalCents  int64
	Currency    string // ISO-4217, e.g. "EUR"
	State       State
	PaymentID   string // gateway payment id, set when checkout is initiated
	Method      string // requested gateway payment method code, optional
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
