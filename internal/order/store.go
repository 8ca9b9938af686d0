package order

import (
	"context"
	"time"
)

// Store is the persistence contract for orders.
type Store interface {
	// Create inserts a new order and fills in its assigned ID.
	Create(ctx context.Context, o *Order) error

	// GetByNumber fetches an order by its merchant reference.
	// Returns ErrOrderNotFound if no order matches.
	GetByNumber(ctx context.Context, number string) (*Order, error)

	// GetByPaymentID fetches the order a gateway payment id was persisted on.
	// This is the fallback lookup when a status snapshot carries no metadata.
	GetByPaymentID(ctx context.Context, paymentID string) (*Order, error)

	// SetPaymentID records the gateway payment id on the order. Must be
	// called before the shopper is redirected so a later notification can
	// always be matched back.
	SetPaymentID(ctx context.Context, id int64, paymentID string) error

	// MarkState moves the order into a terminal state, but only while the
	// current state is still pending. Reports whether the row actually
	// moved, so two racing notifications cannot both apply a transition.
	MarkState(ctx context.Context, id int64, next State) (bool, error)

	// ListStalePending fetches orders that are still pending, already have
	// a payment id, and have not been touched within olderThan. These are
	// the "webhook never arrived" candidates the poller re-checks.
	ListStalePending(ctx context.Context, limit int, olderThan time.Duration) ([]*Order, error)
}
