package payment

import "context"

// Gateway abstracts the payment provider. It accepts a Context so request
// timeouts and cancellation propagate into the provider call.
type Gateway interface {
	// CreatePayment registers a payment at the provider and returns the
	// hosted checkout handle. No order state is touched on failure.
	CreatePayment(ctx context.Context, req CreateRequest) (*Handle, error)

	// GetPayment fetches the provider's current view of a payment.
	GetPayment(ctx context.Context, id string) (*Snapshot, error)
}

// MethodLister is an optional gateway capability: providers that expose the
// set of payment methods enabled in their dashboard implement it. The
// reconciler only forwards an order's requested method when the provider
// reports it active.
type MethodLister interface {
	ActiveMethods(ctx context.Context) ([]string, error)
}

// Publisher receives one event per terminal transition. Implementations
// must tolerate being skipped entirely (reconciliation never republishes
// for an order that is already terminal).
type Publisher interface {
	PaymentEvent(ctx context.Context, e Event) error
}
