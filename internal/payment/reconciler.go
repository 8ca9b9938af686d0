package payment

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/qteco/mall-mollie-bridge/internal/order"
)

// Localized message keys, one per outcome. The shop's translation catalog
// resolves them; raw gateway status text never reaches the shopper.
const (
	MsgPaid        = "payment_status.paid"
	MsgFailed      = "payment_status.failed"
	MsgExpired     = "payment_status.expired"
	MsgCancelled   = "payment_status.cancelled"
	MsgOpen        = "payment_status.open"
	MsgUnknown     = "payment_status.unknown"
	MsgUnavailable = "payment_status.unavailable"
	MsgNoOrder     = "payment_status.order_missing"
)

// Result is the outcome of reconciling one notification.
// Err is nil for processed notifications, including the deliberate no-op
// for non-terminal statuses; those report Successful=false with the order
// left pending.
type Result struct {
	Successful bool
	Order      *order.Order
	Payload    map[string]any
	MessageKey string
	Err        error
}

// Reconciler owns the mapping from gateway payment status to order outcome.
// It is stateless apart from the in-flight dedup group and safe for
// concurrent use; all durable state lives in the order store.
type Reconciler struct {
	store     order.Store
	gateway   Gateway
	publisher Publisher
	log       zerolog.Logger

	// sf collapses concurrent initiations for the same order into a single
	// gateway call; the losers receive the winner's handle.
	sf singleflight.Group
}

func NewReconciler(store order.Store, gateway Gateway, publisher Publisher, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		log:       log,
	}
}

// Initiate creates a gateway payment for the order and persists the
// returned payment id on the order record before handing back the hosted
// checkout handle. On any gateway error no partial state is kept: the
// order is neither paid nor attempted.
func (r *Reconciler) Initiate(ctx context.Context, o *order.Order, returnURL, webhookURL string) (*Handle, error) {
	if o.TotalCents <= 0 {
		return nil, fmt.Errorf("order %s: %w: %d cents", o.OrderNumber, ErrInvalidAmount, o.TotalCents)
	}
	if !validCurrency(o.Currency) {
		return nil, fmt.Errorf("order %s: %w: %q", o.OrderNumber, ErrInvalidCurrency, o.Currency)
	}

	req := CreateRequest{
		AmountValue: formatAmount(o.TotalCents),
		Currency:    o.Currency,
		Description: "Order " + o.OrderNumber,
		RedirectURL: returnURL,
		WebhookURL:  webhookURL,
		Method:      r.resolveMethod(ctx, o),
		Metadata: map[string]string{
			"order_number": o.OrderNumber,
		},
	}

	v, err, _ := r.sf.Do("initiate_"+o.OrderNumber, func() (any, error) {
		h, err := r.gateway.CreatePayment(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("order %s: create payment: %w", o.OrderNumber, err)
		}
		// Persist the payment id before the shopper is redirected, so a
		// notification can be matched even without the metadata round-trip.
		if err := r.store.SetPaymentID(ctx, o.ID, h.ID); err != nil {
			return nil, fmt.Errorf("order %s: store payment id %s: %w", o.OrderNumber, h.ID, err)
		}
		r.log.Info().
			Str("order", o.OrderNumber).
			Str("payment_id", h.ID).
			Str("amount", req.AmountValue).
			Str("currency", req.Currency).
			Msg("payment created")
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Reconcile processes one notification, identified by the gateway payment
// id, and applies at most one terminal transition to the matched order.
// Safe under at-least-once webhook delivery: replays of a terminal status
// return the original outcome without re-firing side effects.
func (r *Reconciler) Reconcile(ctx context.Context, paymentID string) Result {
	snap, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		// The payment's real state is unknown. Leave the order alone and
		// let the gateway redeliver or the poller pick it up.
		r.log.Error().Err(err).Str("payment_id", paymentID).Msg("payment status fetch failed")
		return Result{
			MessageKey: MsgUnavailable,
			Err:        fmt.Errorf("payment %s: fetch status: %w", paymentID, err),
		}
	}

	o, err := r.resolveOrder(ctx, snap)
	if err != nil {
		r.log.Error().Err(err).
			Str("payment_id", snap.ID).
			Str("order", snap.OrderNumber).
			Msg("no order matches payment")
		return Result{Payload: snap.Raw, MessageKey: MsgNoOrder, Err: err}
	}

	next, terminal := stateFor(snap.Status)
	if !terminal {
		if snap.Status == StatusUnknown {
			r.log.Warn().
				Str("order", o.OrderNumber).
				Str("payment_id", snap.ID).
				Msg("unrecognized payment status, order left pending")
			return Result{Order: o, Payload: snap.Raw, MessageKey: MsgUnknown}
		}
		r.log.Info().
			Str("order", o.OrderNumber).
			Str("payment_id", snap.ID).
			Str("status", string(snap.Status)).
			Msg("non-terminal payment status, nothing to apply")
		return Result{Order: o, Payload: snap.Raw, MessageKey: MsgOpen}
	}

	// Replayed notification for an already settled order: report the
	// original outcome, skip the write and the event.
	if o.State.Terminal() {
		return r.resultFor(o, snap)
	}

	moved, err := r.store.MarkState(ctx, o.ID, next)
	if err != nil {
		return Result{
			Order:      o,
			Payload:    snap.Raw,
			MessageKey: MsgUnavailable,
			Err:        fmt.Errorf("order %s: mark %s: %w", o.OrderNumber, next, err),
		}
	}
	if !moved {
		// Lost the race against a concurrent notification. Report whatever
		// the winner applied, without duplicating its side effects.
		current, err := r.store.GetByNumber(ctx, o.OrderNumber)
		if err != nil {
			return Result{Order: o, Payload: snap.Raw, MessageKey: MsgUnavailable,
				Err: fmt.Errorf("order %s: reload after lost update: %w", o.OrderNumber, err)}
		}
		return r.resultFor(current, snap)
	}
	o.State = next

	r.log.Info().
		Str("order", o.OrderNumber).
		Str("payment_id", snap.ID).
		Str("status", string(snap.Status)).
		Str("state", string(next)).
		Msg("order settled")
	r.publish(ctx, o, snap)

	return r.resultFor(o, snap)
}

func (r *Reconciler) resolveOrder(ctx context.Context, snap *Snapshot) (*order.Order, error) {
	if snap.OrderNumber != "" {
		o, err := r.store.GetByNumber(ctx, snap.OrderNumber)
		if err == nil {
			return o, nil
		}
	}
	o, err := r.store.GetByPaymentID(ctx, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("payment %s (order %q): %w", snap.ID, snap.OrderNumber, err)
	}
	return o, nil
}

// resolveMethod forwards the order's requested payment method only when the
// gateway reports it enabled. Listing failures are logged and the method is
// dropped, leaving the choice to the hosted checkout page.
func (r *Reconciler) resolveMethod(ctx context.Context, o *order.Order) string {
	if o.Method == "" {
		return ""
	}
	lister, ok := r.gateway.(MethodLister)
	if !ok {
		return o.Method
	}
	active, err := lister.ActiveMethods(ctx)
	if err != nil {
		r.log.Warn().Err(err).Str("order", o.OrderNumber).Msg("listing active payment methods failed")
		return ""
	}
	for _, m := range active {
		if m == o.Method {
			return o.Method
		}
	}
	return ""
}

func (r *Reconciler) publish(ctx context.Context, o *order.Order, snap *Snapshot) {
	e := Event{
		EventID:     uuid.NewString(),
		OrderNumber: o.OrderNumber,
		PaymentID:   snap.ID,
		Status:      snap.Status,
		AmountCents: o.TotalCents,
		Currency:    o.Currency,
		OccurredAt:  time.Now().UTC(),
	}
	if err := r.publisher.PaymentEvent(ctx, e); err != nil {
		// The transition is already durable; a dropped event must not fail
		// the notification or the gateway would redeliver forever.
		r.log.Warn().Err(err).
			Str("order", o.OrderNumber).
			Str("event_id", e.EventID).
			Msg("publishing payment event failed")
	}
}

func (r *Reconciler) resultFor(o *order.Order, snap *Snapshot) Result {
	res := Result{Order: o, Payload: snap.Raw}
	switch o.State {
	case order.StatePaid:
		res.Successful = true
		res.MessageKey = MsgPaid
	case order.StateFailed:
		res.MessageKey = MsgFailed
	case order.StateExpired:
		res.MessageKey = MsgExpired
	case order.StateCancelled:
		res.MessageKey = MsgCancelled
	default:
		res.MessageKey = MsgOpen
	}
	return res
}

// stateFor maps a gateway status onto the order transition it implies.
// Non-terminal statuses imply none.
func stateFor(s Status) (order.State, bool) {
	switch s {
	case StatusPaid:
		return order.StatePaid, true
	case StatusFailed:
		return order.StateFailed, true
	case StatusExpired:
		return order.StateExpired, true
	case StatusCancelled:
		return order.StateCancelled, true
	}
	return "", false
}

// formatAmount renders cents as the exact two-decimal string the gateway
// expects, e.g. 4999 -> "49.99".
func formatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if !unicode.IsUpper(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
