package worker

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qteco/mall-mollie-bridge/internal/order"
	"github.com/qteco/mall-mollie-bridge/internal/payment"
	"github.com/qteco/mall-mollie-bridge/internal/store/memory"
)

type recordingReconciler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingReconciler) Reconcile(ctx context.Context, paymentID string) payment.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, paymentID)
	return payment.Result{Successful: true, MessageKey: payment.MsgPaid}
}

func TestRunOnceSweepsOnlyStuckPayments(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	mk := func(number, paymentID string) *order.Order {
		o := &order.Order{OrderNumber: number, TotalCents: 1000, Currency: "EUR"}
		if err := store.Create(ctx, o); err != nil {
			t.Fatal(err)
		}
		if paymentID != "" {
			if err := store.SetPaymentID(ctx, o.ID, paymentID); err != nil {
				t.Fatal(err)
			}
		}
		return o
	}

	mk("O-1", "tr_1")
	mk("O-2", "tr_2")
	mk("O-3", "") // checkout never initiated, nothing to re-check
	settled := mk("O-4", "tr_4")
	if _, err := store.MarkState(ctx, settled.ID, order.StatePaid); err != nil {
		t.Fatal(err)
	}

	rec := &recordingReconciler{}
	// maxAge 0 makes every pending payment count as stuck immediately.
	p := NewPoller(store, rec, zerolog.Nop(), time.Minute, 0, 50)

	// UpdatedAt must fall behind the cutoff computed at sweep time.
	time.Sleep(10 * time.Millisecond)
	p.RunOnce(ctx)

	sort.Strings(rec.ids)
	if len(rec.ids) != 2 || rec.ids[0] != "tr_1" || rec.ids[1] != "tr_2" {
		t.Fatalf("reconciled %v, want [tr_1 tr_2]", rec.ids)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	rec := &recordingReconciler{}
	p := NewPoller(store, rec, zerolog.Nop(), 5*time.Millisecond, 0, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
