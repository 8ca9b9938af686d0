// Package worker re-checks payments whose webhook never arrived.
//
// A shopper can pay while the webhook delivery fails, leaving the database
// saying pending while the gateway says paid. The poller periodically asks
// the gateway what really happened to old pending payments and lets the
// reconciler fix the mismatch.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qteco/mall-mollie-bridge/internal/order"
	"github.com/qteco/mall-mollie-bridge/internal/payment"
)

type reconciler interface {
	Reconcile(ctx context.Context, paymentID string) payment.Result
}

type Poller struct {
	store order.Store
	rec   reconciler
	log   zerolog.Logger

	interval    time.Duration
	maxAge      time.Duration // how old a pending payment must be to count as stuck
	batchSize   int
	workerCount int
}

func NewPoller(store order.Store, rec reconciler, log zerolog.Logger, interval, maxAge time.Duration, batchSize int) *Poller {
	return &Poller{
		store:       store,
		rec:         rec,
		log:         log,
		interval:    interval,
		maxAge:      maxAge,
		batchSize:   batchSize,
		workerCount: 5,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps a single batch of stuck pending payments through the
// reconciler with a bounded number of goroutines.
func (p *Poller) RunOnce(ctx context.Context) {
	stale, err := p.store.ListStalePending(ctx, p.batchSize, p.maxAge)
	if err != nil {
		p.log.Error().Err(err).Msg("listing stale pending orders failed")
		return
	}
	if len(stale) == 0 {
		return
	}
	p.log.Info().Int("count", len(stale)).Msg("re-checking stuck pending payments")

	jobs := make(chan *order.Order)
	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for o := range jobs {
				res := p.rec.Reconcile(ctx, o.PaymentID)
				if res.Err != nil {
					p.log.Warn().Err(res.Err).
						Str("order", o.OrderNumber).
						Str("payment_id", o.PaymentID).
						Msg("re-check failed, will retry next sweep")
				}
			}
		}()
	}
	for _, o := range stale {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- o:
		}
	}
	close(jobs)
	wg.Wait()
}
