// Package web exposes the three HTTP entry points of the bridge: starting
// a checkout, the gateway webhook, and the browser return page.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/qteco/mall-mollie-bridge/internal/order"
	"github.com/qteco/mall-mollie-bridge/internal/payment"
)

// Reconciler is the slice of the payment core the handlers need.
type Reconciler interface {
	Initiate(ctx context.Context, o *order.Order, returnURL, webhookURL string) (*payment.Handle, error)
	Reconcile(ctx context.Context, paymentID string) payment.Result
}

// Options carries the URLs the handlers build redirects from.
type Options struct {
	PublicBaseURL string // externally reachable root of this service
	SuccessURL    string // shop page for settled payments
	FailureURL    string // shop page for everything else
}

type Server struct {
	router chi.Router
	rec    Reconciler
	store  order.Store
	opts   Options
	log    zerolog.Logger
	httpd  *http.Server
}

func NewServer(rec Reconciler, store order.Store, opts Options, log zerolog.Logger) *Server {
	s := &Server{
		rec:   rec,
		store: store,
		opts:  opts,
		log:   log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/checkout/{orderNumber}", s.handleCheckout)
	r.Post("/payments/webhook", s.handleWebhook)
	r.Get("/payments/return", s.handleReturn)
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	s.httpd = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")
	err := s.httpd.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpd == nil {
		return nil
	}
	return s.httpd.Shutdown(ctx)
}
