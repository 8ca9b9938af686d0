package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/qteco/mall-mollie-bridge/internal/order"
	"github.com/qteco/mall-mollie-bridge/internal/payment"
)

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	PaymentID   string `json:"payment_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleCheckout creates a gateway payment for a pending order and returns
// the hosted checkout URL the shop redirects the shopper to.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "orderNumber")

	o, err := s.store.GetByNumber(r.Context(), number)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "unknown order")
		return
	}
	if o.State != order.StatePending {
		s.writeError(w, http.StatusConflict, "order is not awaiting payment")
		return
	}

	returnURL := s.opts.PublicBaseURL + "/payments/return?order=" + url.QueryEscape(number)
	webhookURL := s.opts.PublicBaseURL + "/payments/webhook"

	h, err := s.rec.Initiate(r.Context(), o, returnURL, webhookURL)
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrInvalidCurrency):
		s.log.Error().Err(err).Str("order", number).Msg("order rejected before gateway call")
		s.writeError(w, http.StatusUnprocessableEntity, "order cannot be paid")
		return
	case payment.IsRetryable(err):
		s.log.Error().Err(err).Str("order", number).Msg("gateway unavailable during checkout")
		s.writeError(w, http.StatusBadGateway, "payment provider unavailable, try again")
		return
	default:
		s.log.Error().Err(err).Str("order", number).Msg("creating payment failed")
		s.writeError(w, http.StatusInternalServerError, "creating payment failed")
		return
	}

	s.writeJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: h.CheckoutURL, PaymentID: h.ID})
}

// handleWebhook is called by the gateway after a payment status change.
// The body is form-encoded and carries only the payment id; the current
// status is always fetched back from the gateway. Only the response status
// code matters to the caller: 2xx acknowledges, 5xx triggers redelivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	paymentID := r.PostFormValue("id")
	if paymentID == "" {
		s.writeError(w, http.StatusBadRequest, "missing payment id")
		return
	}

	res := s.rec.Reconcile(r.Context(), paymentID)
	if res.Err != nil {
		if payment.IsRetryable(res.Err) {
			// Ask the gateway to deliver again later.
			s.writeError(w, http.StatusInternalServerError, "temporarily unable to process")
			return
		}
		// Data-integrity failures (no matching order) are logged by the
		// reconciler; acknowledging stops pointless redelivery.
		if !errors.Is(res.Err, order.ErrOrderNotFound) {
			s.writeError(w, http.StatusInternalServerError, "processing failed")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handleReturn is where the gateway sends the shopper's browser after the
// hosted checkout. It reconciles using the payment id persisted on the
// order at initiate time, then forwards to the shop's outcome page.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("order")
	if number == "" {
		http.Redirect(w, r, s.opts.FailureURL, http.StatusSeeOther)
		return
	}

	o, err := s.store.GetByNumber(r.Context(), number)
	if err != nil || o.PaymentID == "" {
		s.log.Error().Err(err).Str("order", number).Msg("browser return for unknown payment")
		http.Redirect(w, r, s.opts.FailureURL, http.StatusSeeOther)
		return
	}

	res := s.rec.Reconcile(r.Context(), o.PaymentID)
	target := s.opts.FailureURL
	if res.Successful {
		target = s.opts.SuccessURL
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("writing response failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
