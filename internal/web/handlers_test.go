package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qteco/mall-mollie-bridge/internal/order"
	"github.com/qteco/mall-mollie-bridge/internal/payment"
	"github.com/qteco/mall-mollie-bridge/internal/store/memory"
)

type stubReconciler struct {
	initiateHandle *payment.Handle
	initiateErr    error
	lastReturnURL  string
	lastWebhookURL string

	reconcileResult payment.Result
	reconciledIDs   []string
}

func (s *stubReconciler) Initiate(ctx context.Context, o *order.Order, returnURL, webhookURL string) (*payment.Handle, error) {
	s.lastReturnURL = returnURL
	s.lastWebhookURL = webhookURL
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	return s.initiateHandle, nil
}

func (s *stubReconciler) Reconcile(ctx context.Context, paymentID string) payment.Result {
	s.reconciledIDs = append(s.reconciledIDs, paymentID)
	return s.reconcileResult
}

func newTestServer(t *testing.T, rec *stubReconciler, store order.Store) *Server {
	t.Helper()
	return NewServer(rec, store, Options{
		PublicBaseURL: "https://bridge.example",
		SuccessURL:    "https://shop.example/thanks",
		FailureURL:    "https://shop.example/sorry",
	}, zerolog.Nop())
}

func seed(t *testing.T, store order.Store, number string, state order.State, paymentID string) *order.Order {
	t.Helper()
	o := &order.Order{OrderNumber: number, TotalCents: 4999, Currency: "EUR", State: state, PaymentID: paymentID}
	require.NoError(t, store.Create(context.Background(), o))
	if paymentID != "" {
		require.NoError(t, store.SetPaymentID(context.Background(), o.ID, paymentID))
	}
	return o
}

func TestCheckoutReturnsCheckoutURL(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "O-1001", order.StatePending, "")
	rec := &stubReconciler{initiateHandle: &payment.Handle{ID: "tr_1", CheckoutURL: "https://pay.example/tr_1"}}
	srv := newTestServer(t, rec, store)

	req := httptest.NewRequest(http.MethodPost, "/checkout/O-1001", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://pay.example/tr_1", resp.CheckoutURL)
	assert.Equal(t, "tr_1", resp.PaymentID)

	// The return URL must carry the order reference back to us.
	assert.Equal(t, "https://bridge.example/payments/return?order="+url.QueryEscape("O-1001"), rec.lastReturnURL)
	assert.Equal(t, "https://bridge.example/payments/webhook", rec.lastWebhookURL)
}

func TestCheckoutUnknownOrder(t *testing.T) {
	srv := newTestServer(t, &stubReconciler{}, memory.NewStore())

	req := httptest.NewRequest(http.MethodPost, "/checkout/O-404", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutSettledOrderConflicts(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "O-1001", order.StatePaid, "tr_1")
	srv := newTestServer(t, &stubReconciler{}, store)

	req := httptest.NewRequest(http.MethodPost, "/checkout/O-1001", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckoutGatewayDown(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "O-1001", order.StatePending, "")
	rec := &stubReconciler{initiateErr: fmt.Errorf("create: %w", payment.ErrGatewayUnavailable)}
	srv := newTestServer(t, rec, store)

	req := httptest.NewRequest(http.MethodPost, "/checkout/O-1001", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCheckoutInvalidOrderData(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "O-1001", order.StatePending, "")
	rec := &stubReconciler{initiateErr: fmt.Errorf("order O-1001: %w", payment.ErrInvalidAmount)}
	srv := newTestServer(t, rec, store)

	req := httptest.NewRequest(http.MethodPost, "/checkout/O-1001", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func webhookRequest(paymentID string) *http.Request {
	form := url.Values{}
	if paymentID != "" {
		form.Set("id", paymentID)
	}
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestWebhookAcknowledgesProcessedNotification(t *testing.T) {
	rec := &stubReconciler{reconcileResult: payment.Result{Successful: true, MessageKey: payment.MsgPaid}}
	srv := newTestServer(t, rec, memory.NewStore())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, webhookRequest("tr_123"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"tr_123"}, rec.reconciledIDs)
}

func TestWebhookMissingID(t *testing.T) {
	rec := &stubReconciler{}
	srv := newTestServer(t, rec, memory.NewStore())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, webhookRequest(""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, rec.reconciledIDs)
}

func TestWebhookRetryableFailureAsksForRedelivery(t *testing.T) {
	rec := &stubReconciler{reconcileResult: payment.Result{
		Err: fmt.Errorf("fetch: %w", payment.ErrGatewayUnavailable),
	}}
	srv := newTestServer(t, rec, memory.NewStore())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, webhookRequest("tr_123"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookOrderNotFoundIsAcknowledged(t *testing.T) {
	rec := &stubReconciler{reconcileResult: payment.Result{
		Err: fmt.Errorf("payment tr_123: %w", order.ErrOrderNotFound),
	}}
	srv := newTestServer(t, rec, memory.NewStore())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, webhookRequest("tr_123"))

	// Redelivering cannot fix a missing order; acknowledge and rely on logs.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReturnRedirectsByOutcome(t *testing.T) {
	tests := []struct {
		name       string
		result     payment.Result
		wantTarget string
	}{
		{"paid", payment.Result{Successful: true, MessageKey: payment.MsgPaid}, "https://shop.example/thanks"},
		{"cancelled", payment.Result{MessageKey: payment.MsgCancelled}, "https://shop.example/sorry"},
		{"still open", payment.Result{MessageKey: payment.MsgOpen}, "https://shop.example/sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			seed(t, store, "O-1001", order.StatePending, "tr_55")
			rec := &stubReconciler{reconcileResult: tt.result}
			srv := newTestServer(t, rec, store)

			req := httptest.NewRequest(http.MethodGet, "/payments/return?order=O-1001", nil)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			require.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.wantTarget, w.Header().Get("Location"))
			assert.Equal(t, []string{"tr_55"}, rec.reconciledIDs)
		})
	}
}

func TestReturnWithoutStoredPaymentFails(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, "O-1001", order.StatePending, "")
	rec := &stubReconciler{}
	srv := newTestServer(t, rec, store)

	req := httptest.NewRequest(http.MethodGet, "/payments/return?order=O-1001", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://shop.example/sorry", w.Header().Get("Location"))
	assert.Empty(t, rec.reconciledIDs)
}
