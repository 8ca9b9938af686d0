package payment

import (
	"errors"
	"net"
	"syscall"
)

// IsRetryable classifies an error from a gateway call. Retryable errors
// mean the payment's real state is unknown: the caller leaves the order
// untouched and lets a later webhook delivery or the stale-payment poller
// try again. Non-retryable errors are definitive rejections.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrGatewayUnavailable) {
		return true
	}
	return isRetryableNetworkError(err) || isRetryableSystemError(err)
}

func isRetryableNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableSystemError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
