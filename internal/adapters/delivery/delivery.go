// Package delivery contains HTTP adapters for the external delivery
// providers (email, SMS, chat webhook).
package delivery

import (
	"fmt"
	"net/http"
	"time"

	"github.com/example/cardwatch/internal/ports/secondary"
)

const requestTimeout = 10 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// classifyStatus maps a provider HTTP status onto the delivery error
// taxonomy. Transient classes are retried by the gateway.
func classifyStatus(provider string, status int) *secondary.DeliveryError {
	if status < 400 {
		return nil
	}

	err := fmt.Errorf("%s returned status %d", provider, status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &secondary.DeliveryError{Class: secondary.ErrClassUnauthorized, Transient: false, Err: err}
	case status == http.StatusTooManyRequests:
		return &secondary.DeliveryError{Class: secondary.ErrClassRateLimited, Transient: true, Err: err}
	case status >= 500:
		return &secondary.DeliveryError{Class: secondary.ErrClassServerError, Transient: true, Err: err}
	default:
		// Remaining 4xx means the provider rejected the request itself,
		// almost always a bad address.
		return &secondary.DeliveryError{Class: secondary.ErrClassInvalidRecipient, Transient: false, Err: err}
	}
}

// transportError wraps a network-level failure as a transient timeout.
func transportError(provider string, err error) *secondary.DeliveryError {
	return &secondary.DeliveryError{
		Class:     secondary.ErrClassTimeout,
		Transient: true,
		Err:       fmt.Errorf("%s request: %w", provider, err),
	}
}
