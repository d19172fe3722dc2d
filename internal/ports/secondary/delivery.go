package secondary

import (
	"context"
	"fmt"
	"time"
)

// Error classes recorded on failed escalation events.
const (
	ErrClassTimeout          = "timeout"
	ErrClassRateLimited      = "rate_limited"
	ErrClassServerError      = "server_error"
	ErrClassInvalidRecipient = "invalid_recipient"
	ErrClassUnauthorized     = "unauthorized"
)

// DeliveryError is a classified provider failure. Transient failures are
// retried inside the gateway; permanent ones surface immediately.
type DeliveryError struct {
	Class     string
	Transient bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %v", e.Class, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Message is one outbound notification to a single recipient address.
type Message struct {
	CardID    string
	Recipient string // channel-appropriate address
	Subject   string
	Body      string
}

// DeliveryResult is the uniform result shape across all providers.
type DeliveryResult struct {
	Success           bool
	ProviderMessageID string
	ErrorClass        string
}

// DeliveryProvider wraps one external delivery service behind a
// synchronous send-and-acknowledge call.
type DeliveryProvider interface {
	// Send delivers the message. Provider failures are returned as
	// *DeliveryError so the gateway can classify them.
	Send(ctx context.Context, msg Message) (DeliveryResult, error)

	// Name returns the provider name for logging.
	Name() string
}

// Renderer resolves a template and variable map into a rendered
// subject and body. Substitution is treated as an external pure function.
type Renderer interface {
	Render(templateID string, vars map[string]string) (subject, body string, err error)
}

// Clock abstracts the time source so tests can simulate multi-day
// elapsed time without real delays.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }
