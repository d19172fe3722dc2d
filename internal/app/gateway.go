package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/cardwatch/internal/core/policy"
	"github.com/example/cardwatch/internal/ports/secondary"
)

// SendRequest is a single delivery on one channel to one recipient.
// For the comment channel Recipient is ignored; the message is posted
// to the card itself.
type SendRequest struct {
	CardID    string
	Channel   policy.Channel
	Recipient string
	Subject   string
	Body      string
}

// Sender dispatches a rendered message on a concrete channel.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (secondary.DeliveryResult, error)
}

// RetryConfig bounds the in-gateway retry loop for transient failures.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig retries transient delivery errors twice with
// exponential backoff before giving up.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Gateway routes channel variants to their delivery providers. Transient
// failures are retried with exponential backoff inside the gateway;
// permanent failures surface immediately.
type Gateway struct {
	board     secondary.BoardClient
	providers map[policy.Channel]secondary.DeliveryProvider
	retry     RetryConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

var _ Sender = (*Gateway)(nil)

// NewGateway builds a gateway over the given board client and per-channel
// providers. Channels without a provider entry fail permanently.
func NewGateway(board secondary.BoardClient, providers map[policy.Channel]secondary.DeliveryProvider, retry RetryConfig) *Gateway {
	return &Gateway{
		board:     board,
		providers: providers,
		retry:     retry,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Send delivers the request, retrying transient errors per the retry
// config. The returned result always carries the final outcome; a non-nil
// error means the message was not delivered.
func (g *Gateway) Send(ctx context.Context, req SendRequest) (secondary.DeliveryResult, error) {
	backoff := g.retry.InitialBackoff
	var lastResult secondary.DeliveryResult
	var lastErr error

	for attempt := 1; ; attempt++ {
		result, err := g.attempt(ctx, req)
		if err == nil {
			return result, nil
		}
		lastResult, lastErr = result, err

		var de *secondary.DeliveryError
		if !errors.As(err, &de) || !de.Transient {
			return lastResult, lastErr
		}
		if attempt >= g.retry.MaxAttempts {
			return lastResult, lastErr
		}
		if serr := g.sleep(ctx, backoff); serr != nil {
			return lastResult, lastErr
		}
		backoff = time.Duration(float64(backoff) * g.retry.Multiplier)
		if backoff > g.retry.MaxBackoff {
			backoff = g.retry.MaxBackoff
		}
	}
}

func (g *Gateway) attempt(ctx context.Context, req SendRequest) (secondary.DeliveryResult, error) {
	if req.Channel == policy.ChannelComment {
		return g.postComment(ctx, req)
	}

	provider, ok := g.providers[req.Channel]
	if !ok {
		err := &secondary.DeliveryError{
			Class:     secondary.ErrClassInvalidRecipient,
			Transient: false,
			Err:       fmt.Errorf("no provider configured for channel %s", req.Channel),
		}
		return secondary.DeliveryResult{Success: false, ErrorClass: err.Class}, err
	}
	return provider.Send(ctx, secondary.Message{
		CardID:    req.CardID,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Body:      req.Body,
	})
}

// postComment adapts the board client's comment endpoint to the delivery
// result shape. Board outages read as transient, auth failures as permanent.
func (g *Gateway) postComment(ctx context.Context, req SendRequest) (secondary.DeliveryResult, error) {
	err := g.board.PostComment(ctx, req.CardID, req.Body)
	if err == nil {
		return secondary.DeliveryResult{Success: true}, nil
	}

	class := secondary.ErrClassServerError
	transient := true
	if errors.Is(err, secondary.ErrBoardAuth) {
		class = secondary.ErrClassUnauthorized
		transient = false
	}
	de := &secondary.DeliveryError{Class: class, Transient: transient, Err: err}
	return secondary.DeliveryResult{Success: false, ErrorClass: class}, de
}
