package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/cardwatch/internal/core/policy"
	"github.com/example/cardwatch/internal/ports/secondary"
)

type scriptedProvider struct {
	name  string
	calls int
	msgs  []secondary.Message

	// script[i] is returned for call i; calls past the end succeed.
	script []error
}

func (p *scriptedProvider) Send(_ context.Context, msg secondary.Message) (secondary.DeliveryResult, error) {
	p.msgs = append(p.msgs, msg)
	idx := p.calls
	p.calls++
	if idx < len(p.script) && p.script[idx] != nil {
		err := p.script[idx]
		var de *secondary.DeliveryError
		res := secondary.DeliveryResult{Success: false}
		if errors.As(err, &de) {
			res.ErrorClass = de.Class
		}
		return res, err
	}
	return secondary.DeliveryResult{Success: true, ProviderMessageID: fmt.Sprintf("msg-%d", idx)}, nil
}

func (p *scriptedProvider) Name() string { return p.name }

type fakeBoard struct {
	comments    []string
	commentErr  error
	cards       []*secondary.BoardCard
	activities  map[string][]secondary.BoardActivity
	listErr     error
	activityErr error
}

func (b *fakeBoard) ListMonitored(_ context.Context, page, pageSize int) ([]*secondary.BoardCard, bool, error) {
	if b.listErr != nil {
		return nil, false, b.listErr
	}
	start := (page - 1) * pageSize
	if start >= len(b.cards) {
		return nil, false, nil
	}
	end := start + pageSize
	if end > len(b.cards) {
		end = len(b.cards)
	}
	return b.cards[start:end], end < len(b.cards), nil
}

func (b *fakeBoard) ActivitySince(_ context.Context, cardID string, since time.Time) ([]secondary.BoardActivity, error) {
	if b.activityErr != nil {
		return nil, b.activityErr
	}
	var out []secondary.BoardActivity
	for _, a := range b.activities[cardID] {
		if a.Timestamp.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (b *fakeBoard) PostComment(_ context.Context, cardID, body string) error {
	if b.commentErr != nil {
		return b.commentErr
	}
	b.comments = append(b.comments, cardID+": "+body)
	return nil
}

func transientErr() *secondary.DeliveryError {
	return &secondary.DeliveryError{Class: secondary.ErrClassTimeout, Transient: true, Err: errors.New("timeout")}
}

func permanentErr() *secondary.DeliveryError {
	return &secondary.DeliveryError{Class: secondary.ErrClassInvalidRecipient, Transient: false, Err: errors.New("bad address")}
}

func newTestGateway(board secondary.BoardClient, providers map[policy.Channel]secondary.DeliveryProvider) *Gateway {
	g := NewGateway(board, providers, RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     2.0,
	})
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func TestGatewayRetriesTransientFailures(t *testing.T) {
	provider := &scriptedProvider{name: "email", script: []error{transientErr(), transientErr()}}
	g := newTestGateway(&fakeBoard{}, map[policy.Channel]secondary.DeliveryProvider{
		policy.ChannelEmail: provider,
	})

	res, err := g.Send(context.Background(), SendRequest{
		CardID:    "card-1",
		Channel:   policy.ChannelEmail,
		Recipient: "dev@example.com",
		Subject:   "reminder",
		Body:      "please respond",
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, provider.calls)
}

func TestGatewayGivesUpAfterMaxAttempts(t *testing.T) {
	provider := &scriptedProvider{name: "email", script: []error{transientErr(), transientErr(), transientErr()}}
	g := newTestGateway(&fakeBoard{}, map[policy.Channel]secondary.DeliveryProvider{
		policy.ChannelEmail: provider,
	})

	res, err := g.Send(context.Background(), SendRequest{Channel: policy.ChannelEmail, Recipient: "dev@example.com"})

	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, secondary.ErrClassTimeout, res.ErrorClass)
	assert.Equal(t, 3, provider.calls)
}

func TestGatewayDoesNotRetryPermanentFailures(t *testing.T) {
	provider := &scriptedProvider{name: "sms", script: []error{permanentErr()}}
	g := newTestGateway(&fakeBoard{}, map[policy.Channel]secondary.DeliveryProvider{
		policy.ChannelSMS: provider,
	})

	res, err := g.Send(context.Background(), SendRequest{Channel: policy.ChannelSMS, Recipient: "+15550100"})

	require.Error(t, err)
	var de *secondary.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.False(t, de.Transient)
	assert.Equal(t, secondary.ErrClassInvalidRecipient, res.ErrorClass)
	assert.Equal(t, 1, provider.calls)
}

func TestGatewayRoutesCommentsToBoard(t *testing.T) {
	board := &fakeBoard{}
	g := newTestGateway(board, nil)

	res, err := g.Send(context.Background(), SendRequest{
		CardID:  "card-9",
		Channel: policy.ChannelComment,
		Body:    "still waiting",
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, board.comments, 1)
	assert.Equal(t, "card-9: still waiting", board.comments[0])
}

func TestGatewayCommentAuthFailureIsPermanent(t *testing.T) {
	board := &fakeBoard{commentErr: secondary.ErrBoardAuth}
	g := newTestGateway(board, nil)

	res, err := g.Send(context.Background(), SendRequest{CardID: "card-9", Channel: policy.ChannelComment})

	require.Error(t, err)
	var de *secondary.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.False(t, de.Transient)
	assert.Equal(t, secondary.ErrClassUnauthorized, res.ErrorClass)
}

func TestGatewayUnconfiguredChannelFailsPermanently(t *testing.T) {
	g := newTestGateway(&fakeBoard{}, nil)

	_, err := g.Send(context.Background(), SendRequest{Channel: policy.ChannelChat, Recipient: "#ops"})

	var de *secondary.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.False(t, de.Transient)
	assert.Equal(t, secondary.ErrClassInvalidRecipient, de.Class)
}
