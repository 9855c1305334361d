// Package push provides the push-channel capability used by the inbox
// synchronizer: a subscription that is opened for one topic and delivers
// events until closed.
package push

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyOpen is returned by Open when the subscription is already open.
var ErrAlreadyOpen = errors.New("subscription already open")

// Event is one message received on a push channel.
type Event struct {
	ID   string
	Type string
	Data []byte
}

// Handler receives events. It is called from the subscription's goroutine.
type Handler func(Event)

// Request identifies what to subscribe to.
type Request struct {
	// Topic is the channel name, e.g. /accounts/{id}.
	Topic string

	// Token authorizes the subscription.
	Token string

	// OnRejected is called once, from the subscription's goroutine, when the
	// hub rejects Token. The subscription does not reconnect afterwards.
	OnRejected func(err error)
}

// Subscription is a long-lived push channel. Open starts delivery in the
// background and returns immediately; Close stops it and waits until no
// further events will be delivered. Close is idempotent.
type Subscription interface {
	Open(ctx context.Context, req Request, onEvent Handler) error
	Close() error
}

// Polling is the Subscription used when no push transport is available:
// it never delivers anything and leaves delivery to the poll loop.
type Polling struct{}

// Open implements Subscription.
func (Polling) Open(context.Context, Request, Handler) error { return nil }

// Close implements Subscription.
func (Polling) Close() error { return nil }

// Backoff is a capped exponential reconnect policy.
type Backoff struct {
	// Initial is the delay before the first reconnect.
	Initial time.Duration

	// Max caps every delay.
	Max time.Duration

	// Factor multiplies the delay after each failed attempt. Values below 1
	// keep the delay fixed at Initial.
	Factor float64

	// MaxAttempts stops reconnecting after that many consecutive failures.
	// Zero means retry for as long as the subscription is open.
	MaxAttempts int
}

// DefaultBackoff starts at 5s and doubles up to a minute, forever.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 5 * time.Second,
		Max:     time.Minute,
		Factor:  2,
	}
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := b.Initial
	if d <= 0 {
		d = time.Second
	}
	if b.Factor >= 1 {
		for i := 1; i < n; i++ {
			d = time.Duration(float64(d) * b.Factor)
			if b.Max > 0 && d >= b.Max {
				return b.Max
			}
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Exhausted reports whether attempt n exceeds the attempt budget.
func (b Backoff) Exhausted(n int) bool {
	return b.MaxAttempts > 0 && n > b.MaxAttempts
}
