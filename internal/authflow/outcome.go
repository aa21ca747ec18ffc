package authflow

import (
	"context"
	"net/url"
	"sync"
)

type outcomeState int

const (
	outcomePending outcomeState = iota
	outcomeResolved
	outcomeRejected
)

// Outcome is a one-shot result slot: pending until it is resolved with a URL or rejected
// with an error. Only the first Resolve or Reject has an effect.
type Outcome struct {
	mu    sync.Mutex
	state outcomeState
	url   *url.URL
	err   error
	done  chan struct{}
}

// NewOutcome creates a pending outcome
func NewOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

// Resolve settles the outcome with u. It reports false if the outcome had already settled.
func (o *Outcome) Resolve(u *url.URL) bool {
	if u == nil {
		return false
	}
	copied := *u

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != outcomePending {
		return false
	}
	o.state = outcomeResolved
	o.url = &copied
	close(o.done)
	return true
}

// Reject settles the outcome with err. It reports false if the outcome had already settled.
func (o *Outcome) Reject(err error) bool {
	if err == nil {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != outcomePending {
		return false
	}
	o.state = outcomeRejected
	o.err = err
	close(o.done)
	return true
}

// Done is closed once the outcome settles
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Settled reports whether the outcome was resolved or rejected
func (o *Outcome) Settled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state != outcomePending
}

// Result returns the settled value without blocking. It returns ErrOutcomePending while pending.
func (o *Outcome) Result() (*url.URL, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case outcomeResolved:
		copied := *o.url
		return &copied, nil
	case outcomeRejected:
		return nil, o.err
	default:
		return nil, ErrOutcomePending
	}
}

// Wait blocks until the outcome settles or ctx is done
func (o *Outcome) Wait(ctx context.Context) (*url.URL, error) {
	select {
	case <-o.done:
		return o.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
