package mailer

import (
	"context"
	"fmt"
	"sync/atomic"
)

var (
	ErrNoHealthy = fmt.Errorf("no healthy mail providers")
	ErrNoAcquire = fmt.Errorf("provider not acquired")
)

// Router fans sends across healthy providers round-robin, retrying up to
// maxAttempts across the pool before giving up.
type Router struct {
	providers   []Transport
	rrCounter   atomic.Uint64
	maxAttempts int
}

func NewRouter(providers []Transport, maxAttempts int) *Router {
	if maxAttempts < 1 {
		maxAttempts = 2
	}
	return &Router{providers: providers, maxAttempts: maxAttempts}
}

func (r *Router) selectProvider() (Transport, error) {
	healthy := make([]Transport, 0, len(r.providers))
	for _, p := range r.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := r.rrCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (r *Router) tryOnce(ctx context.Context, email Email) (string, error) {
	p, err := r.selectProvider()
	if err != nil {
		return "", err
	}

	if !p.Acquire() {
		return "", ErrNoAcquire
	}

	return p.Send(ctx, email)
}

// Send dispatches one email and returns the provider message id.
func (r *Router) Send(ctx context.Context, email Email) (string, error) {
	var last error
	for i := 0; i < r.maxAttempts; i++ {
		id, err := r.tryOnce(ctx, email)
		if err == nil {
			return id, nil
		}
		last = err
	}

	if last == nil {
		last = fmt.Errorf("send failed")
	}

	return "", last
}
