// Package throttle enforces a shared minimum interval between outbound
// sends. The limiter hands each caller a slot strictly after the previous
// one; many tasks racing to send therefore never land inside the same
// interval.
package throttle

import (
	"context"
	"sync/atomic"
	"time"
)

// Limiter reserves the next send slot and returns how long the caller must
// wait before using it.
type Limiter interface {
	Reserve(ctx context.Context) (time.Duration, error)
}

// Wait reserves a slot and sleeps the returned duration, honoring ctx.
func Wait(ctx context.Context, l Limiter) error {
	d, err := l.Reserve(ctx)
	if err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Local is a process-local limiter around an atomic last-slot timestamp,
// advanced with a compare-and-swap loop.
type Local struct {
	interval time.Duration
	lastNano atomic.Int64
}

func NewLocal(interval time.Duration) *Local {
	return &Local{interval: interval}
}

var _ Limiter = (*Local)(nil)

func (l *Local) Reserve(_ context.Context) (time.Duration, error) {
	if l.interval <= 0 {
		return 0, nil
	}
	for {
		now := time.Now().UnixNano()
		last := l.lastNano.Load()
		next := last + int64(l.interval)
		if next < now {
			next = now
		}
		if l.lastNano.CompareAndSwap(last, next) {
			return time.Duration(next - now), nil
		}
	}
}
