package mailer

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// MicroBreaker is a small per-provider circuit breaker: it opens after a
// run of consecutive failures, stays open for a cool-down window, then lets
// a single probe through before closing again.
type MicroBreaker struct {
	mu        sync.Mutex
	state     breakerState
	fails     int
	threshold int
	coolDown  time.Duration
	retryAt   time.Time
	probing   bool
}

func NewMicroBreaker(threshold int, coolDown time.Duration) *MicroBreaker {
	return &MicroBreaker{threshold: threshold, coolDown: coolDown}
}

// Ready reports whether a call could be admitted right now, without
// claiming the probe slot.
func (b *MicroBreaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		return time.Now().After(b.retryAt) && !b.probing
	case stateHalfOpen:
		return !b.probing
	default:
		return true
	}
}

// TryAcquire admits a call. When the cool-down has elapsed it claims the
// single half-open probe slot.
func (b *MicroBreaker) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if !time.Now().After(b.retryAt) || b.probing {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	default: // half-open
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

func (b *MicroBreaker) OnSuccess() {
	b.mu.Lock()
	b.fails = 0
	b.state = stateClosed
	b.probing = false
	b.mu.Unlock()
}

func (b *MicroBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.retryAt = time.Now().Add(b.coolDown)
		b.probing = false
		return
	}

	b.fails++
	if b.fails >= b.threshold {
		b.state = stateOpen
		b.retryAt = time.Now().Add(b.coolDown)
	}
}
