package dispatcher

import "time"

// Scheduler runs fn after delay. The dispatcher's self-rescheduling chain
// only needs this one method, so tests can substitute an immediate
// implementation and production can hang it off a cron or queue.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

// TimerScheduler runs continuations on in-process timers.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}
