package throttle

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalFirstReserveImmediate(t *testing.T) {
	l := NewLocal(100 * time.Millisecond)
	d, err := l.Reserve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d != 0 {
		t.Errorf("first reservation wait = %v, want 0", d)
	}
}

func TestLocalSpacesReservations(t *testing.T) {
	interval := 100 * time.Millisecond
	l := NewLocal(interval)

	if _, err := l.Reserve(context.Background()); err != nil {
		t.Fatal(err)
	}
	d, err := l.Reserve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d <= 0 || d > interval {
		t.Errorf("second reservation wait = %v, want in (0, %v]", d, interval)
	}
}

func TestLocalZeroIntervalDisables(t *testing.T) {
	l := NewLocal(0)
	for i := 0; i < 5; i++ {
		d, err := l.Reserve(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if d != 0 {
			t.Fatalf("reservation %d wait = %v, want 0", i, d)
		}
	}
}

func TestLocalConcurrentSlotsDistinct(t *testing.T) {
	// every racing caller must get a strictly later slot than someone else;
	// with n callers the worst wait approaches (n-1) intervals
	const n = 20
	interval := 10 * time.Millisecond
	l := NewLocal(interval)

	var mu sync.Mutex
	waits := make(map[time.Duration]int)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Reserve(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			waits[d]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	max := time.Duration(0)
	for d, count := range waits {
		if count > 1 && d != 0 {
			t.Errorf("wait %v handed out %d times", d, count)
		}
		if d > max {
			max = d
		}
	}
	if max < time.Duration(n-2)*interval {
		t.Errorf("max wait = %v, want at least %v for %d callers", max, time.Duration(n-2)*interval, n)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := NewLocal(time.Minute)
	if err := Wait(context.Background(), l); err != nil {
		t.Fatalf("first wait should be free: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := Wait(ctx, l)
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("wait did not return promptly after cancellation")
	}
}
