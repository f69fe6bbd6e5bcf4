// Package ratelimit implements a fixed-window request counter keyed by
// (bucket, identifier). A fixed window permits up to 2x burst at window
// boundaries; that is acceptable for abuse deterrence, not SLA enforcement.
// Counters are process-local and lost on restart.
package ratelimit

import (
	"sync"
	"time"
)

// Profile bundles the limit parameters for a route family.
type Profile struct {
	Max    int
	Window time.Duration
}

// Route-family limit profiles.
var (
	// SignupLimit throttles account creation per IP.
	SignupLimit = Profile{Max: 5, Window: 15 * time.Minute}
	// SigninLimit throttles credential checks per IP.
	SigninLimit = Profile{Max: 5, Window: 15 * time.Minute}
	// VerifyLimit throttles OTP verification per IP.
	VerifyLimit = Profile{Max: 3, Window: 15 * time.Minute}
	// GlobalLimit caps all requests per IP in the outer middleware.
	GlobalLimit = Profile{Max: 100, Window: 15 * time.Minute}
)

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// Limiter is a process-scoped fixed-window counter service. Construct one at
// startup and inject it into handlers; a multi-instance deployment has an
// independent limiter per instance.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	stop    chan struct{}
}

// New creates a limiter and starts the background sweep that purges expired
// entries to bound memory.
func New() *Limiter {
	l := NewWithClock(time.Now)
	go l.sweep(5 * time.Minute)
	return l
}

// NewWithClock creates a limiter without a sweep goroutine, using the given
// clock. Used by tests.
func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Check records a request for identifier in the given bucket and reports
// whether it is allowed under the profile. Once the cap is reached, further
// requests in the same window are denied without incrementing the counter.
func (l *Limiter) Check(bucket, identifier string, p Profile) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucket + ":" + identifier
	now := l.now()

	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) > p.Window {
		l.entries[key] = &entry{count: 1, windowStart: now, window: p.Window}
		return Decision{Allowed: true, Remaining: p.Max - 1, ResetAt: now.Add(p.Window)}
	}

	resetAt := e.windowStart.Add(p.Window)
	if e.count >= p.Max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	e.count++
	return Decision{Allowed: true, Remaining: p.Max - e.count, ResetAt: resetAt}
}

// Stop terminates the background sweep.
func (l *Limiter) Stop() {
	close(l.stop)
}

// sweep periodically removes entries whose window has elapsed.
func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.purgeExpired()
		}
	}
}

func (l *Limiter) purgeExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.entries {
		if now.Sub(e.windowStart) > e.window {
			delete(l.entries, key)
		}
	}
}
