package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheck_allowsUpToMaxThenDenies(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	p := Profile{Max: 5, Window: 15 * time.Minute}

	for i := 0; i < 5; i++ {
		d := l.Check("signin", "1.2.3.4", p)
		assert.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5-(i+1), d.Remaining)
	}

	d := l.Check("signin", "1.2.3.4", p)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, now.Add(15*time.Minute), d.ResetAt)
}

func TestCheck_deniedRequestsDoNotExtendWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	p := Profile{Max: 1, Window: time.Minute}

	assert.True(t, l.Check("b", "k", p).Allowed)
	for i := 0; i < 10; i++ {
		d := l.Check("b", "k", p)
		assert.False(t, d.Allowed)
		assert.Equal(t, now.Add(time.Minute), d.ResetAt)
	}
}

func TestCheck_windowResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	p := Profile{Max: 2, Window: time.Minute}

	assert.True(t, l.Check("b", "k", p).Allowed)
	assert.True(t, l.Check("b", "k", p).Allowed)
	assert.False(t, l.Check("b", "k", p).Allowed)

	now = now.Add(time.Minute + time.Second)
	d := l.Check("b", "k", p)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestCheck_bucketsAndIdentifiersAreIndependent(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	p := Profile{Max: 1, Window: time.Minute}

	assert.True(t, l.Check("signup", "a", p).Allowed)
	assert.False(t, l.Check("signup", "a", p).Allowed)
	assert.True(t, l.Check("signin", "a", p).Allowed, "other bucket unaffected")
	assert.True(t, l.Check("signup", "b", p).Allowed, "other identifier unaffected")
}

func TestSweep_purgesExpiredEntries(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	p := Profile{Max: 1, Window: time.Minute}

	for i := 0; i < 10; i++ {
		l.Check("b", fmt.Sprintf("k%d", i), p)
	}

	l.purgeExpired()
	l.mu.Lock()
	assert.Equal(t, 10, len(l.entries), "live entries must survive the sweep")
	l.mu.Unlock()

	now = now.Add(2 * time.Minute)
	l.purgeExpired()
	l.mu.Lock()
	assert.Equal(t, 0, len(l.entries))
	l.mu.Unlock()
}
