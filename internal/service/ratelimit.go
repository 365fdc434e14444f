package service

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is fixed-window admission control at the pipeline entry.
// Each sender key owns a counter and a window-reset timestamp; a call
// inside the window increments the counter and is admitted while the
// counter stays at or below the ceiling. A declined admission is not an
// error; the caller turns it into a "please wait" reply.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time // for testing
}

type window struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a limiter admitting limit calls per period for
// each sender key.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Admit reports whether a call from senderKey is allowed right now.
// A fresh or expired window restarts at count=1 and admits.
func (rl *RateLimiter) Admit(senderKey string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[senderKey]
	if !ok || now.After(w.resetAt) {
		rl.windows[senderKey] = &window{count: 1, resetAt: now.Add(rl.period)}
		return true
	}

	w.count++
	return w.count <= rl.limit
}

// Remaining returns how many admissions are left in the current window
// for senderKey. Exposed for operator tooling and tests.
func (rl *RateLimiter) Remaining(senderKey string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[senderKey]
	if !ok || rl.now().After(w.resetAt) {
		return rl.limit
	}
	if w.count >= rl.limit {
		return 0
	}
	return rl.limit - w.count
}

// StartSweep spawns a goroutine that drops expired windows every
// interval. Returns a cancel function that stops it.
func (rl *RateLimiter) StartSweep(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.sweep()
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// Len returns the number of tracked sender windows (for metrics and testing).
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}
