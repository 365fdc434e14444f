// Package resilience guards outbound transports against flapping
// upstream APIs.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("delivery circuit open")

// State of a breaker, visible for logging.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker trips after a run of consecutive failures and rejects calls
// for a cool-down period. After the cool-down one probe call is let
// through; success closes the circuit, failure reopens it and restarts
// the cool-down.
type Breaker struct {
	mu       sync.Mutex
	state    State
	failures int
	probing  bool
	openedAt time.Time

	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// State reports the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn unless the circuit is rejecting calls. While
// half-open only a single probe runs at a time; concurrent callers get
// ErrOpen until the probe settles.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.settle(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probing = true
		return nil
	default: // HalfOpen
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		b.failures = 0
		b.state = Closed
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.maxFailures {
		b.state = Open
		b.openedAt = b.now()
	}
}
