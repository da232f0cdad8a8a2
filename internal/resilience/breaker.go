// Package resilience holds the shared circuit breaker and request spacing
// used in front of the generation provider.
package resilience

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

// Verdict is what a caller reports back after an admitted call.
type Verdict int

const (
	Success Verdict = iota
	Failure
	// Ignored releases the admission without moving any counter.
	Ignored
)

type BreakerOption func(*Breaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithTransitionHook is called with the lock held; it must not call back into the breaker.
func WithTransitionHook(hook func(from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onTransition = hook
	}
}

// Breaker is a consecutive-failure circuit breaker. Closed trips to Open
// after failureThreshold failures in a row; Open rejects everything until the
// cool-down elapses; HalfOpen admits one trial at a time and closes after
// successThreshold successes in a row, reopening on any failure.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
	onTransition     func(from, to State)

	state     State
	failures  int
	successes int
	openedAt  time.Time
	trial     bool
	// generation advances on every transition; tickets from an older
	// generation no longer move any counter.
	generation uint64
}

// Ticket identifies one admission. Pass it back to Record.
type Ticket struct {
	generation uint64
	trial      bool
}

func NewBreaker(failureThreshold, successThreshold int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if successThreshold <= 0 {
		successThreshold = 3
	}
	b := &Breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		now:              time.Now,
		state:            Closed,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Allow admits a call or returns ErrOpen. Every admitted ticket must be
// passed to Record exactly once.
func (b *Breaker) Allow() (Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	t := Ticket{generation: b.generation}
	switch b.state {
	case Open:
		return Ticket{}, ErrOpen
	case HalfOpen:
		if b.trial {
			return Ticket{}, ErrOpen
		}
		b.trial = true
		t.trial = true
	}
	return t, nil
}

// Record reports the verdict for an admitted call. Verdicts for calls
// admitted before the last state change are dropped.
func (b *Breaker) Record(t Ticket, v Verdict) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.generation != b.generation {
		return
	}
	if t.trial {
		b.trial = false
	}

	switch v {
	case Success:
		switch b.state {
		case Closed:
			b.failures = 0
		case HalfOpen:
			if !t.trial {
				return
			}
			b.successes++
			if b.successes >= b.successThreshold {
				b.transition(Closed)
			}
		}
	case Failure:
		switch b.state {
		case Closed:
			b.failures++
			if b.failures >= b.failureThreshold {
				b.transition(Open)
			}
		case HalfOpen:
			b.transition(Open)
		}
	}
}

// advance moves Open to HalfOpen once the cool-down has elapsed.
func (b *Breaker) advance() {
	if b.state == Open && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		b.transition(HalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.generation++
	b.failures = 0
	b.successes = 0
	b.trial = false
	if to == Open {
		b.openedAt = b.now()
	}
	if b.onTransition != nil {
		b.onTransition(from, to)
	}
}
