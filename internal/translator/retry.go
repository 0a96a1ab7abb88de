package translator

import (
	"context"
	"errors"
	"time"

	"github.com/MimeLyc/quote-translator/internal/llm"
)

// State is the lifecycle position of one task's translation.
type State int

const (
	StatePending State = iota
	StateAttempting
	StateRetrying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy bounds the attempts of a single task.
type Policy struct {
	// MaxAttempts is the total number of requests, including the first.
	MaxAttempts int
	// RetryDelay follows timeouts, transport errors, non-2xx statuses and
	// rejected responses.
	RetryDelay time.Duration
	// BackoffBase is multiplied by 2^attempt after a rate-limited attempt.
	BackoffBase time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
		BackoffBase: time.Second,
	}
}

// Retry tracks attempt count, next delay and terminal state for one task.
// It performs no I/O and never sleeps.
type Retry struct {
	policy  Policy
	state   State
	attempt int
	next    time.Duration
	lastErr error
}

func NewRetry(policy Policy) *Retry {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retry{policy: policy, state: StatePending}
}

func (r *Retry) State() State             { return r.state }
func (r *Retry) Attempt() int             { return r.attempt }
func (r *Retry) NextDelay() time.Duration { return r.next }
func (r *Retry) Err() error               { return r.lastErr }

// Begin moves to Attempting and returns the 1-based attempt number.
func (r *Retry) Begin() int {
	if r.state == StateSucceeded || r.state == StateFailed {
		return r.attempt
	}
	r.attempt++
	r.next = 0
	r.state = StateAttempting
	return r.attempt
}

// Succeed marks the current attempt as successful.
func (r *Retry) Succeed() {
	r.state = StateSucceeded
	r.next = 0
	r.lastErr = nil
}

// Fail records a failed attempt. It returns true with the delay to wait
// when another attempt is allowed, and false once the task is permanently
// failed. No delay is scheduled after the last attempt.
func (r *Retry) Fail(err error) (bool, time.Duration) {
	r.lastErr = err

	if errors.Is(err, context.Canceled) || r.attempt >= r.policy.MaxAttempts {
		r.state = StateFailed
		r.next = 0
		return false, 0
	}

	r.state = StateRetrying
	if llm.IsRateLimited(err) {
		r.next = r.policy.BackoffBase * time.Duration(1<<uint(r.attempt))
	} else {
		r.next = r.policy.RetryDelay
	}
	return true, r.next
}

// Abort ends the task without another attempt, e.g. on cancellation.
func (r *Retry) Abort(err error) {
	r.lastErr = err
	r.state = StateFailed
	r.next = 0
}
