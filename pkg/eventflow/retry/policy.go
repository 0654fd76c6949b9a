package retry

import "time"

// Policy decides whether a failed event is retried and how long to wait.
// Policies are plain values and hold no per-event state.
type Policy struct {
	// MaxAttempts is the number of retries allowed after the initial run.
	MaxAttempts int

	// Backoff computes the wait before each retry. Nil means no wait.
	Backoff Backoff

	// RetryIf optionally restricts which errors are retried.
	// Nil retries every error.
	RetryIf func(error) bool
}

// DefaultPolicy retries three times with exponential backoff.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Backoff:     Exponential(1*time.Second, 2, 30*time.Second),
}

// AggressivePolicy retries more times with shorter waits.
var AggressivePolicy = Policy{
	MaxAttempts: 5,
	Backoff:     Exponential(500*time.Millisecond, 1.5, 10*time.Second),
}

// NoRetry disables retries.
var NoRetry = Policy{}

// ShouldRetry reports whether another attempt is allowed after the failure
// with zero-based retry index attempt.
func (p *Policy) ShouldRetry(attempt int, err error) bool {
	if p == nil || attempt >= p.MaxAttempts {
		return false
	}
	if p.RetryIf == nil {
		return true
	}
	return p.RetryIf(err)
}

// Delay returns the wait before retry number attempt (zero-based).
func (p *Policy) Delay(attempt int) time.Duration {
	if p == nil || p.Backoff == nil {
		return 0
	}
	return p.Backoff.Delay(attempt)
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the number of retries.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.MaxAttempts = n
	}
}

// WithBackoff sets the backoff strategy.
func WithBackoff(b Backoff) Option {
	return func(p *Policy) {
		p.Backoff = b
	}
}

// WithRetryIf sets the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) {
		p.RetryIf = fn
	}
}

// NewPolicy creates a policy starting from DefaultPolicy.
func NewPolicy(opts ...Option) *Policy {
	p := DefaultPolicy
	for _, opt := range opts {
		opt(&p)
	}
	return &p
}
