package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the wait before a retry.
// Attempt is zero-based: Delay(0) is the wait before the first retry.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// ConstantBackoff waits the same interval before every retry.
type ConstantBackoff struct {
	Interval time.Duration
}

// Constant returns a backoff that always waits d.
func Constant(d time.Duration) ConstantBackoff {
	return ConstantBackoff{Interval: d}
}

// Delay implements Backoff.
func (b ConstantBackoff) Delay(_ int) time.Duration {
	return b.Interval
}

// LinearBackoff grows the wait by a fixed increment per attempt.
type LinearBackoff struct {
	Initial   time.Duration
	Increment time.Duration
	// Max caps the delay. Zero means uncapped.
	Max time.Duration
}

// Linear returns a backoff of initial + attempt*increment, capped at maxDelay.
func Linear(initial, increment, maxDelay time.Duration) LinearBackoff {
	return LinearBackoff{Initial: initial, Increment: increment, Max: maxDelay}
}

// Delay implements Backoff.
func (b LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Initial) + float64(attempt)*float64(b.Increment)
	return capDelay(d, b.Max)
}

// ExponentialBackoff multiplies the wait by Factor per attempt.
type ExponentialBackoff struct {
	Initial time.Duration
	// Factor is the growth multiplier. Values <= 0 use 2.
	Factor float64
	// Max caps the delay. Zero means uncapped.
	Max time.Duration
}

// Exponential returns a backoff of initial * factor^attempt, capped at maxDelay.
func Exponential(initial time.Duration, factor float64, maxDelay time.Duration) ExponentialBackoff {
	return ExponentialBackoff{Initial: initial, Factor: factor, Max: maxDelay}
}

// Delay implements Backoff.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := b.Factor
	if factor <= 0 {
		factor = 2
	}
	d := float64(b.Initial) * math.Pow(factor, float64(attempt))
	return capDelay(d, b.Max)
}

// JitteredBackoff spreads another backoff by a random fraction.
type JitteredBackoff struct {
	Base Backoff
	// Fraction is the jitter factor (0.0-1.0).
	Fraction float64
}

// Jittered wraps base so each delay is base +/- base*fraction*random.
func Jittered(base Backoff, fraction float64) JitteredBackoff {
	return JitteredBackoff{Base: base, Fraction: fraction}
}

// Delay implements Backoff.
func (b JitteredBackoff) Delay(attempt int) time.Duration {
	if b.Base == nil {
		return 0
	}
	base := b.Base.Delay(attempt)
	if b.Fraction <= 0 {
		return base
	}
	jitter := float64(base) * b.Fraction * (rand.Float64()*2 - 1)
	d := time.Duration(float64(base) + jitter)
	if d < 0 {
		return 0
	}
	return d
}

// capDelay converts d to a Duration, clamping at maxDelay (when set) and at the
// largest representable Duration.
func capDelay(d float64, maxDelay time.Duration) time.Duration {
	if d < 0 {
		d = 0
	}
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
