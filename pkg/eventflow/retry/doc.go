/*
Package retry provides the retry policies and backoff strategies used by the
eventflow scheduler.

# Overview

A Policy decides whether a failed event gets another attempt and how long the
scheduler waits before re-queueing it:

	policy := retry.Policy{
	    MaxAttempts: 3,
	    Backoff:     retry.Exponential(100*time.Millisecond, 2, 5*time.Second),
	    RetryIf:     retry.TransientOnly,
	}

	policy.ShouldRetry(0, err) // first failure
	policy.Delay(0)            // 100ms
	policy.Delay(3)            // 800ms

MaxAttempts counts retries, not executions: a policy with MaxAttempts 2 runs the
work at most three times.

# Backoff

Three deterministic strategies are provided:

  - Constant(d): every retry waits d
  - Linear(initial, increment, max): initial + n*increment, capped at max
  - Exponential(initial, factor, max): initial * factor^n, capped at max

A zero max means uncapped. Jittered wraps any strategy with random spread and is
the only non-deterministic Backoff in the package.

# Categories

Errors can be tagged Transient or Permanent. TransientOnly is a ready-made
RetryIf predicate that retries only transient failures.
*/
package retry
