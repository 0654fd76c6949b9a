/*
Package config loads scheduler configuration from YAML or JSON.

# Overview

A Config describes how an eventflow Manager schedules work: the mode,
its limits, queue bounds, history capacity, the default retry policy and
the lifecycle journal. Missing keys keep their defaults and mistyped
values fall back to defaults; Validate reports values that are present
but out of range.

# File Format

	mode: rate_limited        # sequential | concurrent | rate_limited
	rate_limit: 5
	rate_window: 1s
	max_queue_size: 100
	overflow_policy: drop_oldest
	max_history_size: 50
	retry:
	  max_attempts: 3
	  backoff: exponential    # constant | linear | exponential
	  initial: 100ms
	  max: 5s
	journal:
	  driver: sqlite          # memory | sqlite
	  path: eventflow.db

# Durations

Durations accept Go duration strings ("150ms", "1h30m") or numbers,
which are interpreted as seconds.

# Loading

	cfg, err := config.FromFile("scheduler.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
	    log.Fatal(err)
	}
*/
package config
