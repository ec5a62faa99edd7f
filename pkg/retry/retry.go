/*
Copyright 2024 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package retry provides bounded retry with exponential backoff. The
// detection subsystem never retries internally; this is for callers that
// choose to re-probe architectures after transient failures.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxAttempts is the default number of attempts, first try included.
	DefaultMaxAttempts = 3
	// DefaultInitialDelay is the delay before the first retry.
	DefaultInitialDelay = 200 * time.Millisecond
	// DefaultMaxDelay caps the backoff growth.
	DefaultMaxDelay = 5 * time.Second
	// DefaultBackoff is the exponential backoff multiplier.
	DefaultBackoff = 2.0
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Backoff      float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Backoff:      DefaultBackoff,
	}
}

// ErrMaxAttemptsExceeded is returned when all attempts failed.
var ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

// Do runs fn until it succeeds, fails non-retryably, the context ends, or
// the attempt budget is spent. The value from the final attempt is
// returned alongside the final error.
func Do[T any](ctx context.Context, config Config, fn func() (T, error)) (T, error) {
	var last T
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		result, err := fn()
		last = result
		if err == nil {
			if attempt > 0 {
				logrus.Debugf("Succeeded after %d retries", attempt)
			}
			return result, nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			return last, err
		}

		if attempt < config.MaxAttempts-1 {
			logrus.Debugf("Attempt %d/%d failed, retrying in %v: %v",
				attempt+1, config.MaxAttempts, delay, err)
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * config.Backoff)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return last, errors.Wrapf(ErrMaxAttemptsExceeded, "last error: %v", lastErr)
}
