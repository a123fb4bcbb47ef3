// Package homeassistant publishes the prayer status label to a Home Assistant
// input_text helper over the REST API.
package homeassistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// defaultMaxAttempts is the number of tries per HA call.
	defaultMaxAttempts = 3

	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
)

// newBackOff returns the schedule between attempts. Replaced in tests.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	b.RandomizationFactor = 0.5
	return b
}

// Retry calls fn up to maxAttempts times with jittered exponential backoff.
// [ErrUnauthorized] ends the loop at once.
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("retry cancelled: %w", err)
	}
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := fn()
		if errors.Is(err, ErrUnauthorized) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(uint(max(maxAttempts, 1))))
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	return fmt.Errorf("home assistant call failed after %d attempt(s): %w", attempts, err)
}
