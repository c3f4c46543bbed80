package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, fastConfig(), func() error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, fastConfig(), func() error {
			calls++
			return errors.New("permanent")
		})
		assert.Error(t, err)
		assert.Equal(t, 4, calls) // initial attempt plus MaxAttempts retries
	})

	t.Run("non-retryable error short-circuits", func(t *testing.T) {
		sentinel := errors.New("do not retry")
		cfg := fastConfig()
		cfg.NonRetryableErrors = []error{sentinel}

		calls := 0
		err := Retry(ctx, cfg, func() error {
			calls++
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("disabled config runs once", func(t *testing.T) {
		cfg := fastConfig()
		cfg.Enabled = false

		calls := 0
		err := Retry(ctx, cfg, func() error {
			calls++
			return errors.New("boom")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := Retry(cancelled, fastConfig(), func() error {
			return errors.New("never succeeds")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryWithResult(t *testing.T) {
	ctx := context.Background()

	calls := 0
	result, err := RetryWithResult(ctx, fastConfig(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestCalculateDelay(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, calculateDelay(cfg, 1))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(cfg, 2))
	// Capped at MaxDelay.
	assert.Equal(t, time.Second, calculateDelay(cfg, 10))
}
