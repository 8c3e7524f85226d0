package reliability

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickRetryConfig(maxTries uint) RetryConfig {
	return RetryConfig{MaxTries: maxTries, Delay: time.Millisecond}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", quickRetryConfig(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", quickRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsAfterMaxTries(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "submission", quickRetryConfig(3), func() error {
		calls++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "submission failed after 3 attempts")
	assert.Contains(t, err.Error(), "still down")
}

func TestRetryRejectsZeroAttempts(t *testing.T) {
	err := Retry(context.Background(), "op", quickRetryConfig(0), func() error { return nil })
	assert.Error(t, err)
}

func TestRetryDelayRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxTries: 3, Delay: time.Hour}
	start := time.Now()
	err := Retry(ctx, "op", cfg, func() error {
		calls++
		cancel()
		return errors.New("failing")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestRetryResultReturnsValue(t *testing.T) {
	calls := 0
	value, err := RetryResult(context.Background(), "op", quickRetryConfig(3), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 2, calls)
}
