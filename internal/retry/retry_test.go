package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Config{Attempts: 3}, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDoRecoversAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Config{Attempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustionReturnsLastError(t *testing.T) {
	sentinel := errors.New("venue down")
	calls := 0
	_, err := Do(context.Background(), Config{Attempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestDoBackoffIsLinear(t *testing.T) {
	base := 20 * time.Millisecond
	start := time.Now()
	_, err := Do(context.Background(), Config{Attempts: 3, BaseDelay: base}, func(ctx context.Context) (int, error) {
		return 0, errors.New("always")
	})
	elapsed := time.Since(start)
	require.Error(t, err)
	// Two sleeps: base*1 + base*2 = 60ms minimum.
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, Config{Attempts: 5, BaseDelay: time.Second}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation during backoff must not trigger another attempt")
}

func TestDoNormalizesZeroAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
