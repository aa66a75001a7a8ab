package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmailer/internal/transport"
)

func testPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts, err := testPolicy().Do(context.Background(), func(context.Context) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	attempts, err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return transport.Transient("test", errors.New("timeout"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsTransient(t *testing.T) {
	calls := 0
	attempts, err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return transport.Transient("test", errors.New("timeout"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
}

func TestDoAbortsOnPermanent(t *testing.T) {
	calls := 0
	permErr := transport.Permanent("test", errors.New("unauthorized"))
	attempts, err := testPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return permErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permErr)
}

func TestDoNonPositiveBudgetRunsOnce(t *testing.T) {
	p := Policy{MaxAttempts: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)

	// A failing op is never reported as a success.
	calls = 0
	attempts, err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return transport.Transient("test", errors.New("timeout"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "giving up after 1 attempts")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	go cancel()

	_, err := p.Do(ctx, func(context.Context) error {
		return transport.Transient("test", errors.New("timeout"))
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDoubling(t *testing.T) {
	p := Policy{MaxAttempts: 6, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 16*time.Second, p.Backoff(5))
	// Capped at the ceiling.
	assert.Equal(t, 30*time.Second, p.Backoff(6))
	assert.Equal(t, 30*time.Second, p.Backoff(10))
}
