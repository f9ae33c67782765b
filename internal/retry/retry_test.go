package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleeps replaces the policy's sleeper and captures requested delays.
func recordSleeps(p *Policy) *[]time.Duration {
	var delays []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return &delays
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second}
	delays := recordSleeps(&p)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDo_BackoffStrictlyIncreases(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: time.Minute}
	delays := recordSleeps(&p)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("rate limited")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	require.Len(t, *delays, 3, "sleeps happen between attempts only")
	assert.Equal(t, time.Second, (*delays)[0])
	assert.Equal(t, 2*time.Second, (*delays)[1])
	assert.Equal(t, 4*time.Second, (*delays)[2])
	assert.Contains(t, err.Error(), "giving up after 4 attempts")
}

func TestDo_DelayCapped(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 2 * time.Second}
	delays := recordSleeps(&p)

	_ = p.Do(context.Background(), func() error { return errors.New("boom") })
	require.Len(t, *delays, 4)
	assert.Equal(t, 2*time.Second, (*delays)[2])
	assert.Equal(t, 2*time.Second, (*delays)[3])
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("bad credentials")
	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}
	delays := recordSleeps(&p)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDo_WrappedErrorPreserved(t *testing.T) {
	sentinel := errors.New("throttled")
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	_ = recordSleeps(&p)

	err := p.Do(context.Background(), func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxAttempts: 3, BaseDelay: time.Second}
	err := p.Do(ctx, func() error { return errors.New("transient") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
}
