package httputil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
)

// fakeClock records sleeps instead of blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func testPolicy(c *fakeClock) Policy {
	return Policy{Now: c.Now, Sleep: c.Sleep}
}

func TestDo_ThreeThrottlesThenSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	calls := 0

	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 3 {
			return &orgerrors.RateLimitedError{StatusCode: 429}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	require.Len(t, clock.sleeps, 3)
	for i := 1; i < len(clock.sleeps); i++ {
		assert.Greater(t, clock.sleeps[i], clock.sleeps[i-1], "waits must strictly increase")
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.sleeps)
}

func TestDo_HonorsResetHint(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	reset := clock.now.Add(30 * time.Second)
	calls := 0

	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &orgerrors.RateLimitedError{StatusCode: 403, ResetAt: reset}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second}, clock.sleeps)
}

func TestDo_ResetHintInThePastUsesBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	calls := 0

	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &orgerrors.RateLimitedError{StatusCode: 403, ResetAt: clock.now.Add(-time.Minute)}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

func TestDo_ResetHintIsCapped(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p := testPolicy(clock)
	p.MaxResetWait = time.Minute
	calls := 0

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &orgerrors.RateLimitedError{StatusCode: 403, ResetAt: clock.now.Add(6 * time.Hour)}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Minute}, clock.sleeps)
}

func TestDo_BackoffCeiling(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		return &orgerrors.RateLimitedError{StatusCode: 429}
	})

	require.Error(t, err)
	assert.True(t, orgerrors.Is(err, orgerrors.ErrCodeQuotaExhausted))
	assert.True(t, orgerrors.Is(err, orgerrors.ErrCodeRateLimited))

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 64 * time.Second, 64 * time.Second,
	}
	assert.Equal(t, want, clock.sleeps)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	clock := &fakeClock{}
	boom := errors.New("boom")
	calls := 0

	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.sleeps)
}

func TestDo_RetryableErrorRetried(t *testing.T) {
	clock := &fakeClock{}
	calls := 0

	err := testPolicy(clock).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("502"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, clock.sleeps, 2)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Policy{}.Do(ctx, func(context.Context) error {
		return &orgerrors.RateLimitedError{StatusCode: 429}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_ResetAfterSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p := testPolicy(clock)
	b := p.NewBackoff()

	assert.Equal(t, time.Second, b.Next(time.Time{}))
	assert.Equal(t, 2*time.Second, b.Next(time.Time{}))
	assert.Equal(t, 2, b.Retries())

	b.Reset()
	assert.Equal(t, 0, b.Retries())
	assert.Equal(t, time.Second, b.Next(time.Time{}))
}

func TestDoWith_SharedBackoffResetsBetweenCalls(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	p := testPolicy(clock)
	b := p.NewBackoff()

	for range 2 {
		throttled := false
		err := p.DoWith(context.Background(), b, func(context.Context) error {
			if !throttled {
				throttled = true
				return &orgerrors.RateLimitedError{StatusCode: 429}
			}
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.sleeps)
}

func TestRetryable(t *testing.T) {
	assert.Nil(t, Retryable(nil))

	inner := errors.New("timeout")
	err := Retryable(inner)
	assert.True(t, isRetryable(err))
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "timeout", err.Error())
	assert.False(t, isRetryable(inner))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), 0))
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
