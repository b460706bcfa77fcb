package httputil

import (
	"context"
	"errors"
	"time"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
)

// Default retry settings for the remote API.
const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 64 * time.Second
	DefaultMaxRetries     = 8
	DefaultMaxResetWait   = 15 * time.Minute
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Policy.Do] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. Retryable(nil) returns nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Policy configures how throttled and transient failures are retried.
// The zero value is usable: zero fields fall back to the package defaults.
type Policy struct {
	InitialBackoff time.Duration // First wait after a throttle (default 1s)
	MaxBackoff     time.Duration // Ceiling for the doubling backoff (default 64s)
	MaxRetries     int           // Retries before giving up (default 8)
	MaxResetWait   time.Duration // Cap on server reset hints (default 15m)

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each delayed retry.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func (p Policy) withDefaults() Policy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.MaxResetWait <= 0 {
		p.MaxResetWait = DefaultMaxResetWait
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	if p.OnRetry == nil {
		p.OnRetry = func(int, time.Duration, error) {}
	}
	return p
}

// Backoff is the retry state of one logical request chain.
// It is not shared between chains, so one throttled chain never delays another.
type Backoff struct {
	policy  Policy
	current time.Duration
	retries int
}

// NewBackoff returns a fresh backoff state for a request chain.
func (p Policy) NewBackoff() *Backoff {
	p = p.withDefaults()
	return &Backoff{policy: p, current: p.InitialBackoff}
}

// Next returns the wait before the next retry and advances the state.
// The wait is the larger of the time remaining until resetAt and the current
// backoff; the backoff then doubles up to the ceiling.
func (b *Backoff) Next(resetAt time.Time) time.Duration {
	wait := b.current
	if !resetAt.IsZero() {
		untilReset := min(resetAt.Sub(b.policy.Now()), b.policy.MaxResetWait)
		wait = max(wait, untilReset)
	}
	b.current = min(b.current*2, b.policy.MaxBackoff)
	b.retries++
	return wait
}

// Reset returns the backoff to its initial delay after a successful call.
func (b *Backoff) Reset() {
	b.current = b.policy.InitialBackoff
	b.retries = 0
}

// Retries reports how many retries have been scheduled since the last reset.
func (b *Backoff) Retries() int { return b.retries }

// Exhausted reports whether the retry budget is spent.
func (b *Backoff) Exhausted() bool { return b.retries >= b.policy.MaxRetries }

// Do executes fn with a fresh [Backoff]. See [Policy.DoWith].
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	return p.DoWith(ctx, p.NewBackoff(), fn)
}

// DoWith executes fn, retrying throttling responses ([orgerrors.RateLimitedError])
// and errors wrapped with [RetryableError]. Other errors are returned immediately.
//
// When throttling persists past the retry budget, DoWith returns a
// QUOTA_EXHAUSTED error wrapping the last throttle. A successful call resets b,
// so a chain of calls sharing b (such as pagination) starts each call at the
// initial backoff.
func (p Policy) DoWith(ctx context.Context, b *Backoff, fn func(context.Context) error) error {
	p = p.withDefaults()
	for {
		err := fn(ctx)
		if err == nil {
			b.Reset()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var wait time.Duration
		var rl *orgerrors.RateLimitedError
		switch {
		case errors.As(err, &rl):
			if b.Exhausted() {
				return orgerrors.Wrap(orgerrors.ErrCodeQuotaExhausted, err, "gave up after %d retries", b.Retries())
			}
			wait = b.Next(rl.ResetAt)
		case isRetryable(err):
			if b.Exhausted() {
				return err
			}
			wait = b.Next(time.Time{})
		default:
			return err
		}

		p.OnRetry(b.Retries(), wait, err)
		if err := p.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
