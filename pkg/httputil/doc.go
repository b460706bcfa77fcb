// Package httputil provides the retry policy shared by the remote API clients.
//
// # Throttling
//
// The remote API signals throttling with 403 or 429 responses. Clients turn
// such a response into an [errors.RateLimitedError], optionally carrying the
// server's reset hint, and run the request through [Policy.Do]:
//
//	err := policy.Do(ctx, func(ctx context.Context) error {
//	    return client.get(ctx, url, &out)
//	})
//
// The wait before each retry is the larger of the time until the reset hint
// and the current backoff. The backoff starts at 1s, doubles per consecutive
// throttle up to 64s and resets after a success. After 8 retries the call
// fails with QUOTA_EXHAUSTED.
//
// # Backoff state
//
// A [Backoff] belongs to one request chain. Paginated listings share one
// [Backoff] across pages with [Policy.DoWith]; independent fetches each get
// their own, so a throttled probe never slows down its neighbours.
//
// # Transient failures
//
// Wrap network errors and 5xx responses with [Retryable] to have them
// retried with the same backoff and budget.
//
// [errors.RateLimitedError]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/errors#RateLimitedError
package httputil
