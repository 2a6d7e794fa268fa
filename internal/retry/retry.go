// Package retry wraps a provider call with a single, bounded retry on
// HTTP 429 responses, honoring the provider's Retry-After hint.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teilomillet/ragingest/internal/apperr"
	"github.com/teilomillet/ragingest/internal/logging"
)

// DefaultRetryAfter is used when a 429 response carries no Retry-After hint.
const DefaultRetryAfter = 5 * time.Second

// Op is a provider call. It must return a *apperr.RateLimitError (or an error
// wrapping apperr.ErrProviderRateLimited) on HTTP 429 so the retrier can
// recognize it.
type Op func(ctx context.Context) (interface{}, error)

// WithRateLimitRetry invokes op; if it fails with a rate-limit error, it
// sleeps for the reported Retry-After (or DefaultRetryAfter) and invokes op
// exactly once more, returning whichever result comes back; a second
// rate-limit failure is returned wrapped as apperr.ErrProviderTransient (it
// still matches apperr.ErrProviderRateLimited). Any other failure propagates
// immediately. There is never more than one retry.
func WithRateLimitRetry(ctx context.Context, logger logging.Logger, op Op) (interface{}, error) {
	result, err := op(ctx)
	if err == nil {
		return result, nil
	}

	var rlErr *apperr.RateLimitError
	if !errors.As(err, &rlErr) && !errors.Is(err, apperr.ErrProviderRateLimited) {
		return result, err
	}

	wait := DefaultRetryAfter
	if rlErr != nil && rlErr.RetryAfterSeconds > 0 {
		wait = time.Duration(rlErr.RetryAfterSeconds) * time.Second
	}
	if logger != nil {
		logger.Warn("rate limited, retrying once", "wait", wait.String())
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	result, err = op(ctx)
	if err != nil && errors.Is(err, apperr.ErrProviderRateLimited) {
		err = fmt.Errorf("%w: still rate limited after one retry: %w", apperr.ErrProviderTransient, err)
	}
	return result, err
}
