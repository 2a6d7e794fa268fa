package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/ragingest/internal/apperr"
)

func TestWithRateLimitRetrySucceedsWithoutRetryOnSuccess(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		return "ok", nil
	}

	result, err := WithRateLimitRetry(context.Background(), nil, op)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestWithRateLimitRetryRetriesExactlyOnceOn429(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, apperr.NewRateLimitError(0, "rate limited")
		}
		return "recovered", nil
	}

	start := time.Now()
	result, err := WithRateLimitRetry(context.Background(), nil, op)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, elapsed, DefaultRetryAfter)
}

func TestWithRateLimitRetryHonorsRetryAfterSeconds(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, apperr.NewRateLimitError(1, "rate limited")
		}
		return "ok", nil
	}

	start := time.Now()
	_, err := WithRateLimitRetry(context.Background(), nil, op)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, DefaultRetryAfter)
	assert.GreaterOrEqual(t, elapsed, time.Second)
}

func TestWithRateLimitRetryPropagatesOtherErrorsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, boom
	}

	_, err := WithRateLimitRetry(context.Background(), nil, op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-429 errors must not be retried")
}

func TestWithRateLimitRetryStopsAtExactlyOneRetryEvenOnRepeatedRateLimit(t *testing.T) {
	calls := 0
	op := func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, apperr.NewRateLimitError(0, "still limited")
	}

	_, err := WithRateLimitRetry(context.Background(), nil, op)
	assert.ErrorIs(t, err, apperr.ErrProviderRateLimited)
	assert.Equal(t, 2, calls)
}
