package llm

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/teilomillet/ragingest/internal/apperr"
)

// sharedHTTPClient is reused across the hand-rolled HTTP provider paths
// (OpenAI embeddings, OpenRouter generation) rather than building a fresh
// client per call.
var sharedHTTPClient = &http.Client{Timeout: 30 * time.Second}

// classifyHTTPError turns a non-2xx provider response into the taxonomy the
// retrier and orchestrator understand: a rate-limit error carrying
// Retry-After on 429, a transient error on 5xx, and an opaque error
// otherwise.
func classifyHTTPError(provider string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		seconds := 0
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if n, err := strconv.Atoi(ra); err == nil {
				seconds = n
			}
		}
		return apperr.NewRateLimitError(seconds, fmt.Sprintf("%s: 429 rate limited: %s", provider, truncate(body, 300)))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d: %s", apperr.ErrProviderTransient, provider, resp.StatusCode, truncate(body, 300))
	default:
		return fmt.Errorf("%s returned %d: %s", provider, resp.StatusCode, truncate(body, 300))
	}
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
