// Package apperr defines the sentinel error kinds shared across the ingestion
// pipeline. Components wrap these with fmt.Errorf("%w: ...") so callers can
// classify a failure with errors.Is while the message keeps phase/filename
// context.
package apperr

import "errors"

var (
	// ErrConfigInvalid marks a configuration resolution failure. Fatal at startup.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrUnsupportedContent marks content the extractor refuses to process.
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrNoTextExtracted marks extraction that produced empty/whitespace-only text.
	ErrNoTextExtracted = errors.New("no text extracted")

	// ErrProviderRateLimited marks an HTTP 429 from a model provider.
	ErrProviderRateLimited = errors.New("provider rate limited")

	// ErrProviderTransient marks a 5xx or network-level provider failure.
	ErrProviderTransient = errors.New("provider transient error")

	// ErrZeroVector marks a provider response with an empty embedding.
	ErrZeroVector = errors.New("zero-length embedding")

	// ErrEnrichmentDivergence marks an enrichment result that did not contain
	// the original chunk verbatim. Callers should not surface this to users;
	// the enricher repairs it locally.
	ErrEnrichmentDivergence = errors.New("enrichment diverged from source chunk")

	// ErrStoreFailure marks a persistence failure for a document or fragment.
	ErrStoreFailure = errors.New("store failure")

	// ErrWorkerInitFailure marks a worker that failed its startup handshake.
	ErrWorkerInitFailure = errors.New("worker init failure")
)

// RateLimitError carries the Retry-After duration reported by a provider on
// an HTTP 429 response, letting the retrier avoid re-parsing headers.
type RateLimitError struct {
	RetryAfterSeconds int
	Err               error
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return ErrProviderRateLimited
}

// NewRateLimitError builds a RateLimitError wrapping ErrProviderRateLimited.
func NewRateLimitError(retryAfterSeconds int, msg string) *RateLimitError {
	return &RateLimitError{
		RetryAfterSeconds: retryAfterSeconds,
		Err:               errors.New(msg),
	}
}
