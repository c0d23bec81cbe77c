package smarttap

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// WithRetry runs op and re-runs it, up to maxRetries additional times,
// while it fails with ErrRetryRequested. Any other error returns
// immediately. When every attempt stays transient the result is
// ErrRetryExhausted: ErrRetryRequested itself never escapes, so a caller
// checking errors.Is(err, ErrRetryRequested) inside op cannot confuse an
// exhausted orchestrator with a single transient response.
func WithRetry[T any](maxRetries int, op func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		out, err := op()
		if err == nil || !errors.Is(err, ErrRetryRequested) {
			return out, err
		}
		if attempt >= maxRetries {
			return zero, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempt+1, err)
		}
		log.Debug().Msgf("transient device status, retrying (%d/%d)", attempt+1, maxRetries)
	}
}
