package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
)

const maxBackoff = 10 * time.Second

// FetchWithRetries calls fetch until it succeeds, returns a non-retryable
// error, or runs out of attempts. Only rate limiting and 5xx responses are
// retried. Backoff doubles from initialBackoff and never outlives ctx.
func FetchWithRetries(
	ctx context.Context,
	logger *logging.Logger,
	attempts int,
	initialBackoff time.Duration,
	fetch func(context.Context) error,
) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}

		err := fetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts {
			break
		}

		// #nosec G115 -- attempt is always positive
		backoff := initialBackoff * time.Duration(1<<uint(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		logger.Debug("Retrying after backoff", "attempt", attempt+1, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrSourceUnavailable, ctx.Err())
		}
	}

	return lastErr
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamServer)
}

// CheckStatus maps a non-2xx HTTP response onto the source error taxonomy.
// The response body is not closed.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(snippet))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w (HTTP 429)", ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamServer, resp.StatusCode, detail)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.StatusCode, detail)
	}
}
