// Package sources provides the quote source capability and shared helpers
// for upstream flight price providers.
package sources

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable indicates a recoverable failure of a single source:
	// network error, non-2xx response, malformed payload or timeout.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrInvalidInput indicates a malformed request rejected before any I/O.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates HTTP 429 from an upstream provider.
	ErrRateLimited = fmt.Errorf("%w: rate limit exceeded", ErrSourceUnavailable)
	// ErrUpstreamServer indicates a 5xx response from an upstream provider.
	ErrUpstreamServer = fmt.Errorf("%w: upstream server error", ErrSourceUnavailable)
	// ErrUnexpectedStatus indicates any other non-2xx HTTP status.
	ErrUnexpectedStatus = fmt.Errorf("%w: unexpected HTTP status code", ErrSourceUnavailable)
	// ErrInvalidResponse indicates a payload that could not be decoded.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrSourceUnavailable)
	// ErrSourcePanic indicates a source that panicked while searching.
	ErrSourcePanic = fmt.Errorf("%w: source panicked", ErrSourceUnavailable)

	// ErrUnknownSourceType indicates that no factory is registered for a type.
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)
