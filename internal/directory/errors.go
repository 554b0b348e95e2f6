package directory

import "errors"

var (
	// ErrUnsupportedOperation is returned for every directory mutation
	// request (add, modify, delete, rename), independent of payload.
	ErrUnsupportedOperation = errors.New("directory partition is read-only")

	// ErrInvalidFilter marks a search filter that does not parse as RFC 4515.
	ErrInvalidFilter = errors.New("invalid search filter")

	// ErrSizeLimitExceeded signals that a search hit either the client's
	// requested size limit or the configured bulk-listing bound. Entries
	// admitted before the limit have already been streamed; the condition is
	// surfaced so the host can report it instead of silently truncating.
	ErrSizeLimitExceeded = errors.New("search exceeded the result size limit")
)
