package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Price Feed / Cache Errors
	ErrCacheUnavailable = errors.New("quote cache is unavailable")
	ErrCacheMiss        = errors.New("no cached quote for symbol")
	ErrFeedUnavailable  = errors.New("price feed is unavailable")
	ErrRateLimited      = errors.New("API rate limit exceeded")

	// Store Errors
	ErrStoreUnavailable = errors.New("store connection error")
	ErrQueryFailed      = errors.New("store query failed")
	ErrUpdateFailed     = errors.New("store update failed")
	// ErrPositionNotOpen is returned when a close targets a position that is
	// missing or already fully closed. Callers treat it as a no-op.
	ErrPositionNotOpen = errors.New("position not found or not open")
)
