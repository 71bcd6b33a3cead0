package tileqc

import "errors"

// Exported errors for library consumers.
var (
	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("tileqc: client is closed")

	// ErrCacheDisabled indicates a cache operation on a client built without a cache.
	ErrCacheDisabled = errors.New("tileqc: result cache is disabled")

	// ErrNoBaseQuality indicates a selection export from a result without base quality matrices.
	ErrNoBaseQuality = errors.New("tileqc: result has no base quality matrices")
)
