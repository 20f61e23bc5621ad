package domain

import "errors"

// Error kinds surfaced by adapters. Callers match with errors.Is.
var (
	// ErrProviderUnavailable indicates the embedding or language model
	// service stayed unreachable or rate-limited after retries.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrIndexUnavailable indicates the vector index cannot be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexNotFound indicates the configured collection does not exist.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrDimensionMismatch indicates the embedding dimensionality changed
	// mid-run. This is a configuration error, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMalformedDocument indicates the loader could not produce usable
	// text from a file. The file is skipped, not fatal.
	ErrMalformedDocument = errors.New("malformed document")
)
