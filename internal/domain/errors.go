package domain

import "errors"

var (
	// ErrInvalidChunking reports a chunk size or overlap that cannot make progress.
	ErrInvalidChunking = errors.New("invalid chunking parameters")
	// ErrEmptyInput reports a document or corpus with nothing to index.
	ErrEmptyInput = errors.New("empty input")
	// ErrNotBuilt reports a query against an index that was never built.
	ErrNotBuilt        = errors.New("index not built")
	ErrInvalidArgument = errors.New("invalid argument")
)
