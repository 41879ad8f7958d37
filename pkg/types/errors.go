package types

import "errors"

// Query pipeline errors
var (
	// ErrNoData is returned when the collection holds no documents
	ErrNoData = errors.New("empty collection")

	// ErrNoCollection is returned when the project has never been vectorised
	ErrNoCollection = errors.New("no existing collection")

	// ErrSchemaMismatch is returned when the store rejects a query because the
	// collection was built with a different embedding function or dimension
	ErrSchemaMismatch = errors.New("the collection was embedded with a different embedding model")

	// ErrStaleEntry marks an indexed path that no longer exists on disk
	ErrStaleEntry = errors.New("stale index entry")

	// ErrRerankerUnavailable is returned when the configured reranker cannot be built or called
	ErrRerankerUnavailable = errors.New("reranker unavailable")
)

// Validation errors
var (
	ErrInvalidOverlap     = errors.New("overlap ratio must be in [0, 1)")
	ErrInvalidResultCount = errors.New("n_result must be >= 1")
)
