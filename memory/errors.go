package memory

import "fmt"

// ValidationError reports invalid input caught before any remote call.
// It aborts the operation immediately and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ExternalServiceError reports a failed call to a remote service
// (classification or embedding): network, auth, rate limit, or a
// malformed response.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// StorageError reports a persistence failure on insert or query.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DimensionError reports an embedding whose dimension does not match the
// store's configured dimension. This is a configuration fault, not a
// per-call error: all chunks in a store must share one dimension.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store expects %d, got %d", e.Want, e.Got)
}
