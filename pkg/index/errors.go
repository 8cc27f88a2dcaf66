package index

import "errors"

var (
	// ErrKeyNotFound is returned when a lookup key has no entry.
	ErrKeyNotFound = errors.New("index: key not found")

	// ErrInvalidArgument is returned by Insert for an empty key.
	// Constructors replace non-positive sizing parameters with their
	// defaults rather than rejecting them.
	ErrInvalidArgument = errors.New("index: invalid argument")
)
