package arena

import "errors"

// ErrExhausted is returned by Alloc when the arena has no room left
// for the requested size.
var ErrExhausted = errors.New("arena: exhausted")

// ErrInvalidSize is returned by Alloc for a zero or negative size.
var ErrInvalidSize = errors.New("arena: invalid size")

// ErrClosed is returned by Alloc on an arena after Close.
var ErrClosed = errors.New("arena: closed")
