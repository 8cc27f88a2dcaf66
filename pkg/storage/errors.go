package storage

import "errors"

// Sentinel errors realizing the semantic taxonomy of spec §7:
// Ok / Error / Oom / IoError / Corruption. Callers use errors.Is against
// these through the fmt.Errorf("...: %w", ...) wrapping used throughout
// this package.
var (
	// ErrInvalidArgument covers generic precondition violations.
	ErrInvalidArgument = errors.New("storage: invalid argument")

	// ErrOOM names the allocation-failure case of the taxonomy; no
	// operation in this package returns it.
	ErrOOM = errors.New("storage: out of memory")

	// ErrIO wraps any underlying read/write/seek/sync failure.
	ErrIO = errors.New("storage: io error")

	// ErrCorruption is returned when a structural invariant is violated
	// while reading a page or replaying the log.
	ErrCorruption = errors.New("storage: corruption detected")

	// ErrNoSpace is returned by slotted-page operations that cannot fit
	// a tuple in the remaining free space.
	ErrNoSpace = errors.New("storage: no space in page")

	// ErrClosed is returned by handle operations after Close.
	ErrClosed = errors.New("storage: engine is closed")
)
