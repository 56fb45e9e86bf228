package nbt

import "errors"

// Error kinds surfaced by this package. Wrapped errors carry context;
// match with errors.Is.
var (
	// ErrMalformed reports structurally invalid input: negative lengths,
	// a non-compound root, an invalid list element type, or bad UTF-8.
	ErrMalformed = errors.New("malformed NBT data")

	// ErrTruncated reports a byte source that ended mid-tag.
	ErrTruncated = errors.New("truncated NBT data")

	// ErrTypeMismatch reports an accessor asked for an incompatible
	// conversion.
	ErrTypeMismatch = errors.New("tag type mismatch")

	// ErrInvalidState reports an operation that is illegal in the current
	// reader or tag state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidArgument reports a nil or out-of-range parameter.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFormat reports a write that would produce ill-formed NBT, such as
	// serializing a list with an undetermined element type or closing a
	// list before all declared elements were written.
	ErrFormat = errors.New("format error")
)
