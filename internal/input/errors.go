package input

import "errors"

var (
	// ErrClosed is returned by NextEvent after Close.
	ErrClosed = errors.New("input: source closed")

	// ErrUnsupported is returned when the hardware backend is not available
	// on this platform.
	ErrUnsupported = errors.New("input: backend not supported on this platform")
)
