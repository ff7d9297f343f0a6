//go:build !linux

package input

// Logger defines the logging interface used by the joystick source.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// JoystickSource is only implemented on Linux.
type JoystickSource struct {
	FakeSource
}

// OpenJoystick reports ErrUnsupported outside Linux.
func OpenJoystick(string, Logger) (*JoystickSource, error) {
	return nil, ErrUnsupported
}
