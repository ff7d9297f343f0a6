package broadcast

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Recv once the hub or the subscription is closed.
var ErrClosed = errors.New("broadcast: closed")

// LaggedError reports messages a subscriber lost because it fell behind.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: subscriber lagged, %d messages skipped", e.Missed)
}
