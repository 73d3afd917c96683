package broadcast

import (
	"errors"

	"wapair/internal/types"
)

// ErrSinkClosed is returned by Send once a sink has been closed.
var ErrSinkClosed = errors.New("event sink closed")

// Sink is one client's half of an event stream. Done fires when the stream is
// finished for any reason: Close was called or the transport went away.
// Implementations serialize their own writes.
type Sink interface {
	Send(ev types.Event) error
	Close() error
	Done() <-chan struct{}
}
