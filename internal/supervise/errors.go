package supervise

import "errors"

// Precondition errors are rejected synchronously at an operation's entry, with
// no state change and no side effects.
var (
	// ErrBusy reports that another operation is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrNotInstalled reports a missing install artifact at Start.
	ErrNotInstalled = errors.New("not installed")
	// ErrNotRunning reports that there is nothing to stop.
	ErrNotRunning = errors.New("not running")
	// ErrDeclined reports that the user answered no to the stop prompt.
	ErrDeclined = errors.New("stop declined")
	// ErrUnsupported reports an operation the service does not define.
	ErrUnsupported = errors.New("operation not supported")
	// ErrUnknownService reports a lookup for a service the registry does
	// not hold.
	ErrUnknownService = errors.New("unknown service")
)
