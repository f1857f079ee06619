package serial

import "errors"

var (
	// ErrDisconnected is returned by ReadLine when the underlying port is
	// lost or closed mid-session.
	ErrDisconnected = errors.New("serial: disconnected")

	// ErrNotOpen is returned by Write when the port has been closed.
	ErrNotOpen = errors.New("serial: port not open")

	// ErrNoPortFound is returned by DetectPort when no candidate device
	// path matches any of the configured globs.
	ErrNoPortFound = errors.New("serial: no port found")
)
