package transport

import (
	"errors"
)

var (
	// ErrNotConnected is returned when emitting while the connection is down.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned by Emit and EmitWithAck after Close.
	ErrClosed = errors.New("client closed")
	// ErrAckTimeout is returned when the server does not acknowledge in time.
	ErrAckTimeout = errors.New("acknowledgement timed out")
	// ErrConnectRefused is returned when the server rejects the namespace.
	ErrConnectRefused = errors.New("namespace connection refused")
	// ErrServerDisconnect is returned when the server drops the namespace.
	ErrServerDisconnect = errors.New("disconnected by server")
)

// Error is a transport failure. Connection losses are retried by the client
// itself; callers surface them as a connection indicator.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "transport " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Op: op, Err: err}
}
