package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by calls on a client whose connection is gone.
	ErrClosed = errors.New("rpc: connection closed")

	// ErrTimeout is returned when no response arrives within the call timeout.
	ErrTimeout = errors.New("rpc: call timed out")

	// ErrUnknownMethod is reported to clients that call a method the server
	// does not serve.
	ErrUnknownMethod = errors.New("rpc: unknown method")
)

// RemoteError is a failure reported by the service for one request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Method, e.Message)
}
