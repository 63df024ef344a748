package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("not connected to room")
	ErrClosed       = errors.New("connection closed")
	ErrHandshake    = errors.New("handshake rejected")
	ErrSubscribe    = errors.New("subscription rejected")
)

// OpError records the session step that failed and, for rejections, the
// reason the server gave.
type OpError struct {
	Op      string
	Err     error
	Details string
}

func (e *OpError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *OpError {
	return &OpError{Op: op, Err: err, Details: details}
}
