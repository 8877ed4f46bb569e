package forwarder

import (
	"errors"
	"fmt"
)

// ErrNoLineSink is returned by Read when the line-buffered policy is forced
// but only chunk sinks are registered, so nothing could be delivered.
var ErrNoLineSink = errors.New("line-buffered policy requires a line sink")

// ReadError indicates that the source stream failed while being read.
// Everything flushed or captured before the failure remains valid.
type ReadError struct {
	Stream string
	Err    error
}

func (e *ReadError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("source read failure: %v", e.Err)
	}
	return fmt.Sprintf("source read failure on %s: %v", e.Stream, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// IsReadError checks if an error is, or wraps, a ReadError.
func IsReadError(err error) bool {
	if err == nil {
		return false
	}
	var re *ReadError
	return errors.As(err, &re)
}
