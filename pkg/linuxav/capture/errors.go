//go:build linux

package capture

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camrig/pkg/linuxav/reactor"
)

// ErrorCode classifies capture failures.
type ErrorCode string

// Error codes.
const (
	CodeDeviceUnavailable   ErrorCode = "DEVICE_UNAVAILABLE"
	CodeFormatRejected      ErrorCode = "FORMAT_REJECTED"
	CodeBufferRequestFailed ErrorCode = "BUFFER_REQUEST_FAILED"
	CodeMappingFailed       ErrorCode = "MAPPING_FAILED"
	CodeIOFailure           ErrorCode = "IO_FAILURE"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrDeviceUnavailable   = &Error{Code: CodeDeviceUnavailable}
	ErrFormatRejected      = &Error{Code: CodeFormatRejected}
	ErrBufferRequestFailed = &Error{Code: CodeBufferRequestFailed}
	ErrMappingFailed       = &Error{Code: CodeMappingFailed}
	ErrIOFailure           = &Error{Code: CodeIOFailure}
)

// ErrClosed is returned by operations on a closed Device.
var ErrClosed = reactor.ErrClosed

var (
	errNotCaptureDevice = errors.New("node does not support streaming video capture")
	errNoBuffers        = errors.New("driver allocated no buffers")
	errShortMapping     = errors.New("mapped length differs from buffer length")
	errUnexpectedIndex  = errors.New("driver returned a buffer that was never queued")
)

// Error is a capture failure. Errno is set when the driver rejected a
// control call.
type Error struct {
	Code  ErrorCode
	Op    string
	Path  string
	Errno unix.Errno
	Cause error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// newError builds an Error, lifting the errno out of cause when there is one.
func newError(code ErrorCode, op, path string, cause error) *Error {
	e := &Error{Code: code, Op: op, Path: path, Cause: cause}
	var errno unix.Errno
	if errors.As(cause, &errno) {
		e.Errno = errno
	}
	return e
}

// IOError reports a failed control call during streaming.
func IOError(op, path string, cause error) *Error {
	return newError(CodeIOFailure, op, path, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
