//go:build linux

// Package reactor turns file descriptor readiness into wake-ups.
//
// A component that would block returns "not ready" after registering a
// Waker for its descriptor. The Reactor invokes the Waker once, the next
// time the descriptor becomes readable, and the caller polls again. Each
// registration is single use.
//
// Handle ties a descriptor to its registration so that at most one
// registration is outstanding per suspension, and Block drives a
// poll-style operation to completion for callers that want to wait.
package reactor

import "errors"

// ErrClosed is returned by operations on a closed Reactor or Handle.
var ErrClosed = errors.New("reactor: closed")

// Waker resumes a suspended poll.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to a Waker.
type WakerFunc func()

// Wake calls f.
func (f WakerFunc) Wake() { f() }

// ChanWaker delivers wake-ups on a channel. Wake-ups that arrive while one
// is already pending coalesce.
type ChanWaker chan struct{}

// NewChanWaker returns a ChanWaker with room for one pending wake-up.
func NewChanWaker() ChanWaker { return make(ChanWaker, 1) }

// Wake signals the channel without blocking.
func (c ChanWaker) Wake() {
	select {
	case c <- struct{}{}:
	default:
	}
}

// Reactor delivers one-shot readability notifications.
type Reactor interface {
	// Register arranges for w to be woken once, the next time fd is
	// readable. Registering an fd again replaces any pending waker.
	Register(fd int, w Waker) error
	// Deregister drops fd and any pending waker. It must be called before
	// fd is closed.
	Deregister(fd int) error
}
