//go:build linux

package reactor

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Handle owns one file descriptor and its registration with a Reactor.
// The descriptor is closed exactly once, by Close.
type Handle struct {
	fd     int
	r      Reactor
	closer func(fd int) error

	mu         sync.Mutex
	waker      Waker
	armed      bool // a registration is outstanding
	registered bool // the reactor has seen fd at least once
	closed     bool
}

// NewHandle takes ownership of fd. closer releases the descriptor; nil
// means unix.Close.
func NewHandle(fd int, r Reactor, closer func(fd int) error) *Handle {
	if closer == nil {
		closer = unix.Close
	}
	return &Handle{fd: fd, r: r, closer: closer}
}

// Fd returns the owned descriptor.
func (h *Handle) Fd() int { return h.fd }

// Armed reports whether a registration is outstanding.
func (h *Handle) Armed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.armed
}

// Arm registers w to be woken when the descriptor becomes readable.
// While a registration is outstanding, further calls only replace the
// waker; the reactor sees one registration per suspension.
func (h *Handle) Arm(w Waker) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.waker = w
	if h.armed {
		h.mu.Unlock()
		return nil
	}
	h.armed = true
	h.registered = true
	h.mu.Unlock()

	if err := h.r.Register(h.fd, WakerFunc(h.fire)); err != nil {
		h.mu.Lock()
		h.armed = false
		h.waker = nil
		h.mu.Unlock()
		return fmt.Errorf("register fd %d: %w", h.fd, err)
	}
	return nil
}

// Wake resumes the pending waker without waiting for the descriptor, so
// its owner polls again. The reactor registration stays in place and the
// next Arm replaces it. Wake does nothing when no waker is pending.
func (h *Handle) Wake() {
	h.fire()
}

func (h *Handle) fire() {
	h.mu.Lock()
	w := h.waker
	h.waker = nil
	h.armed = false
	h.mu.Unlock()

	if w != nil {
		w.Wake()
	}
}

// Close deregisters and closes the descriptor, then wakes any pending
// waker so that its owner polls again and observes the closed state. Only
// the first call does any work; later calls return ErrClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.closed = true
	registered := h.registered
	pending := h.waker
	h.armed = false
	h.waker = nil
	h.mu.Unlock()

	var errs []error
	if registered {
		if err := h.r.Deregister(h.fd); err != nil {
			errs = append(errs, fmt.Errorf("deregister fd %d: %w", h.fd, err))
		}
	}
	if err := h.closer(h.fd); err != nil {
		errs = append(errs, fmt.Errorf("close fd %d: %w", h.fd, err))
	}
	if pending != nil {
		pending.Wake()
	}
	return errors.Join(errs...)
}
