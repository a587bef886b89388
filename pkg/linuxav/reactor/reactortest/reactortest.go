//go:build linux

// Package reactortest provides a Reactor that records registrations and
// fires them on demand, for testing components that suspend on readiness.
package reactortest

import (
	"sync"

	"github.com/smazurov/camrig/pkg/linuxav/reactor"
)

// Recorder is an in-memory reactor.Reactor. Nothing fires until the test
// calls Fire.
type Recorder struct {
	mu            sync.Mutex
	pending       map[int]reactor.Waker
	registrations map[int]int
	deregistered  map[int]int
	RegisterErr   error
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{
		pending:       make(map[int]reactor.Waker),
		registrations: make(map[int]int),
		deregistered:  make(map[int]int),
	}
}

// Register implements reactor.Reactor.
func (r *Recorder) Register(fd int, w reactor.Waker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.RegisterErr != nil {
		return r.RegisterErr
	}
	r.pending[fd] = w
	r.registrations[fd]++
	return nil
}

// Deregister implements reactor.Reactor.
func (r *Recorder) Deregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, fd)
	r.deregistered[fd]++
	return nil
}

// Fire wakes the pending registration for fd, if any, and reports whether
// one existed.
func (r *Recorder) Fire(fd int) bool {
	r.mu.Lock()
	w, ok := r.pending[fd]
	delete(r.pending, fd)
	r.mu.Unlock()

	if ok {
		w.Wake()
	}
	return ok
}

// Pending reports whether fd has an outstanding registration.
func (r *Recorder) Pending(fd int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[fd]
	return ok
}

// Registrations returns how many times fd was registered.
func (r *Recorder) Registrations(fd int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registrations[fd]
}

// Deregistrations returns how many times fd was deregistered.
func (r *Recorder) Deregistrations(fd int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deregistered[fd]
}
