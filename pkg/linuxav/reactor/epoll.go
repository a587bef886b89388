//go:build linux

package reactor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

const maxEpollEvents = 32

// Option configures an Epoll reactor.
type Option func(*Epoll)

// WithLogger sets the logger used for poll loop failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Epoll) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Epoll is a Reactor backed by one epoll instance and one goroutine
// waiting on it. Descriptors are armed with EPOLLONESHOT, so each
// registration fires at most once.
type Epoll struct {
	epfd   int
	wakefd int // eventfd used to interrupt epoll_wait on Close

	mu      sync.Mutex
	wakers  map[int]Waker
	members map[int]bool // fds currently in the epoll set
	closed  bool

	done   chan struct{}
	logger *slog.Logger
}

// NewEpoll creates the epoll instance and starts its wait loop.
func NewEpoll(opts ...Option) (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl add eventfd: %w", err)
	}

	e := &Epoll{
		epfd:    epfd,
		wakefd:  wakefd,
		wakers:  make(map[int]Waker),
		members: make(map[int]bool),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "reactor"),
	}
	for _, opt := range opts {
		opt(e)
	}

	go e.run()
	return e, nil
}

// Register implements Reactor.
func (e *Epoll) Register(fd int, w Waker) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLONESHOT, Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if e.members[fd] {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(e.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl fd %d: %w", fd, err)
	}

	e.members[fd] = true
	e.wakers[fd] = w
	return nil
}

// Deregister implements Reactor. Unknown descriptors are ignored.
func (e *Epoll) Deregister(fd int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.wakers, fd)
	if e.closed || !e.members[fd] {
		return nil
	}
	delete(e.members, fd)

	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Close stops the wait loop, wakes every pending waker so that its owner
// observes ErrClosed on the next poll, and releases the epoll instance.
func (e *Epoll) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	pending := e.wakers
	e.wakers = make(map[int]Waker)
	e.mu.Unlock()

	var one [8]byte
	one[0] = 1
	if _, err := unix.Write(e.wakefd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		e.logger.Warn("Failed to signal epoll loop", "error", err)
	}
	<-e.done

	for _, w := range pending {
		w.Wake()
	}

	return errors.Join(unix.Close(e.wakefd), unix.Close(e.epfd))
}

func (e *Epoll) run() {
	defer close(e.done)

	var events [maxEpollEvents]unix.EpollEvent
	for {
		n, err := unix.EpollWait(e.epfd, events[:], -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			e.logger.Error("epoll_wait failed", "error", err)
			return
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == e.wakefd {
				var buf [8]byte
				_, _ = unix.Read(e.wakefd, buf[:])
				e.mu.Lock()
				closed := e.closed
				e.mu.Unlock()
				if closed {
					return
				}
				continue
			}

			e.mu.Lock()
			w := e.wakers[fd]
			delete(e.wakers, fd)
			e.mu.Unlock()

			if w != nil {
				w.Wake()
			}
		}
	}
}
