//go:build linux

package hotplug

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// Source is a non-blocking notification channel. Read returns
// unix.EAGAIN when no record is pending.
type Source interface {
	Fd() int
	Read(p []byte) (int, error)
	Close() error
}

type inotifySource struct {
	fd int
}

// newInotify watches dir for created and deleted entries.
func newInotify(dir string) (*inotifySource, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, dir, InCreate|InDelete); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch %s: %w", dir, err)
	}
	return &inotifySource{fd: fd}, nil
}

func (s *inotifySource) Fd() int { return s.fd }

func (s *inotifySource) Read(p []byte) (int, error) {
	var n int
	err := v4l2.RetryOnInterrupt(func() error {
		var readErr error
		n, readErr = unix.Read(s.fd, p)
		return readErr
	})
	return n, err
}

func (s *inotifySource) Close() error {
	return unix.Close(s.fd)
}

// openNode opens a device node for reading and appending without blocking.
func openNode(path string) (int, error) {
	var fd int
	err := v4l2.RetryOnInterrupt(func() error {
		var openErr error
		fd, openErr = unix.Open(path, unix.O_RDWR|unix.O_APPEND|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		return openErr
	})
	return fd, err
}
