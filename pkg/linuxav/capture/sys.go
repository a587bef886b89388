//go:build linux

package capture

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// Sys is the set of system calls a Device issues. The default
// implementation talks to the kernel; tests substitute a scripted driver.
type Sys interface {
	Open(path string) (int, error)
	Ioctl(fd int, code v4l2.Code, arg unsafe.Pointer) error
	Mmap(fd int, offset int64, length int) ([]byte, error)
	Munmap(b []byte) error
	Close(fd int) error
}

// UnixSys is the kernel-backed Sys.
type UnixSys struct{}

// Open opens path read-write, non-blocking and close-on-exec.
func (UnixSys) Open(path string) (int, error) {
	var fd int
	err := v4l2.RetryOnInterrupt(func() error {
		var openErr error
		fd, openErr = unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		return openErr
	})
	return fd, err
}

// Ioctl issues a V4L2 control call.
func (UnixSys) Ioctl(fd int, code v4l2.Code, arg unsafe.Pointer) error {
	return v4l2.Ioctl(fd, code, arg)
}

// Mmap maps a driver buffer read-write and shared with the driver.
func (UnixSys) Mmap(fd int, offset int64, length int) ([]byte, error) {
	return unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Munmap unmaps a region returned by Mmap.
func (UnixSys) Munmap(b []byte) error {
	return unix.Munmap(b)
}

// Close closes fd.
func (UnixSys) Close(fd int) error {
	return unix.Close(fd)
}
