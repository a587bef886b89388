//go:build linux

// Package capturetest provides a scripted single-buffer V4L2 driver that
// satisfies capture.Sys, for tests of code built on capture.Device.
package capturetest

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// Driver emulates a capture driver with one mmap buffer. Configure the
// exported fields before handing it to capture.New; inspect the rest
// through the accessor methods.
type Driver struct {
	FD         int
	Caps       uint32
	Errs       map[v4l2.Code]error // per-call failures
	Substitute uint32              // pixel format the driver forces, 0 = accept
	ReqCount   uint32
	Length     uint32
	Offset     uint32
	MmapErr    error
	MmapShort  bool

	mu         sync.Mutex
	calls      []v4l2.Code
	queued     bool
	queues     []uint32 // indices passed to QBUF
	doubleQBuf int
	ready      []uint32 // bytesused of frames the driver has completed
	sequence   uint32
	streaming  bool

	mapped    []byte
	mmapOff   int64
	munmaps   int
	closes    int
	closedFDs map[int]bool
}

// NewDriver returns a driver that accepts MJPEG at 640x480 by default and
// allocates one 4096-byte buffer.
func NewDriver() *Driver {
	return &Driver{
		FD:        42,
		Caps:      v4l2.CapVideoCapture | v4l2.CapStreaming,
		Errs:      make(map[v4l2.Code]error),
		ReqCount:  1,
		Length:    4096,
		Offset:    0x1000,
		closedFDs: make(map[int]bool),
	}
}

// Complete makes the driver finish a frame of n bytes.
func (d *Driver) Complete(n uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = append(d.ready, n)
}

// Fail makes every later call with code fail with err.
func (d *Driver) Fail(code v4l2.Code, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Errs[code] = err
}

// Calls returns the control calls issued so far.
func (d *Driver) Calls() []v4l2.Code {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]v4l2.Code(nil), d.calls...)
}

// Queued reports whether the buffer is currently with the driver.
func (d *Driver) Queued() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queued
}

// Queues returns the index passed to every successful QBUF.
func (d *Driver) Queues() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.queues...)
}

// DoubleQueues counts QBUF calls made while the buffer was already queued.
func (d *Driver) DoubleQueues() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doubleQBuf
}

// Streaming reports whether streaming is on.
func (d *Driver) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// Mapped reports whether the buffer is mapped.
func (d *Driver) Mapped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapped != nil
}

// MmapOffset returns the offset of the last mapping.
func (d *Driver) MmapOffset() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mmapOff
}

// Munmaps counts unmap calls.
func (d *Driver) Munmaps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.munmaps
}

// Closes counts successful descriptor closes.
func (d *Driver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Open returns FD.
func (d *Driver) Open(string) (int, error) {
	return d.FD, nil
}

// Ioctl emulates the control calls of the capture path. Calls on a closed
// descriptor fail with EBADF.
func (d *Driver) Ioctl(fd int, code v4l2.Code, arg unsafe.Pointer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closedFDs[fd] {
		return unix.EBADF
	}
	d.calls = append(d.calls, code)
	if err := d.Errs[code]; err != nil {
		return err
	}

	switch code {
	case v4l2.VidiocQueryCap:
		c := (*v4l2.Capability)(arg)
		copy(c.Driver[:], "fake")
		copy(c.Card[:], "Fake Camera")
		copy(c.BusInfo[:], "usb-fake-1")
		c.Capabilities = d.Caps
	case v4l2.VidiocSetFormat:
		pix := (*v4l2.Format)(arg).Pix()
		if d.Substitute != 0 {
			pix.PixelFormat = d.Substitute
		}
		if pix.Width == 0 || pix.Height == 0 {
			pix.Width, pix.Height = 640, 480
		}
		pix.SizeImage = d.Length
		pix.Field = v4l2.FieldNone
	case v4l2.VidiocRequestBuffers:
		(*v4l2.RequestBuffers)(arg).Count = d.ReqCount
	case v4l2.VidiocQueryBuffer:
		b := (*v4l2.Buffer)(arg)
		b.Length = d.Length
		b.SetOffset(d.Offset)
	case v4l2.VidiocQueueBuffer:
		if d.queued {
			d.doubleQBuf++
			return unix.EINVAL
		}
		d.queued = true
		d.queues = append(d.queues, (*v4l2.Buffer)(arg).Index)
	case v4l2.VidiocDequeueBuffer:
		if !d.streaming || !d.queued || len(d.ready) == 0 {
			return unix.EAGAIN
		}
		b := (*v4l2.Buffer)(arg)
		d.queued = false
		d.sequence++
		b.Index = 0
		b.BytesUsed = d.ready[0]
		b.Sequence = d.sequence
		b.Timestamp = unix.NsecToTimeval(int64(d.sequence) * 1e9)
		d.ready = d.ready[1:]
	case v4l2.VidiocStreamOn:
		d.streaming = true
	case v4l2.VidiocStreamOff:
		d.streaming = false
	}
	return nil
}

// Mmap returns a fresh region filled with its own byte offsets.
func (d *Driver) Mmap(_ int, offset int64, length int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.MmapErr != nil {
		return nil, d.MmapErr
	}
	if d.MmapShort {
		length /= 2
	}
	d.mmapOff = offset
	d.mapped = make([]byte, length)
	for i := range d.mapped {
		d.mapped[i] = byte(i)
	}
	return d.mapped, nil
}

// Munmap drops the region.
func (d *Driver) Munmap([]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.munmaps++
	d.mapped = nil
	return nil
}

// Close marks fd closed; closing it again fails with EBADF.
func (d *Driver) Close(fd int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closedFDs[fd] {
		return unix.EBADF
	}
	d.closedFDs[fd] = true
	d.closes++
	return nil
}
