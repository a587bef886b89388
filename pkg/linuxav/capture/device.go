//go:build linux

// Package capture drives a single-buffer memory-mapped V4L2 capture.
//
// A Device negotiates MJPEG with the driver, maps one driver buffer and
// keeps it queued. PollFrame dequeues the buffer when the driver has
// filled it and immediately queues it again, so the driver never waits
// for the consumer.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camrig/pkg/linuxav/reactor"
	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// State is the lifecycle state of a Device.
type State int

// Device states.
const (
	StateStreaming State = iota
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Device.
type Option func(*Device)

// WithSys replaces the system call layer.
func WithSys(sys Sys) Option {
	return func(d *Device) {
		if sys != nil {
			d.sys = sys
		}
	}
}

// WithLogger sets the device logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Device is an open, streaming capture node.
type Device struct {
	path   string
	sys    Sys
	logger *slog.Logger
	h      *reactor.Handle

	capability v4l2.Capability
	format     Negotiated
	buf        v4l2.Buffer // descriptor from the last successful query
	mem        []byte

	mu    sync.Mutex
	state State
}

func newDevice(path string, opts []Option) *Device {
	d := &Device{
		path:   path,
		sys:    UnixSys{},
		logger: slog.Default().With("component", "capture"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("device", path)
	return d
}

// Open opens path and initializes it for capture.
func Open(path string, r reactor.Reactor, cfg Config, opts ...Option) (*Device, error) {
	d := newDevice(path, opts)
	fd, err := d.sys.Open(path)
	if err != nil {
		return nil, newError(CodeDeviceUnavailable, "open", path, err)
	}
	return d.init(fd, r, cfg)
}

// New initializes an already open descriptor for capture. The Device takes
// ownership of fd; on failure fd is closed before New returns.
func New(fd int, path string, r reactor.Reactor, cfg Config, opts ...Option) (*Device, error) {
	return newDevice(path, opts).init(fd, r, cfg)
}

func (d *Device) init(fd int, r reactor.Reactor, cfg Config) (*Device, error) {
	d.h = reactor.NewHandle(fd, r, d.sys.Close)

	if err := d.negotiate(fd, cfg); err != nil {
		d.release()
		return nil, err
	}

	d.logger.Info("Capture streaming",
		"driver", d.capability.DriverName(),
		"card", d.capability.CardName(),
		"format", v4l2.FormatFourCC(d.format.PixelFormat),
		"width", d.format.Width,
		"height", d.format.Height,
		"buffer_length", len(d.mem))
	return d, nil
}

func (d *Device) negotiate(fd int, cfg Config) error {
	if err := d.sys.Ioctl(fd, v4l2.VidiocQueryCap, unsafe.Pointer(&d.capability)); err != nil {
		return newError(CodeDeviceUnavailable, "query capabilities", d.path, err)
	}
	if !d.capability.CanCapture() {
		return newError(CodeDeviceUnavailable, "query capabilities", d.path,
			fmt.Errorf("%w (caps 0x%08x)", errNotCaptureDevice, d.capability.EffectiveCaps()))
	}

	want := cfg.PixelFormat
	if want == 0 {
		want = v4l2.PixFmtMJPEG
	}
	var f v4l2.Format
	f.Type = v4l2.BufTypeVideoCapture
	pix := f.Pix()
	pix.Width = cfg.Width
	pix.Height = cfg.Height
	pix.PixelFormat = want
	pix.Field = v4l2.FieldAny
	if err := d.sys.Ioctl(fd, v4l2.VidiocSetFormat, unsafe.Pointer(&f)); err != nil {
		return newError(CodeFormatRejected, "set format", d.path, err)
	}
	if pix.PixelFormat != want {
		return newError(CodeFormatRejected, "set format", d.path,
			fmt.Errorf("driver substituted %s for %s", v4l2.FormatFourCC(pix.PixelFormat), v4l2.FormatFourCC(want)))
	}
	d.format = Negotiated{
		Width:        pix.Width,
		Height:       pix.Height,
		BytesPerLine: pix.BytesPerLine,
		SizeImage:    pix.SizeImage,
		PixelFormat:  pix.PixelFormat,
		Field:        pix.Field,
		Colorspace:   pix.Colorspace,
	}

	req := v4l2.RequestBuffers{
		Count:  1,
		Type:   v4l2.BufTypeVideoCapture,
		Memory: v4l2.MemoryMMap,
	}
	if err := d.sys.Ioctl(fd, v4l2.VidiocRequestBuffers, unsafe.Pointer(&req)); err != nil {
		return newError(CodeBufferRequestFailed, "request buffers", d.path, err)
	}
	if req.Count == 0 {
		return newError(CodeBufferRequestFailed, "request buffers", d.path, errNoBuffers)
	}
	if req.Count > 1 {
		// Only index 0 is ever queued; the rest stay with the driver unused.
		d.logger.Debug("Driver allocated extra buffers", "count", req.Count)
	}

	d.buf = v4l2.Buffer{
		Index:  0,
		Type:   v4l2.BufTypeVideoCapture,
		Memory: v4l2.MemoryMMap,
	}
	if err := d.sys.Ioctl(fd, v4l2.VidiocQueryBuffer, unsafe.Pointer(&d.buf)); err != nil {
		return newError(CodeBufferRequestFailed, "query buffer", d.path, err)
	}

	mem, err := d.sys.Mmap(fd, int64(d.buf.Offset()), int(d.buf.Length))
	if err != nil {
		return newError(CodeMappingFailed, "mmap", d.path, err)
	}
	d.mem = mem
	if len(mem) != int(d.buf.Length) {
		return newError(CodeMappingFailed, "mmap", d.path,
			fmt.Errorf("%w: %d != %d", errShortMapping, len(mem), d.buf.Length))
	}

	if err := d.queue(fd); err != nil {
		return IOError("queue buffer", d.path, err)
	}

	typ := int32(v4l2.BufTypeVideoCapture)
	if err := d.sys.Ioctl(fd, v4l2.VidiocStreamOn, unsafe.Pointer(&typ)); err != nil {
		return IOError("stream on", d.path, err)
	}
	return nil
}

// queue hands the buffer from the last query back to the driver.
func (d *Device) queue(fd int) error {
	b := v4l2.Buffer{
		Index:  d.buf.Index,
		Type:   d.buf.Type,
		Memory: d.buf.Memory,
	}
	b.SetOffset(d.buf.Offset())
	return d.sys.Ioctl(fd, v4l2.VidiocQueueBuffer, unsafe.Pointer(&b))
}

// release undoes a partial initialization. Streaming was never enabled.
func (d *Device) release() {
	d.state = StateClosed
	if d.mem != nil {
		if err := d.sys.Munmap(d.mem); err != nil {
			d.logger.Warn("Failed to unmap buffer", "error", err)
		}
		d.mem = nil
	}
	if err := d.h.Close(); err != nil {
		d.logger.Warn("Failed to close device", "error", err)
	}
}

// PollFrame attempts a non-blocking dequeue. When no buffer is ready it
// arms w for the descriptor and returns ready=false. A dequeued buffer is
// queued again before PollFrame returns. Any other failure closes the
// Device and returns an IO_FAILURE error.
func (d *Device) PollFrame(w reactor.Waker) (Frame, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateClosed {
		return Frame{}, false, ErrClosed
	}

	fd := d.h.Fd()
	b := v4l2.Buffer{
		Type:   v4l2.BufTypeVideoCapture,
		Memory: v4l2.MemoryMMap,
	}
	err := d.sys.Ioctl(fd, v4l2.VidiocDequeueBuffer, unsafe.Pointer(&b))
	if errors.Is(err, unix.EAGAIN) {
		if err := d.h.Arm(w); err != nil {
			return Frame{}, false, d.fail("arm", err)
		}
		return Frame{}, false, nil
	}
	if err != nil {
		return Frame{}, false, d.fail("dequeue buffer", err)
	}
	if b.Index != d.buf.Index {
		return Frame{}, false, d.fail("dequeue buffer",
			fmt.Errorf("%w: index %d", errUnexpectedIndex, b.Index))
	}

	if err := d.queue(fd); err != nil {
		return Frame{}, false, d.fail("queue buffer", err)
	}

	used := b.BytesUsed
	if int(used) > len(d.mem) {
		used = uint32(len(d.mem))
	}
	return Frame{
		Data:      d.mem[:used],
		BytesUsed: b.BytesUsed,
		Sequence:  b.Sequence,
		Timestamp: b.Time(),
		Index:     b.Index,
	}, true, nil
}

// fail tears the device down after a fatal streaming error.
func (d *Device) fail(op string, cause error) error {
	if err := d.closeLocked(); err != nil {
		d.logger.Warn("Teardown after capture failure reported errors", "error", err)
	}
	return IOError(op, d.path, cause)
}

// NextFrame waits for the next completed buffer.
func (d *Device) NextFrame(ctx context.Context) (Frame, error) {
	return reactor.Block[Frame](ctx, d.PollFrame)
}

// Close stops streaming, unmaps the buffer and closes the descriptor.
// Every step is attempted; failures are joined into the returned error.
// Calls after the first return ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateClosed {
		return ErrClosed
	}
	return d.closeLocked()
}

func (d *Device) closeLocked() error {
	d.state = StateClosed

	var errs []error
	typ := int32(v4l2.BufTypeVideoCapture)
	if err := d.sys.Ioctl(d.h.Fd(), v4l2.VidiocStreamOff, unsafe.Pointer(&typ)); err != nil {
		errs = append(errs, IOError("stream off", d.path, err))
	}
	if d.mem != nil {
		if err := d.sys.Munmap(d.mem); err != nil {
			errs = append(errs, IOError("munmap", d.path, err))
		}
		d.mem = nil
	}
	if err := d.h.Close(); err != nil {
		errs = append(errs, IOError("close", d.path, err))
	}

	d.logger.Debug("Capture closed", "errors", len(errs))
	return errors.Join(errs...)
}

// Path returns the device node path.
func (d *Device) Path() string { return d.path }

// Fd returns the device descriptor.
func (d *Device) Fd() int { return d.h.Fd() }

// Capability returns the capability block reported at initialization.
func (d *Device) Capability() v4l2.Capability { return d.capability }

// Format returns the negotiated format.
func (d *Device) Format() Negotiated { return d.format }

// BufferLength returns the length of the mapped buffer.
func (d *Device) BufferLength() uint32 { return d.buf.Length }

// State returns the lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
