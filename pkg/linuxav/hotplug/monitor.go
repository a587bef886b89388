//go:build linux

// Package hotplug discovers V4L2 capture nodes as they appear in /dev.
//
// A Monitor watches the device directory with inotify, scans it for video
// nodes it has not opened yet and hands each one to capture
// initialization. It keeps a Watched Set of the nodes it currently has
// open so a node is never opened twice, and forgets a node when its
// removal is announced.
//
// This package does not use cgo.
package hotplug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camrig/pkg/linuxav/capture"
	"github.com/smazurov/camrig/pkg/linuxav/reactor"
)

// ErrClosed is returned by operations on a closed Monitor.
var ErrClosed = reactor.ErrClosed

// readBufferSize holds a full batch of maximum-length records.
const readBufferSize = 16 * (EventHeaderSize + MaxNameLen)

// Opener opens a device node and returns its descriptor.
type Opener func(path string) (int, error)

// DeviceFactory initializes capture on an opened node. It owns fd and must
// close it on failure.
type DeviceFactory func(fd int, path string) (*capture.Device, error)

// InitError reports a node that opened but failed capture initialization.
// The monitor stays usable and does not retry the node until it is
// recreated.
type InitError struct {
	Name string
	Path string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Path, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithDir watches dir instead of DevDir.
func WithDir(dir string) Option {
	return func(m *Monitor) { m.dir = dir }
}

// WithOpener replaces the function used to open nodes.
func WithOpener(open Opener) Option {
	return func(m *Monitor) {
		if open != nil {
			m.open = open
		}
	}
}

// WithDeviceFactory replaces capture initialization.
func WithDeviceFactory(f DeviceFactory) Option {
	return func(m *Monitor) {
		if f != nil {
			m.newDevice = f
		}
	}
}

// WithCaptureConfig sets the configuration requested from every node.
func WithCaptureConfig(cfg capture.Config) Option {
	return func(m *Monitor) { m.captureCfg = cfg }
}

// WithCaptureOptions passes options to every capture.New call.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(m *Monitor) { m.captureOpts = append(m.captureOpts, opts...) }
}

// WithEventSource replaces the inotify channel.
func WithEventSource(src Source) Option {
	return func(m *Monitor) { m.src = src }
}

// WithEventHook calls fn for every video-node record the monitor applies.
func WithEventHook(fn func(Event)) Option {
	return func(m *Monitor) { m.hook = fn }
}

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Monitor produces newly connected capture devices.
type Monitor struct {
	dir         string
	r           reactor.Reactor
	src         Source
	h           *reactor.Handle
	open        Opener
	newDevice   DeviceFactory
	captureCfg  capture.Config
	captureOpts []capture.Option
	hook        func(Event)
	logger      *slog.Logger
	buf         []byte

	mu               sync.Mutex
	watched          map[string]*capture.Device // nil while initializing
	rejected         map[string]struct{} // failed init; skipped until recreated
	permissionDenied bool
	closed           bool
}

// NewMonitor starts watching the device directory.
func NewMonitor(r reactor.Reactor, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		dir:      DevDir,
		r:        r,
		open:     openNode,
		logger:   slog.Default().With("component", "hotplug"),
		buf:      make([]byte, readBufferSize),
		watched:  make(map[string]*capture.Device),
		rejected: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newDevice == nil {
		m.newDevice = m.initCapture
	}

	if m.src == nil {
		src, err := newInotify(m.dir)
		if err != nil {
			return nil, err
		}
		m.src = src
	}
	m.h = reactor.NewHandle(m.src.Fd(), r, func(int) error { return m.src.Close() })

	m.logger.Debug("Hotplug monitor started", "dir", m.dir)
	return m, nil
}

func (m *Monitor) initCapture(fd int, path string) (*capture.Device, error) {
	return capture.New(fd, path, m.r, m.captureCfg, m.captureOpts...)
}

// Poll applies pending change records, then scans the directory for a node
// that is neither watched nor rejected. It returns the first node that
// initializes; an *InitError for a node that opened but failed
// initialization; or ready=false after arming w on the notification
// channel when there is nothing new.
func (m *Monitor) Poll(w reactor.Waker) (*capture.Device, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrClosed
	}

	if err := m.drain(); err != nil {
		return nil, false, err
	}

	dev, err := m.scan()
	if err != nil {
		return nil, false, err
	}
	if dev != nil {
		return dev, true, nil
	}

	if err := m.h.Arm(w); err != nil {
		return nil, false, fmt.Errorf("arm notification channel: %w", err)
	}
	return nil, false, nil
}

// Next waits for the next connected camera.
func (m *Monitor) Next(ctx context.Context) (*capture.Device, error) {
	return reactor.Block[*capture.Device](ctx, m.Poll)
}

// drain reads until the channel would block.
func (m *Monitor) drain() error {
	for {
		n, err := m.src.Read(m.buf)
		if errors.Is(err, unix.EAGAIN) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read notification channel: %w", err)
		}
		if n == 0 {
			return nil
		}

		events, err := ParseEvents(m.buf[:n])
		if err != nil {
			m.logger.Warn("Discarding malformed change records", "error", err)
		}
		for _, ev := range events {
			m.apply(ev)
		}
	}
}

func (m *Monitor) apply(ev Event) {
	if ev.Mask&inQueueOverflow != 0 {
		// Records were lost; give rejected nodes another chance.
		m.logger.Warn("Change queue overflowed")
		clear(m.rejected)
		return
	}
	if !IsVideoNode(ev.Name) {
		return
	}

	switch {
	case ev.IsDelete():
		_, was := m.watched[ev.Name]
		delete(m.watched, ev.Name)
		delete(m.rejected, ev.Name)
		m.logger.Debug("Video node removed", "name", ev.Name, "was_watched", was)
	case ev.IsCreate():
		delete(m.rejected, ev.Name)
		m.logger.Debug("Video node created", "name", ev.Name)
	default:
		return
	}
	if m.hook != nil {
		m.hook(ev)
	}
}

func (m *Monitor) scan() (*capture.Device, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", m.dir, err)
	}

	m.permissionDenied = false
	for _, entry := range entries {
		name := entry.Name()
		if !IsVideoNode(name) {
			continue
		}
		if _, ok := m.watched[name]; ok {
			continue
		}
		if _, ok := m.rejected[name]; ok {
			continue
		}

		path := filepath.Join(m.dir, name)
		fd, err := m.open(path)
		if err != nil {
			if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
				m.permissionDenied = true
			}
			m.logger.Debug("Skipping video node", "path", path, "error", err)
			continue
		}

		m.watched[name] = nil
		dev, err := m.newDevice(fd, path)
		if err != nil {
			delete(m.watched, name)
			m.rejected[name] = struct{}{}
			return nil, &InitError{Name: name, Path: path, Err: err}
		}
		m.watched[name] = dev
		m.logger.Info("Camera connected", "path", path)
		return dev, nil
	}
	return nil, nil
}

// Watched returns the names of the nodes currently open, sorted.
func (m *Monitor) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.watched))
	for name := range m.watched {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsWatched reports whether name is currently open.
func (m *Monitor) IsWatched(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watched[name]
	return ok
}

// Forget removes dev from the Watched Set after its consumer closed it and
// wakes a pending Poll, so that the node is scanned again. A node that was
// recreated and reopened in the meantime stays watched. Forget reports
// whether dev was still the watched device for its node.
func (m *Monitor) Forget(dev *capture.Device) bool {
	name := filepath.Base(dev.Path())

	m.mu.Lock()
	if cur, ok := m.watched[name]; !ok || cur != dev {
		m.mu.Unlock()
		return false
	}
	delete(m.watched, name)
	m.mu.Unlock()

	m.h.Wake()
	return true
}

// PermissionDenied reports whether the last scan skipped a node because it
// could not be opened for lack of permission.
func (m *Monitor) PermissionDenied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permissionDenied
}

// Close releases the notification channel. Devices already handed out
// stay open.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return m.h.Close()
}
