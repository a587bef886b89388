//go:build linux

// Package monitoring runs camera discovery and one capture loop per
// connected camera, and reports what it sees on the event bus and in
// metrics.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/camrig/internal/events"
	"github.com/smazurov/camrig/internal/logging"
	"github.com/smazurov/camrig/internal/metrics"
	"github.com/smazurov/camrig/pkg/linuxav/capture"
	"github.com/smazurov/camrig/pkg/linuxav/hotplug"
	"github.com/smazurov/camrig/pkg/linuxav/reactor"
	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// CameraInfo describes one capture session.
type CameraInfo struct {
	Name        string             `json:"name" example:"video0"`
	Path        string             `json:"path" example:"/dev/video0"`
	SessionID   string             `json:"session_id"`
	Driver      string             `json:"driver" example:"uvcvideo"`
	Card        string             `json:"card" example:"HD Webcam"`
	BusInfo     string             `json:"bus_info" example:"usb-0000:00:14.0-1"`
	Format      capture.Negotiated `json:"format"`
	ConnectedAt time.Time          `json:"connected_at"`
}

// FourCC returns the negotiated pixel format as text.
func (c CameraInfo) FourCC() string {
	return v4l2.FormatFourCC(c.Format.PixelFormat)
}

// FrameHandler consumes completed buffers. HandleFrame runs on the
// camera's capture goroutine before the next buffer is dequeued, so
// frame.Data is valid for the duration of the call only.
type FrameHandler interface {
	HandleFrame(cam CameraInfo, frame capture.Frame)
}

// FrameHandlerFunc adapts a function to a FrameHandler.
type FrameHandlerFunc func(cam CameraInfo, frame capture.Frame)

// HandleFrame calls f.
func (f FrameHandlerFunc) HandleFrame(cam CameraInfo, frame capture.Frame) { f(cam, frame) }

// Options configures a CameraMonitor.
type Options struct {
	DeviceDir string
	Capture   capture.Config
	Handler   FrameHandler
	EventBus  *events.Bus

	// Reactor replaces the epoll reactor the monitor would create.
	Reactor reactor.Reactor
	// HotplugOptions are appended after the monitor's own options.
	HotplugOptions []hotplug.Option
	// RetryDelay is the wait after a failed directory scan.
	RetryDelay time.Duration
}

type session struct {
	info CameraInfo
	dev  *capture.Device
}

// CameraMonitor discovers cameras and runs their capture loops.
type CameraMonitor struct {
	opts    Options
	reactor reactor.Reactor
	epoll   *reactor.Epoll // owned, nil when Options.Reactor was given
	hotplug *hotplug.Monitor
	bus     *events.Bus
	handler FrameHandler
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCameraMonitor creates the reactor and hotplug monitor. Nothing is
// opened until Start.
func NewCameraMonitor(opts Options) (*CameraMonitor, error) {
	m := &CameraMonitor{
		opts:     opts,
		bus:      opts.EventBus,
		handler:  opts.Handler,
		logger:   logging.GetLogger(logging.ModuleMonitor),
		sessions: make(map[string]*session),
	}
	if m.opts.RetryDelay <= 0 {
		m.opts.RetryDelay = time.Second
	}

	m.reactor = opts.Reactor
	if m.reactor == nil {
		ep, err := reactor.NewEpoll(reactor.WithLogger(m.logger))
		if err != nil {
			return nil, fmt.Errorf("create reactor: %w", err)
		}
		m.epoll = ep
		m.reactor = ep
	}

	hpOpts := []hotplug.Option{
		hotplug.WithLogger(logging.GetLogger(logging.ModuleHotplug)),
		hotplug.WithCaptureConfig(opts.Capture),
		hotplug.WithCaptureOptions(capture.WithLogger(logging.GetLogger(logging.ModuleCapture))),
		hotplug.WithEventHook(m.onRecord),
	}
	if opts.DeviceDir != "" {
		hpOpts = append(hpOpts, hotplug.WithDir(opts.DeviceDir))
	}
	hpOpts = append(hpOpts, opts.HotplugOptions...)

	hp, err := hotplug.NewMonitor(m.reactor, hpOpts...)
	if err != nil {
		if m.epoll != nil {
			_ = m.epoll.Close()
		}
		return nil, fmt.Errorf("create hotplug monitor: %w", err)
	}
	m.hotplug = hp
	return m, nil
}

// Start runs discovery until ctx is done or Stop is called.
func (m *CameraMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.discover(ctx)
}

// Stop cancels discovery and every capture loop, waits for them and
// releases the reactor.
func (m *CameraMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	if err := m.hotplug.Close(); err != nil && !errors.Is(err, hotplug.ErrClosed) {
		m.logger.Warn("Failed to close hotplug monitor", "error", err)
	}
	if m.epoll != nil {
		if err := m.epoll.Close(); err != nil && !errors.Is(err, reactor.ErrClosed) {
			m.logger.Warn("Failed to close reactor", "error", err)
		}
	}
	metrics.SetDevicesOpen(0)
	m.logger.Info("Camera monitor stopped")
}

func (m *CameraMonitor) discover(ctx context.Context) {
	defer m.wg.Done()
	m.logger.Info("Camera discovery started", "dir", m.deviceDir())

	for ctx.Err() == nil {
		dev, err := m.hotplug.Next(ctx)
		if err == nil {
			m.startSession(ctx, dev)
			continue
		}

		if ctx.Err() != nil || errors.Is(err, hotplug.ErrClosed) {
			return
		}

		var initErr *hotplug.InitError
		if errors.As(err, &initErr) {
			m.reject(initErr)
			continue
		}

		m.logger.Error("Camera discovery failed", "error", err, "retry_in", m.opts.RetryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.opts.RetryDelay):
		}
	}
}

func (m *CameraMonitor) deviceDir() string {
	if m.opts.DeviceDir != "" {
		return m.opts.DeviceDir
	}
	return hotplug.DevDir
}

func (m *CameraMonitor) onRecord(ev hotplug.Event) {
	action := "create"
	if ev.IsDelete() {
		action = "delete"
	}
	metrics.RecordHotplugEvent(action)
}

func (m *CameraMonitor) reject(initErr *hotplug.InitError) {
	code := string(capture.CodeOf(initErr))
	metrics.RecordInitFailure(code)
	if m.hotplug.PermissionDenied() {
		m.logger.Warn("Some video nodes could not be opened, check group membership", "dir", m.deviceDir())
	}
	m.logger.Warn("Camera rejected", "path", initErr.Path, "code", code, "error", initErr.Err)
	m.publish(events.DeviceDiscoveryEvent{
		DevicePath: initErr.Path,
		Action:     events.ActionRejected,
		Error:      initErr.Err.Error(),
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func (m *CameraMonitor) startSession(ctx context.Context, dev *capture.Device) {
	capability := dev.Capability()
	s := &session{
		dev: dev,
		info: CameraInfo{
			Name:        filepath.Base(dev.Path()),
			Path:        dev.Path(),
			SessionID:   uuid.NewString(),
			Driver:      capability.DriverName(),
			Card:        capability.CardName(),
			BusInfo:     capability.Bus(),
			Format:      dev.Format(),
			ConnectedAt: time.Now(),
		},
	}

	m.mu.Lock()
	m.sessions[s.info.Name] = s
	open := len(m.sessions)
	m.mu.Unlock()
	metrics.SetDevicesOpen(open)

	m.logger.Info("Camera connected",
		"path", s.info.Path,
		"session_id", s.info.SessionID,
		"card", s.info.Card,
		"format", s.info.FourCC(),
		"width", s.info.Format.Width,
		"height", s.info.Format.Height)
	m.publish(events.DeviceDiscoveryEvent{
		DevicePath: s.info.Path,
		DeviceName: s.info.Card,
		Driver:     s.info.Driver,
		BusInfo:    s.info.BusInfo,
		SessionID:  s.info.SessionID,
		Action:     events.ActionAdded,
		Timestamp:  s.info.ConnectedAt.Format(time.RFC3339),
	})

	m.wg.Add(1)
	go m.capture(ctx, s)
}

func (m *CameraMonitor) capture(ctx context.Context, s *session) {
	defer m.wg.Done()
	logger := m.logger.With("path", s.info.Path, "session_id", s.info.SessionID)

	var err error
	for {
		var frame capture.Frame
		frame, err = s.dev.NextFrame(ctx)
		if err != nil {
			break
		}

		metrics.RecordFrame(s.info.Path, frame.BytesUsed, frame.Timestamp)
		m.publish(events.FrameCapturedEvent{
			DevicePath: s.info.Path,
			SessionID:  s.info.SessionID,
			Sequence:   frame.Sequence,
			BytesUsed:  frame.BytesUsed,
			Timestamp:  frame.Timestamp.Format(time.RFC3339Nano),
		})
		if m.handler != nil {
			m.handler.HandleFrame(s.info, frame)
		}
	}

	if ctx.Err() == nil {
		code := string(capture.CodeOf(err))
		logger.Warn("Capture ended", "code", code, "error", err)
		metrics.RecordCaptureError(s.info.Path, code)
		m.publish(events.CaptureErrorEvent{
			DevicePath: s.info.Path,
			SessionID:  s.info.SessionID,
			Code:       code,
			Error:      err.Error(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
	}

	if closeErr := s.dev.Close(); closeErr != nil && !errors.Is(closeErr, capture.ErrClosed) {
		logger.Warn("Camera teardown reported errors", "error", closeErr)
	}
	m.endSession(s)

	// Discovery reopens the node if it is still present.
	if ctx.Err() == nil {
		m.hotplug.Forget(s.dev)
	}
}

// frameForgetter is implemented by handlers that keep per-camera state.
type frameForgetter interface {
	Forget(name string)
}

// endSession drops s. Per-camera state is only cleared while s is still
// the camera's session; a node that was recreated may already have a
// newer one.
func (m *CameraMonitor) endSession(s *session) {
	m.mu.Lock()
	current := m.sessions[s.info.Name] == s
	if current {
		delete(m.sessions, s.info.Name)
	}
	open := len(m.sessions)
	m.mu.Unlock()

	if current {
		if f, ok := m.handler.(frameForgetter); ok {
			f.Forget(s.info.Name)
		}
		metrics.DeleteCaptureMetrics(s.info.Path)
	}
	metrics.SetDevicesOpen(open)

	m.logger.Info("Camera disconnected", "path", s.info.Path, "session_id", s.info.SessionID)
	m.publish(events.DeviceDiscoveryEvent{
		DevicePath: s.info.Path,
		DeviceName: s.info.Card,
		Driver:     s.info.Driver,
		BusInfo:    s.info.BusInfo,
		SessionID:  s.info.SessionID,
		Action:     events.ActionRemoved,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func (m *CameraMonitor) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

// Cameras returns the running sessions sorted by node name.
func (m *CameraMonitor) Cameras() []CameraInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cams := make([]CameraInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		cams = append(cams, s.info)
	}
	sort.Slice(cams, func(i, j int) bool { return cams[i].Name < cams[j].Name })
	return cams
}

// Camera returns the running session for a node name such as "video0".
func (m *CameraMonitor) Camera(name string) (CameraInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	if !ok {
		return CameraInfo{}, false
	}
	return s.info, true
}

// PermissionDenied reports whether the last scan skipped a node for lack
// of permission.
func (m *CameraMonitor) PermissionDenied() bool {
	return m.hotplug.PermissionDenied()
}
