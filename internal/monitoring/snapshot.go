//go:build linux

package monitoring

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/camrig/internal/events"
	"github.com/smazurov/camrig/internal/logging"
	"github.com/smazurov/camrig/pkg/linuxav/capture"
	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// ErrNoSnapshot is returned by Latest before a camera has delivered a frame.
var ErrNoSnapshot = errors.New("no snapshot available")

// Snapshot is the last frame kept for a camera.
type Snapshot struct {
	Camera      string
	ContentType string
	Data        []byte
	Sequence    uint32
	CapturedAt  time.Time
}

// SnapshotHandler keeps the most recent frame of every camera and, when a
// directory is set, writes it to <dir>/<camera>.jpg at most once per
// interval.
type SnapshotHandler struct {
	dir      string
	interval time.Duration
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	latest  map[string]Snapshot
	written map[string]time.Time
}

// NewSnapshotHandler creates a handler. An empty dir keeps frames in
// memory only.
func NewSnapshotHandler(dir string, interval time.Duration, bus *events.Bus) *SnapshotHandler {
	return &SnapshotHandler{
		dir:      dir,
		interval: interval,
		bus:      bus,
		logger:   logging.GetLogger(logging.ModuleMonitor),
		now:      time.Now,
		latest:   make(map[string]Snapshot),
		written:  make(map[string]time.Time),
	}
}

// HandleFrame copies the frame and writes it out when the interval for
// that camera has elapsed.
func (s *SnapshotHandler) HandleFrame(cam CameraInfo, frame capture.Frame) {
	snap := Snapshot{
		Camera:      cam.Name,
		ContentType: contentType(cam.Format.PixelFormat),
		Data:        frame.Clone().Data,
		Sequence:    frame.Sequence,
		CapturedAt:  frame.Timestamp,
	}

	now := s.now()
	s.mu.Lock()
	s.latest[cam.Name] = snap
	due := s.dir != "" && now.Sub(s.written[cam.Name]) >= s.interval
	if due {
		s.written[cam.Name] = now
	}
	s.mu.Unlock()

	if !due {
		return
	}

	file, err := s.write(snap)
	if err != nil {
		s.logger.Warn("Failed to write snapshot", "camera", cam.Name, "error", err)
		return
	}
	s.logger.Debug("Snapshot written", "camera", cam.Name, "file", file, "bytes", len(snap.Data))
	if s.bus != nil {
		s.bus.Publish(events.SnapshotSavedEvent{
			DevicePath: cam.Path,
			File:       file,
			Bytes:      len(snap.Data),
			Timestamp:  now.Format(time.RFC3339),
		})
	}
}

// Latest returns the most recent frame for a camera name.
func (s *SnapshotHandler) Latest(name string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[name]
	if !ok {
		return Snapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

// Forget drops the kept frame for a camera.
func (s *SnapshotHandler) Forget(name string) {
	s.mu.Lock()
	delete(s.latest, name)
	delete(s.written, name)
	s.mu.Unlock()
}

func (s *SnapshotHandler) write(snap Snapshot) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := snap.Camera + extension(snap.ContentType)
	file := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(snap.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return "", fmt.Errorf("rename to %s: %w", file, err)
	}
	return file, nil
}

func contentType(pixelFormat uint32) string {
	switch pixelFormat {
	case v4l2.PixFmtMJPEG, v4l2.PixFmtJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func extension(contentType string) string {
	if contentType == "image/jpeg" {
		return ".jpg"
	}
	return ".raw"
}
