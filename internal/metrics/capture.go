// Package metrics provides Prometheus metrics for capture sessions and
// hotplug discovery.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camrig"

var (
	captureFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Completed capture buffers",
	}, []string{"device"})

	captureFrameBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frame_bytes",
		Help:      "Payload size of the most recent buffer",
	}, []string{"device"})

	captureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "errors_total",
		Help:      "Capture sessions ended by an error",
	}, []string{"device", "code"})

	// Local cache for the status API.
	captureCache   = make(map[string]*CaptureStats)
	captureCacheMu sync.RWMutex
)

// CaptureStats holds current values for one device.
type CaptureStats struct {
	Frames    uint64
	LastBytes uint32
	LastFrame time.Time
	Errors    uint64
}

// RecordFrame counts one completed buffer of n bytes.
func RecordFrame(device string, n uint32, at time.Time) {
	captureFrames.WithLabelValues(device).Inc()
	captureFrameBytes.WithLabelValues(device).Set(float64(n))
	updateCache(device, func(s *CaptureStats) {
		s.Frames++
		s.LastBytes = n
		s.LastFrame = at
	})
}

// RecordCaptureError counts a session that ended with code.
func RecordCaptureError(device, code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	captureErrors.WithLabelValues(device, code).Inc()
	updateCache(device, func(s *CaptureStats) { s.Errors++ })
}

// DeleteCaptureMetrics removes the per-device gauges and cached values.
// Counters are kept so that rates survive a reconnect.
func DeleteCaptureMetrics(device string) {
	captureFrameBytes.DeleteLabelValues(device)

	captureCacheMu.Lock()
	delete(captureCache, device)
	captureCacheMu.Unlock()
}

// GetCaptureStats returns current values for a device.
func GetCaptureStats(device string) *CaptureStats {
	captureCacheMu.RLock()
	defer captureCacheMu.RUnlock()
	if s, ok := captureCache[device]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// GetAllCaptureStats returns values for every device seen since its last
// DeleteCaptureMetrics.
func GetAllCaptureStats() map[string]*CaptureStats {
	captureCacheMu.RLock()
	defer captureCacheMu.RUnlock()
	result := make(map[string]*CaptureStats, len(captureCache))
	for device, s := range captureCache {
		dup := *s
		result[device] = &dup
	}
	return result
}

func updateCache(device string, update func(*CaptureStats)) {
	captureCacheMu.Lock()
	defer captureCacheMu.Unlock()
	s, ok := captureCache[device]
	if !ok {
		s = &CaptureStats{}
		captureCache[device] = s
	}
	update(s)
}
