package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hotplugDevicesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "hotplug",
		Name:      "devices_open",
		Help:      "Cameras with a running capture session",
	})

	hotplugEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hotplug",
		Name:      "events_total",
		Help:      "Video node change records applied",
	}, []string{"action"})

	hotplugInitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hotplug",
		Name:      "init_failures_total",
		Help:      "Nodes that opened but failed capture initialization",
	}, []string{"code"})

	videoNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "v4l2",
		Name:      "video_nodes",
		Help:      "Video nodes registered with the kernel",
	})
)

// SetDevicesOpen sets the number of running capture sessions.
func SetDevicesOpen(n int) {
	hotplugDevicesOpen.Set(float64(n))
}

// RecordHotplugEvent counts one applied change record.
func RecordHotplugEvent(action string) {
	hotplugEvents.WithLabelValues(action).Inc()
}

// RecordInitFailure counts a node rejected during initialization.
func RecordInitFailure(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	hotplugInitFailures.WithLabelValues(code).Inc()
}

// SetVideoNodes sets the number of video nodes the kernel reports.
func SetVideoNodes(n int) {
	videoNodes.Set(float64(n))
}
