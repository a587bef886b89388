package events

// Event type constants for kelindar/event.
const (
	TypeDeviceDiscovery uint32 = iota + 1
	TypeCaptureError
	TypeFrameCaptured
	TypeSnapshotSaved
)

// Discovery actions.
const (
	ActionAdded    = "added"
	ActionRemoved  = "removed"
	ActionRejected = "rejected"
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceDiscoveryEvent represents a camera appearing, disappearing or
// failing initialization.
type DeviceDiscoveryEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	DeviceName string `json:"device_name,omitempty" example:"USB Camera" doc:"Card name reported by the driver"`
	Driver     string `json:"driver,omitempty" example:"uvcvideo" doc:"Driver name"`
	BusInfo    string `json:"bus_info,omitempty" example:"usb-0000:00:14.0-1" doc:"Bus location"`
	SessionID  string `json:"session_id,omitempty" doc:"Capture session identifier"`
	Action     string `json:"action" example:"added" doc:"Action type: added, removed, rejected"`
	Error      string `json:"error,omitempty" doc:"Initialization failure, for rejected devices"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// CaptureErrorEvent represents a capture session that ended with an error.
type CaptureErrorEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	SessionID  string `json:"session_id" doc:"Capture session identifier"`
	Code       string `json:"code" example:"IO_FAILURE" doc:"Error code"`
	Error      string `json:"error" example:"dequeue buffer: no such device" doc:"Detailed error description"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// FrameCapturedEvent is published for every completed buffer. It carries
// metadata only.
type FrameCapturedEvent struct {
	DevicePath string `json:"device_path"`
	SessionID  string `json:"session_id"`
	Sequence   uint32 `json:"sequence"`
	BytesUsed  uint32 `json:"bytes_used"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// SnapshotSavedEvent is published when a frame is written to disk.
type SnapshotSavedEvent struct {
	DevicePath string `json:"device_path"`
	File       string `json:"file" example:"/var/lib/camrig/video0.jpg"`
	Bytes      int    `json:"bytes"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for SnapshotSavedEvent.
func (e SnapshotSavedEvent) Type() uint32 { return TypeSnapshotSaved }
