// Package models holds the request and response bodies of the HTTP API.
package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	Modified  bool   `json:"modified" example:"false" doc:"Built from a tree with uncommitted changes"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Camera models
type FormatData struct {
	Width        uint32 `json:"width" example:"1920" doc:"Frame width in pixels"`
	Height       uint32 `json:"height" example:"1080" doc:"Frame height in pixels"`
	PixelFormat  string `json:"pixel_format" example:"MJPG" doc:"Negotiated pixel format"`
	BytesPerLine uint32 `json:"bytes_per_line" example:"0" doc:"Line stride reported by the driver"`
	SizeImage    uint32 `json:"size_image" example:"4147200" doc:"Maximum frame size in bytes"`
}

type CameraData struct {
	Name        string     `json:"name" example:"video0" doc:"Device node name"`
	Path        string     `json:"path" example:"/dev/video0" doc:"Device node path"`
	SessionID   string     `json:"session_id" doc:"Identifier of the current capture session"`
	Card        string     `json:"card" example:"HD Webcam" doc:"Card name reported by the driver"`
	Driver      string     `json:"driver" example:"uvcvideo" doc:"Kernel driver"`
	BusInfo     string     `json:"bus_info" example:"usb-0000:00:14.0-1" doc:"Bus location"`
	Format      FormatData `json:"format" doc:"Negotiated capture format"`
	ConnectedAt time.Time  `json:"connected_at" doc:"When capture started"`
	Frames      uint64     `json:"frames" example:"1200" doc:"Frames captured in this session"`
	LastBytes   uint32     `json:"last_bytes" example:"81234" doc:"Size of the most recent frame"`
	LastFrameAt *time.Time `json:"last_frame_at,omitempty" doc:"Timestamp of the most recent frame"`
}

type CameraListData struct {
	Cameras          []CameraData `json:"cameras" doc:"Cameras currently capturing"`
	Count            int          `json:"count" example:"1" doc:"Number of cameras"`
	PermissionDenied bool         `json:"permission_denied" doc:"Whether some video nodes could not be opened for lack of permission"`
}

type CamerasResponse struct {
	Body CameraListData
}

type CameraResponse struct {
	Body CameraData
}

// SnapshotResponse carries the most recent frame of a camera.
type SnapshotResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Sequence     string `header:"X-Frame-Sequence"`
	Body         []byte
}

// Device models
type DeviceData struct {
	DevicePath string   `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	DeviceName string   `json:"device_name" example:"HD Webcam" doc:"Card name"`
	DeviceID   string   `json:"device_id" example:"usb-046d_HD_Webcam-video-index0" doc:"Stable device identifier"`
	Driver     string   `json:"driver" example:"uvcvideo" doc:"Kernel driver"`
	Caps       uint32   `json:"caps" doc:"Device capability flags"`
	Formats    []string `json:"formats" example:"[\"MJPG\",\"YUYV\"]" doc:"Pixel formats the device offers"`
	Capturing  bool     `json:"capturing" doc:"Whether camrig is capturing from this node"`
}

type DeviceListData struct {
	Devices []DeviceData `json:"devices" doc:"Video4Linux nodes"`
	Count   int          `json:"count" example:"2" doc:"Number of nodes"`
}

type DevicesResponse struct {
	Body DeviceListData
}
