//go:build linux

package capture

import "time"

// Config is the requested capture configuration. Zero Width and Height
// let the driver pick; zero PixelFormat means MJPEG.
type Config struct {
	Width       uint32
	Height      uint32
	PixelFormat uint32
}

// Negotiated is the format the driver accepted. It does not change for the
// life of a Device.
type Negotiated struct {
	Width        uint32
	Height       uint32
	BytesPerLine uint32
	SizeImage    uint32
	PixelFormat  uint32
	Field        uint32
	Colorspace   uint32
}

// Frame is one completed capture buffer.
//
// Data aliases the memory shared with the driver. The buffer has already
// been handed back to the driver for the next capture when the Frame is
// returned, so Data is only meaningful until the next poll; use Clone to
// keep it.
type Frame struct {
	Data      []byte
	BytesUsed uint32
	Sequence  uint32
	Timestamp time.Time
	Index     uint32
}

// Clone returns a copy of f whose Data no longer aliases the driver buffer.
func (f Frame) Clone() Frame {
	f.Data = append([]byte(nil), f.Data...)
	return f
}
