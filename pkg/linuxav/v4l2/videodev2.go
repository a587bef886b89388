//go:build linux

package v4l2

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Capability mirrors struct v4l2_capability (104 bytes).
type Capability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

// DriverName returns the driver name.
func (c *Capability) DriverName() string { return cstr(c.Driver[:]) }

// CardName returns the human-readable device name.
func (c *Capability) CardName() string { return cstr(c.Card[:]) }

// Bus returns the bus location of the device.
func (c *Capability) Bus() string { return cstr(c.BusInfo[:]) }

// EffectiveCaps returns the capabilities of this node, preferring the
// per-node set when the driver reports one.
func (c *Capability) EffectiveCaps() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// CanCapture reports whether the node supports single-planar video capture
// through the streaming I/O method.
func (c *Capability) CanCapture() bool {
	caps := c.EffectiveCaps()
	return caps&CapVideoCapture != 0 && caps&CapStreaming != 0
}

// PixFormat mirrors struct v4l2_pix_format (48 bytes), the capture variant
// of the Format union.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

// Rect mirrors struct v4l2_rect.
type Rect struct {
	Left   int32
	Top    int32
	Width  uint32
	Height uint32
}

// Window mirrors struct v4l2_window, the overlay variant of the Format union.
// The clip list and bitmap are kernel pointers; they are kept as zero words
// and never dereferenced.
type Window struct {
	W           Rect
	Field       uint32
	ChromaKey   uint32
	clips       uintptr
	ClipCount   uint32
	bitmap      uintptr
	GlobalAlpha uint8
}

// VBIFormat mirrors struct v4l2_vbi_format (44 bytes).
type VBIFormat struct {
	SamplingRate   uint32
	Offset         uint32
	SamplesPerLine uint32
	SampleFormat   uint32
	Start          [2]int32
	Count          [2]uint32
	Flags          uint32
	Reserved       [2]uint32
}

// formatUnion is the 200-byte fmt union. The zero-length array gives it
// pointer alignment, as the kernel's union has through v4l2_window.
type formatUnion struct {
	_   [0]uintptr
	raw [200]byte
}

// Format mirrors struct v4l2_format.
type Format struct {
	Type uint32
	fmt  formatUnion
}

// Pix returns the capture variant of the union.
func (f *Format) Pix() *PixFormat { return (*PixFormat)(unsafe.Pointer(&f.fmt.raw[0])) }

// Win returns the overlay variant of the union.
func (f *Format) Win() *Window { return (*Window)(unsafe.Pointer(&f.fmt.raw[0])) }

// VBI returns the raw VBI variant of the union.
func (f *Format) VBI() *VBIFormat { return (*VBIFormat)(unsafe.Pointer(&f.fmt.raw[0])) }

// RequestBuffers mirrors struct v4l2_requestbuffers (20 bytes).
type RequestBuffers struct {
	Count        uint32
	Type         uint32
	Memory       uint32
	Capabilities uint32
	Flags        uint8
	Reserved     [3]uint8
}

// Timecode mirrors struct v4l2_timecode (16 bytes).
type Timecode struct {
	Type     uint32
	Flags    uint32
	Frames   uint8
	Seconds  uint8
	Minutes  uint8
	Hours    uint8
	Userbits [4]uint8
}

// Buffer mirrors struct v4l2_buffer.
type Buffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	Timestamp unix.Timeval
	Timecode  Timecode
	Sequence  uint32
	Memory    uint32
	m         uintptr // union { offset; userptr; planes; fd }
	Length    uint32
	Reserved2 uint32
	RequestFD int32
}

// Offset returns the mapping offset of a memory-mapped buffer.
func (b *Buffer) Offset() uint32 { return *(*uint32)(unsafe.Pointer(&b.m)) }

// SetOffset stores the mapping offset of a memory-mapped buffer.
func (b *Buffer) SetOffset(off uint32) { *(*uint32)(unsafe.Pointer(&b.m)) = off }

// Time returns the driver timestamp of the buffer.
func (b *Buffer) Time() time.Time { return time.Unix(b.Timestamp.Unix()) }

// v4l2Fmtdesc has size 64 bytes.
type v4l2Fmtdesc struct {
	index       uint32    // offset 0
	typ         uint32    // offset 4
	flags       uint32    // offset 8
	description [32]byte  // offset 12
	pixelformat uint32    // offset 44
	mbusCode    uint32    // offset 48
	reserved    [3]uint32 // offset 52
}

// v4l2FrmsizeDiscrete has size 8 bytes.
type v4l2FrmsizeDiscrete struct {
	width  uint32
	height uint32
}

// v4l2FrmsizeStepwise has size 24 bytes.
type v4l2FrmsizeStepwise struct {
	minWidth   uint32
	maxWidth   uint32
	stepWidth  uint32
	minHeight  uint32
	maxHeight  uint32
	stepHeight uint32
}

// v4l2Frmsizeenum has size 44 bytes.
type v4l2Frmsizeenum struct {
	index       uint32              // offset 0
	pixelFormat uint32              // offset 4
	typ         uint32              // offset 8
	discrete    v4l2FrmsizeDiscrete // offset 12 (union with stepwise)
	_           [16]byte            // padding for stepwise
	reserved    [2]uint32           // offset 36
}

// v4l2Fract has size 8 bytes.
type v4l2Fract struct {
	numerator   uint32
	denominator uint32
}

// v4l2Frmivalenum has size 52 bytes.
type v4l2Frmivalenum struct {
	index       uint32    // offset 0
	pixelFormat uint32    // offset 4
	width       uint32    // offset 8
	height      uint32    // offset 12
	typ         uint32    // offset 16
	discrete    v4l2Fract // offset 20 (union with stepwise)
	_           [16]byte  // padding for stepwise
	reserved    [2]uint32 // offset 44
}
