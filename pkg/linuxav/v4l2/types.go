//go:build linux

package v4l2

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	BusInfo    string
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Capability flags.
const (
	CapVideoCapture       = 0x00000001
	CapVideoOutput        = 0x00000002
	CapVideoOverlay       = 0x00000004
	CapVBICapture         = 0x00000010
	CapVideoCaptureMplane = 0x00001000
	CapReadWrite          = 0x01000000
	CapStreaming          = 0x04000000
	CapDeviceCaps         = 0x80000000
)

// Format flags.
const (
	FmtFlagCompressed = 0x0001
	FmtFlagEmulated   = 0x0002
)

// Buffer types.
const (
	BufTypeVideoCapture       = 1
	BufTypeVideoOutput        = 2
	BufTypeVideoOverlay       = 3
	BufTypeVBICapture         = 4
	BufTypeVBIOutput          = 5
	BufTypeSlicedVBICapture   = 6
	BufTypeSlicedVBIOutput    = 7
	BufTypeVideoOutputOverlay = 8
	BufTypeVideoCaptureMplane = 9
	BufTypeVideoOutputMplane  = 10
	BufTypeSDRCapture         = 11
	BufTypeSDROutput          = 12
)

// Memory exchange modes.
const (
	MemoryMMap    = 1
	MemoryUserPtr = 2
	MemoryOverlay = 3
	MemoryDMABuf  = 4
)

// Field orders.
const (
	FieldAny        = 0
	FieldNone       = 1
	FieldTop        = 2
	FieldBottom     = 3
	FieldInterlaced = 4
)

// Colorspaces.
const (
	ColorspaceDefault   = 0
	ColorspaceSMPTE170M = 1
	ColorspaceREC709    = 3
	ColorspaceJPEG      = 7
	ColorspaceSRGB      = 8
)

// Buffer flags.
const (
	BufFlagMapped   = 0x00000001
	BufFlagQueued   = 0x00000002
	BufFlagDone     = 0x00000004
	BufFlagKeyframe = 0x00000008
	BufFlagError    = 0x00000040
)

// FourCC packs four characters into a little-endian pixel format code.
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Common pixel formats.
var (
	PixFmtYUYV  = FourCC('Y', 'U', 'Y', 'V')
	PixFmtMJPEG = FourCC('M', 'J', 'P', 'G')
	PixFmtJPEG  = FourCC('J', 'P', 'E', 'G')
	PixFmtH264  = FourCC('H', '2', '6', '4')
	PixFmtHEVC  = FourCC('H', 'E', 'V', 'C')
	PixFmtNV12  = FourCC('N', 'V', '1', '2')
)

// Frame size types.
const (
	frmsizeTypeDiscrete   = 1
	frmsizeTypeContinuous = 2
	frmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	frmivalTypeDiscrete   = 1
	frmivalTypeContinuous = 2
	frmivalTypeStepwise   = 3
)
