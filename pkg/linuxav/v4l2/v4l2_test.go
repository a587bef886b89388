//go:build linux

package v4l2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

// TestErrnoComparison verifies that errors.Is works with the unix.Errno values
// Ioctl returns, which the capture and enumeration paths branch on.
func TestErrnoComparison(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "EAGAIN matches EAGAIN",
			err:      unix.EAGAIN,
			target:   unix.EAGAIN,
			expected: true,
		},
		{
			name:     "EAGAIN matches EWOULDBLOCK",
			err:      unix.EAGAIN,
			target:   unix.EWOULDBLOCK,
			expected: true,
		},
		{
			name:     "EINVAL matches EINVAL",
			err:      unix.EINVAL,
			target:   unix.EINVAL,
			expected: true,
		},
		{
			name:     "ENOTTY matches ENOTTY",
			err:      unix.ENOTTY,
			target:   unix.ENOTTY,
			expected: true,
		},
		{
			name:     "ENODEV does not match EAGAIN",
			err:      unix.ENODEV,
			target:   unix.EAGAIN,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errors.Is(tt.err, tt.target)
			if result != tt.expected {
				t.Errorf("errors.Is(%v, %v) = %v, want %v",
					tt.err, tt.target, result, tt.expected)
			}
		})
	}
}

func TestCodeRoundTripAllSizes(t *testing.T) {
	dirs := []Dir{DirNone, DirWrite, DirRead, DirReadWrite}
	tags := []uint8{0, 'V', 'U', 0xff}
	nrs := []uint8{0, 1, 17, 0x7f, 0xff}

	for _, dir := range dirs {
		for _, typ := range tags {
			for _, nr := range nrs {
				for size := uintptr(0); size <= MaxSize; size++ {
					code, err := NewCode(dir, typ, nr, size)
					if err != nil {
						t.Fatalf("NewCode(%v, %d, %d, %d) error: %v", dir, typ, nr, size, err)
					}
					if code.Dir() != dir || code.Type() != typ || code.Nr() != nr || uintptr(code.Size()) != size {
						t.Fatalf("round trip of (%v, %d, %d, %d) gave %v", dir, typ, nr, size, code)
					}
				}
			}
		}
	}
}

func TestCodeRoundTripAllTagsAndNumbers(t *testing.T) {
	sizes := []uintptr{0, 1, 4, 88, 208, 4096, MaxSize}

	for _, dir := range []Dir{DirNone, DirWrite, DirRead, DirReadWrite} {
		for typ := 0; typ <= 0xff; typ++ {
			for nr := 0; nr <= 0xff; nr++ {
				for _, size := range sizes {
					code, err := NewCode(dir, uint8(typ), uint8(nr), size)
					if err != nil {
						t.Fatalf("NewCode error: %v", err)
					}
					if code.Dir() != dir || int(code.Type()) != typ || int(code.Nr()) != nr || uintptr(code.Size()) != size {
						t.Fatalf("round trip of (%v, %d, %d, %d) gave %v", dir, typ, nr, size, code)
					}
				}
			}
		}
	}
}

func TestNewCodeRejectsOutOfRange(t *testing.T) {
	if _, err := NewCode(DirRead, 'V', 0, MaxSize+1); !errors.Is(err, errSizeTooBig) {
		t.Errorf("size %d: got %v, want errSizeTooBig", MaxSize+1, err)
	}
	if _, err := NewCode(Dir(4), 'V', 0, 4); !errors.Is(err, errInvalidDir) {
		t.Errorf("dir 4: got %v, want errInvalidDir", err)
	}
}

func TestHelpersMatchNewCode(t *testing.T) {
	tests := []struct {
		name string
		got  Code
		dir  Dir
	}{
		{"IO", IO('V', 3), DirNone},
		{"IOR", IOR('V', 3, 104), DirRead},
		{"IOW", IOW('V', 3, 104), DirWrite},
		{"IOWR", IOWR('V', 3, 104), DirReadWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := uintptr(104)
			if tt.dir == DirNone {
				size = 0
			}
			want, err := NewCode(tt.dir, 'V', 3, size)
			if err != nil {
				t.Fatal(err)
			}
			if tt.got != want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, want)
			}
		})
	}
}

// TestCodesMatchKernelABI pins the composed codes to the values in the
// kernel headers for the running pointer size.
func TestCodesMatchKernelABI(t *testing.T) {
	is64 := unsafe.Sizeof(uintptr(0)) == 8

	tests := []struct {
		name   string
		code   Code
		want   uint32
		want32 uint32 // 32-bit ARM
	}{
		{"QUERYCAP", VidiocQueryCap, 0x80685600, 0x80685600},
		{"S_FMT", VidiocSetFormat, 0xc0d05605, 0xc0cc5605},
		{"REQBUFS", VidiocRequestBuffers, 0xc0145608, 0xc0145608},
		{"QUERYBUF", VidiocQueryBuffer, 0xc0585609, 0xc0445609},
		{"QBUF", VidiocQueueBuffer, 0xc058560f, 0xc044560f},
		{"DQBUF", VidiocDequeueBuffer, 0xc0585611, 0xc0445611},
		{"STREAMON", VidiocStreamOn, 0x40045612, 0x40045612},
		{"STREAMOFF", VidiocStreamOff, 0x40045613, 0x40045613},
		{"ENUM_FMT", VidiocEnumFmt, 0xc0405602, 0xc0405602},
		{"ENUM_FRAMESIZES", VidiocEnumFramesizes, 0xc02c564a, 0xc02c564a},
		{"ENUM_FRAMEINTERVALS", VidiocEnumFrameintervals, 0xc034564b, 0xc034564b},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want
			if !is64 {
				want = tt.want32
			}
			if uint32(tt.code) != want {
				t.Errorf("VIDIOC_%s = 0x%08x, want 0x%08x", tt.name, uint32(tt.code), want)
			}
		})
	}
}

func TestBufferOffset(t *testing.T) {
	var b Buffer
	b.SetOffset(0xdeadb000)
	if got := b.Offset(); got != 0xdeadb000 {
		t.Errorf("Offset() = 0x%x, want 0xdeadb000", got)
	}

	// The offset occupies the first four bytes of the union.
	raw := (*[4]byte)(unsafe.Pointer(&b.m))
	if got := binary.NativeEndian.Uint32(raw[:]); got != 0xdeadb000 {
		t.Errorf("union head = 0x%x, want 0xdeadb000", got)
	}
}

func TestBufferTime(t *testing.T) {
	b := Buffer{Timestamp: unix.NsecToTimeval(1_700_000_000_250_000_000)}
	got := b.Time()
	if got.Unix() != 1_700_000_000 || got.Nanosecond() != 250_000_000 {
		t.Errorf("Time() = %v", got)
	}
}

func TestFormatUnionViews(t *testing.T) {
	var f Format
	f.Type = BufTypeVideoCapture
	pix := f.Pix()
	pix.Width = 1280
	pix.Height = 720
	pix.PixelFormat = PixFmtMJPEG

	if f.fmt.raw[0] != 0x00 || f.fmt.raw[1] != 0x05 {
		t.Errorf("width bytes = % x, want 00 05", f.fmt.raw[:2])
	}
	if got := f.Win().W.Left; got != 1280 {
		t.Errorf("overlay view of width = %d, want 1280", got)
	}
	if got := f.VBI().SamplingRate; got != 1280 {
		t.Errorf("vbi view of width = %d, want 1280", got)
	}
	if uintptr(unsafe.Pointer(pix))%unsafe.Alignof(uintptr(0)) != 0 {
		t.Error("format union is not pointer aligned")
	}
}

func TestCapability(t *testing.T) {
	var c Capability
	copy(c.Driver[:], "uvcvideo")
	copy(c.Card[:], "HD Webcam: HD Webcam")
	copy(c.BusInfo[:], "usb-0000:00:14.0-1")
	c.Capabilities = CapVideoCapture | CapStreaming | CapDeviceCaps
	c.DeviceCaps = CapVideoCapture | CapStreaming

	if got := c.DriverName(); got != "uvcvideo" {
		t.Errorf("DriverName() = %q", got)
	}
	if got := c.CardName(); got != "HD Webcam: HD Webcam" {
		t.Errorf("CardName() = %q", got)
	}
	if got := c.Bus(); got != "usb-0000:00:14.0-1" {
		t.Errorf("Bus() = %q", got)
	}
	if !c.CanCapture() {
		t.Error("CanCapture() = false, want true")
	}

	// A metadata node of the same device reports no capture in device_caps.
	c.DeviceCaps = 0x00800000 | CapStreaming
	if c.CanCapture() {
		t.Error("CanCapture() = true for metadata node")
	}

	// Without CapDeviceCaps the global set applies.
	c.Capabilities = CapVideoCapture
	if c.EffectiveCaps() != CapVideoCapture {
		t.Errorf("EffectiveCaps() = 0x%x", c.EffectiveCaps())
	}
	if c.CanCapture() {
		t.Error("CanCapture() = true without streaming")
	}
}

func TestRetryOnInterrupt(t *testing.T) {
	calls := 0
	err := RetryOnInterrupt(func() error {
		calls++
		if calls < 3 {
			return unix.EINTR
		}
		return unix.EAGAIN
	})
	if !errors.Is(err, unix.EAGAIN) {
		t.Errorf("err = %v, want EAGAIN", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	if err := RetryOnInterrupt(func() error { return nil }); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestIoctlBadDescriptor(t *testing.T) {
	var c Capability
	err := Ioctl(-1, VidiocQueryCap, unsafe.Pointer(&c))
	if !errors.Is(err, unix.EBADF) {
		t.Errorf("Ioctl(-1) = %v, want EBADF", err)
	}
}

func TestFourCC(t *testing.T) {
	if got := FourCC('M', 'J', 'P', 'G'); got != 0x47504A4D {
		t.Errorf("FourCC(MJPG) = 0x%08X, want 0x47504A4D", got)
	}
	if got := FormatFourCC(FourCC('Y', 'U', 'Y', 'V')); got != "YUYV" {
		t.Errorf("FormatFourCC round trip = %q", got)
	}
}

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   PixFmtYUYV,
			expected: "YUYV",
		},
		{
			name:     "MJPEG format",
			format:   PixFmtMJPEG,
			expected: "MJPG",
		},
		{
			name:     "H264 format",
			format:   PixFmtH264,
			expected: "H264",
		},
		{
			name:     "HEVC format",
			format:   PixFmtHEVC,
			expected: "HEVC",
		},
		{
			name:     "NV12 format",
			format:   PixFmtNV12,
			expected: "NV12",
		},
		{
			name:     "null bytes",
			format:   0x00000000,
			expected: "\x00\x00\x00\x00",
		},
		{
			name:     "all 0xFF bytes",
			format:   0xFFFFFFFF,
			expected: "\xFF\xFF\xFF\xFF",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name        string
		framerate   Framerate
		expectedFPS float64
	}{
		{
			name:        "60 fps (1/60)",
			framerate:   Framerate{Numerator: 1, Denominator: 60},
			expectedFPS: 60.0,
		},
		{
			name:        "30 fps (1/30)",
			framerate:   Framerate{Numerator: 1, Denominator: 30},
			expectedFPS: 30.0,
		},
		{
			name:        "29.97 fps (1001/30000)",
			framerate:   Framerate{Numerator: 1001, Denominator: 30000},
			expectedFPS: 30000.0 / 1001.0, // ~29.97
		},
		{
			name:        "25 fps (1/25)",
			framerate:   Framerate{Numerator: 1, Denominator: 25},
			expectedFPS: 25.0,
		},
		{
			name:        "zero numerator returns 0",
			framerate:   Framerate{Numerator: 0, Denominator: 60},
			expectedFPS: 0.0,
		},
		{
			name:        "zero denominator with non-zero numerator",
			framerate:   Framerate{Numerator: 1, Denominator: 0},
			expectedFPS: 0.0, // Division by numerator=1 gives 0/1=0
		},
		{
			name:        "both zero",
			framerate:   Framerate{Numerator: 0, Denominator: 0},
			expectedFPS: 0.0,
		},
		{
			name:        "large values",
			framerate:   Framerate{Numerator: 1000000, Denominator: 60000000},
			expectedFPS: 60.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.framerate.FPS()
			// Use approximate comparison for floating point
			if math.Abs(result-tt.expectedFPS) > 0.001 {
				t.Errorf("Framerate{%d, %d}.FPS() = %f, want %f",
					tt.framerate.Numerator, tt.framerate.Denominator,
					result, tt.expectedFPS)
			}
		})
	}
}

func TestStepwiseResolutions(t *testing.T) {
	got := stepwiseResolutions(v4l2FrmsizeStepwise{
		minWidth: 320, maxWidth: 1280, stepWidth: 160,
		minHeight: 240, maxHeight: 720, stepHeight: 240,
	})
	want := []Resolution{{320, 240}, {640, 480}, {1280, 720}}
	if !slices.Equal(got, want) {
		t.Errorf("stepwiseResolutions() = %v, want %v", got, want)
	}
}

func TestStepwiseResolutionsContinuous(t *testing.T) {
	got := stepwiseResolutions(v4l2FrmsizeStepwise{
		minWidth: 1, maxWidth: 1920, stepWidth: 1,
		minHeight: 1, maxHeight: 1080, stepHeight: 1,
	})
	if len(got) != 8 || got[len(got)-1] != (Resolution{1920, 1080}) {
		t.Errorf("stepwiseResolutions() = %v, want the 8 common sizes up to 1920x1080", got)
	}
}

func TestEnumerateStopsOnEINVAL(t *testing.T) {
	var seen []uint32
	err := enumerate(func(i uint32) (bool, error) {
		if i == 3 {
			return false, fmt.Errorf("index %d: %w", i, unix.EINVAL)
		}
		seen = append(seen, i)
		return true, nil
	})
	if err != nil {
		t.Fatalf("enumerate() error: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("visited %v, want 0..2", seen)
	}
}

func TestEnumeratePropagatesErrors(t *testing.T) {
	err := enumerate(func(uint32) (bool, error) { return false, unix.EIO })
	if !errors.Is(err, unix.EIO) {
		t.Errorf("enumerate() = %v, want EIO", err)
	}
}

func TestDescribeMissingDevice(t *testing.T) {
	if _, err := Describe("/dev/camrig-does-not-exist"); !errors.Is(err, unix.ENOENT) {
		t.Errorf("Describe() = %v, want ENOENT", err)
	}
}
