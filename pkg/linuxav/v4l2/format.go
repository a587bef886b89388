//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FormatDescription is one pixel format with the frame sizes it supports
// and, per size, the frame rates.
type FormatDescription struct {
	FormatInfo
	Sizes []SizeDescription
}

// SizeDescription is one frame size and its frame rates.
type SizeDescription struct {
	Resolution
	Framerates []Framerate
}

// Describe opens devicePath once and enumerates every format, size and
// frame interval the driver reports.
func Describe(devicePath string) ([]FormatDescription, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFD(fd)

	formats, err := EnumFormats(fd)
	if err != nil {
		return nil, err
	}

	out := make([]FormatDescription, 0, len(formats))
	for _, f := range formats {
		desc := FormatDescription{FormatInfo: f}
		sizes, err := EnumResolutions(fd, f.PixelFormat)
		if err != nil {
			return nil, err
		}
		for _, size := range sizes {
			rates, err := EnumFramerates(fd, f.PixelFormat, size.Width, size.Height)
			if err != nil {
				return nil, err
			}
			desc.Sizes = append(desc.Sizes, SizeDescription{Resolution: size, Framerates: rates})
		}
		out = append(out, desc)
	}
	return out, nil
}

// GetFormats returns all supported pixel formats for a device.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer closeFD(fd)
	return EnumFormats(fd)
}

// EnumFormats lists the capture pixel formats of an open device.
func EnumFormats(fd int) ([]FormatInfo, error) {
	var formats []FormatInfo
	err := enumerate(func(i uint32) (bool, error) {
		desc := v4l2Fmtdesc{index: i, typ: BufTypeVideoCapture}
		if err := Ioctl(fd, VidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
			return false, fmt.Errorf("failed to enumerate format %d: %w", i, err)
		}
		formats = append(formats, FormatInfo{
			PixelFormat: desc.pixelformat,
			FormatName:  cstr(desc.description[:]),
			Emulated:    desc.flags&FmtFlagEmulated != 0,
		})
		return true, nil
	})
	return formats, err
}

// EnumResolutions lists the frame sizes of an open device for pixelFormat.
// Stepwise and continuous ranges are reduced to the common sizes they
// contain. Drivers without size enumeration yield an empty list.
func EnumResolutions(fd int, pixelFormat uint32) ([]Resolution, error) {
	var resolutions []Resolution
	err := enumerate(func(i uint32) (bool, error) {
		frmsize := v4l2Frmsizeenum{index: i, pixelFormat: pixelFormat}
		if err := Ioctl(fd, VidiocEnumFramesizes, unsafe.Pointer(&frmsize)); err != nil {
			if errors.Is(err, unix.ENOTTY) {
				return false, nil
			}
			return false, fmt.Errorf("failed to enumerate frame size %d: %w", i, err)
		}
		if frmsize.typ == frmsizeTypeDiscrete {
			resolutions = append(resolutions, Resolution{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
			return true, nil
		}
		// A stepwise range is reported once, at index 0.
		stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))
		resolutions = append(resolutions, stepwiseResolutions(*stepwise)...)
		return false, nil
	})
	return resolutions, err
}

// EnumFramerates lists the frame intervals of an open device for one
// format and size. Stepwise and continuous ranges are reported as the
// common rates.
func EnumFramerates(fd int, pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate
	err := enumerate(func(i uint32) (bool, error) {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: pixelFormat,
			width:       width,
			height:      height,
		}
		if err := Ioctl(fd, VidiocEnumFrameintervals, unsafe.Pointer(&frmival)); err != nil {
			if errors.Is(err, unix.ENOTTY) {
				return false, nil
			}
			return false, fmt.Errorf("failed to enumerate frame interval %d: %w", i, err)
		}
		if frmival.typ == frmivalTypeDiscrete {
			framerates = append(framerates, Framerate{
				Numerator:   frmival.discrete.numerator,
				Denominator: frmival.discrete.denominator,
			})
			return true, nil
		}
		framerates = append(framerates, commonFramerates...)
		return false, nil
	})
	return framerates, err
}

// enumerate calls step with index 0, 1, ... until it returns false or an
// error. EINVAL marks the end of a V4L2 enumeration and is not an error.
func enumerate(step func(index uint32) (bool, error)) error {
	for i := uint32(0); ; i++ {
		more, err := step(i)
		if errors.Is(err, unix.EINVAL) {
			return nil
		}
		if err != nil || !more {
			return err
		}
	}
}

var commonResolutions = []Resolution{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1280, 1024},
	{1920, 1080},
	{1920, 1200},
	{2560, 1440},
	{3840, 2160},
	{4096, 2160},
}

var commonFramerates = []Framerate{
	{1, 60},
	{1, 50},
	{1, 30},
	{1, 25},
	{1, 20},
	{1, 15},
	{1, 10},
	{1, 5},
}

// stepwiseResolutions returns the common resolutions inside s that also
// land on its step grid.
func stepwiseResolutions(s v4l2FrmsizeStepwise) []Resolution {
	var out []Resolution
	for _, r := range commonResolutions {
		if r.Width < s.minWidth || r.Width > s.maxWidth || r.Height < s.minHeight || r.Height > s.maxHeight {
			continue
		}
		if s.stepWidth > 1 && (r.Width-s.minWidth)%s.stepWidth != 0 {
			continue
		}
		if s.stepHeight > 1 && (r.Height-s.minHeight)%s.stepHeight != 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	return string([]byte{byte(format), byte(format >> 8), byte(format >> 16), byte(format >> 24)})
}
