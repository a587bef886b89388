//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) control
// protocol: the fixed-layout records exchanged with a capture driver, the
// composition of control-call codes, and device enumeration helpers.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Records
//
// Capability, Format, RequestBuffers and Buffer mirror the kernel structs
// byte for byte. Per-architecture files assert their sizes at compile time.
// Format carries a union; only the capture variant (PixFormat) is used by
// the streaming path, the overlay and VBI variants exist as layouts only.
//
// # Control-call codes
//
// A Code packs direction, payload size, subsystem tag and command number:
//
//	code := v4l2.IOWR('V', 9, unsafe.Sizeof(v4l2.Buffer{}))
//	code.Dir()  // DirReadWrite
//	code.Size() // 88 on 64-bit
//	code.Type() // 'V'
//	code.Nr()   // 9
//
// Ioctl issues a call and retries it while interrupted by a signal.
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
// Describe opens a node once and lists every format with its frame sizes
// and frame rates:
//
//	formats, _ := v4l2.Describe("/dev/video0")
//	for _, f := range formats {
//	    for _, size := range f.Sizes {
//	        fmt.Println(v4l2.FormatFourCC(f.PixelFormat), size.Width, size.Height, len(size.Framerates))
//	    }
//	}
//
// EnumFormats, EnumResolutions and EnumFramerates do the same on a
// descriptor the caller already holds.
package v4l2
