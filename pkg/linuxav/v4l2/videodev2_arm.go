//go:build linux && arm

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM. Format, Window and
// Buffer shrink with the pointer and timeval sizes.
var (
	_ [104]byte = [unsafe.Sizeof(Capability{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(PixFormat{})]byte{}
	_ [40]byte  = [unsafe.Sizeof(Window{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(VBIFormat{})]byte{}
	_ [204]byte = [unsafe.Sizeof(Format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(RequestBuffers{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(Timecode{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(Buffer{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2FrmsizeStepwise{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2Frmsizeenum{})]byte{}
	_ [52]byte  = [unsafe.Sizeof(v4l2Frmivalenum{})]byte{}
)

var (
	_ [4]byte  = [unsafe.Offsetof(Format{}.fmt)]byte{}
	_ [20]byte = [unsafe.Offsetof(Buffer{}.Timestamp)]byte{}
	_ [52]byte = [unsafe.Offsetof(Buffer{}.m)]byte{}
	_ [56]byte = [unsafe.Offsetof(Buffer{}.Length)]byte{}
)
