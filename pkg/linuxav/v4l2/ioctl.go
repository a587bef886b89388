//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Dir is the data direction of a control call, seen from user space.
type Dir uint8

// Directions.
const (
	DirNone      Dir = 0
	DirWrite     Dir = 1
	DirRead      Dir = 2
	DirReadWrite Dir = 3
)

func (d Dir) String() string {
	switch d {
	case DirNone:
		return "none"
	case DirWrite:
		return "write"
	case DirRead:
		return "read"
	case DirReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("dir(%d)", uint8(d))
	}
}

// Code field layout.
const (
	nrShift   = 0
	typeShift = 8
	sizeShift = 16
	dirShift  = 30

	nrMask   = 0xff
	typeMask = 0xff
	sizeMask = 0x1fff
	dirMask  = 0x3

	// MaxSize is the largest payload size a Code can carry.
	MaxSize = sizeMask
)

// Subsystem tag of every V4L2 control call.
const typeV4L2 = 'V'

var (
	errInvalidDir = errors.New("invalid control-call direction")
	errSizeTooBig = errors.New("control-call payload size exceeds 13 bits")
)

// Code is a 32-bit control-call request number.
type Code uint32

// NewCode composes a control-call code, rejecting out-of-range fields.
func NewCode(dir Dir, typ, nr uint8, size uintptr) (Code, error) {
	if dir > DirReadWrite {
		return 0, errInvalidDir
	}
	if size > MaxSize {
		return 0, fmt.Errorf("%w: %d", errSizeTooBig, size)
	}
	return compose(dir, typ, nr, size), nil
}

func compose(dir Dir, typ, nr uint8, size uintptr) Code {
	return Code(uint32(dir&dirMask)<<dirShift |
		uint32(size&sizeMask)<<sizeShift |
		uint32(typ)<<typeShift |
		uint32(nr)<<nrShift)
}

// IO composes a code for a call without payload.
func IO(typ, nr uint8) Code { return compose(DirNone, typ, nr, 0) }

// IOR composes a code for a call the driver writes back to user space.
func IOR(typ, nr uint8, size uintptr) Code { return compose(DirRead, typ, nr, size) }

// IOW composes a code for a call user space passes to the driver.
func IOW(typ, nr uint8, size uintptr) Code { return compose(DirWrite, typ, nr, size) }

// IOWR composes a code for a call whose payload travels both ways.
func IOWR(typ, nr uint8, size uintptr) Code { return compose(DirReadWrite, typ, nr, size) }

// Dir returns the direction field.
func (c Code) Dir() Dir { return Dir(uint32(c) >> dirShift & dirMask) }

// Size returns the payload size field.
func (c Code) Size() uint32 { return uint32(c) >> sizeShift & sizeMask }

// Type returns the subsystem tag.
func (c Code) Type() uint8 { return uint8(uint32(c) >> typeShift & typeMask) }

// Nr returns the command number.
func (c Code) Nr() uint8 { return uint8(uint32(c) >> nrShift & nrMask) }

func (c Code) String() string {
	return fmt.Sprintf("0x%08x(%s,%q,%d,%d)", uint32(c), c.Dir(), c.Type(), c.Nr(), c.Size())
}

// Control-call codes used by the capture path.
var (
	VidiocQueryCap       = IOR(typeV4L2, 0, unsafe.Sizeof(Capability{}))
	VidiocSetFormat      = IOWR(typeV4L2, 5, unsafe.Sizeof(Format{}))
	VidiocRequestBuffers = IOWR(typeV4L2, 8, unsafe.Sizeof(RequestBuffers{}))
	VidiocQueryBuffer    = IOWR(typeV4L2, 9, unsafe.Sizeof(Buffer{}))
	VidiocQueueBuffer    = IOWR(typeV4L2, 15, unsafe.Sizeof(Buffer{}))
	VidiocDequeueBuffer  = IOWR(typeV4L2, 17, unsafe.Sizeof(Buffer{}))
	VidiocStreamOn       = IOW(typeV4L2, 18, unsafe.Sizeof(int32(0)))
	VidiocStreamOff      = IOW(typeV4L2, 19, unsafe.Sizeof(int32(0)))
)

// Control-call codes used by enumeration.
var (
	VidiocEnumFmt            = IOWR(typeV4L2, 2, unsafe.Sizeof(v4l2Fmtdesc{}))
	VidiocEnumFramesizes     = IOWR(typeV4L2, 74, unsafe.Sizeof(v4l2Frmsizeenum{}))
	VidiocEnumFrameintervals = IOWR(typeV4L2, 75, unsafe.Sizeof(v4l2Frmivalenum{}))
)

// RetryOnInterrupt calls fn until it returns something other than EINTR.
func RetryOnInterrupt(fn func() error) error {
	for {
		err := fn()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// Ioctl issues a control call on fd. The returned error is a unix.Errno.
func Ioctl(fd int, code Code, arg unsafe.Pointer) error {
	return RetryOnInterrupt(func() error {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(code), uintptr(arg))
		if errno != 0 {
			return errno
		}
		return nil
	})
}

func open(path string) (int, error) {
	var fd int
	err := RetryOnInterrupt(func() error {
		var openErr error
		fd, openErr = unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		return openErr
	})
	return fd, err
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
