//go:build linux

package hotplug

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Directory conventions.
const (
	DevDir      = "/dev"
	VideoPrefix = "video"
)

// Change masks watched on DevDir. The values are fixed by the kernel's
// inotify interface.
const (
	InCreate uint32 = 0x00000100
	InDelete uint32 = 0x00000200

	inQueueOverflow uint32 = 0x00004000
)

// Record layout: a 16-byte header followed by len bytes of NUL-padded name.
const (
	EventHeaderSize = 16
	MaxNameLen      = 256
)

var errShortRecord = errors.New("truncated change record")

// Event is one filesystem change record.
type Event struct {
	WatchID int32
	Mask    uint32
	Cookie  uint32
	Name    string
}

// IsCreate reports whether the record announces a new entry.
func (e Event) IsCreate() bool { return e.Mask&InCreate != 0 }

// IsDelete reports whether the record announces a removed entry.
func (e Event) IsDelete() bool { return e.Mask&InDelete != 0 }

func (e Event) String() string {
	switch {
	case e.IsCreate():
		return "create " + e.Name
	case e.IsDelete():
		return "delete " + e.Name
	default:
		return fmt.Sprintf("mask 0x%x %s", e.Mask, e.Name)
	}
}

// ParseEvents decodes the change records in buf, which holds the result of
// one read on the notification channel. Records are in host byte order.
// On a malformed record the records decoded before it are returned along
// with the error.
func ParseEvents(buf []byte) ([]Event, error) {
	var events []Event
	for off := 0; off < len(buf); {
		rec := buf[off:]
		if len(rec) < EventHeaderSize {
			return events, fmt.Errorf("%w: %d header bytes at offset %d", errShortRecord, len(rec), off)
		}

		nameLen := int(binary.NativeEndian.Uint32(rec[12:16]))
		if nameLen > MaxNameLen || EventHeaderSize+nameLen > len(rec) {
			return events, fmt.Errorf("%w: name length %d at offset %d", errShortRecord, nameLen, off)
		}

		name := rec[EventHeaderSize : EventHeaderSize+nameLen]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}

		events = append(events, Event{
			WatchID: int32(binary.NativeEndian.Uint32(rec[0:4])),
			Mask:    binary.NativeEndian.Uint32(rec[4:8]),
			Cookie:  binary.NativeEndian.Uint32(rec[8:12]),
			Name:    string(name),
		})
		off += EventHeaderSize + nameLen
	}
	return events, nil
}

// IsVideoNode reports whether name is a video device node: VideoPrefix
// followed by one or more decimal digits and nothing else. The same rule
// selects nodes to open during a scan and removal records to honour, so
// "video0-event-joystick" neither opens nor removes anything.
func IsVideoNode(name string) bool {
	if len(name) <= len(VideoPrefix) || name[:len(VideoPrefix)] != VideoPrefix {
		return false
	}
	for _, c := range name[len(VideoPrefix):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
