//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"
)

// Scanner locates capture nodes. The zero value is not useful; use
// DefaultScanner or set every directory.
type Scanner struct {
	SysfsDir string // class directory listing the nodes, /sys/class/video4linux
	DevDir   string // where the nodes live, /dev
	ByIDDir  string // udev stable links, /dev/v4l/by-id
	Logger   *slog.Logger
}

// DefaultScanner reads the live system.
var DefaultScanner = Scanner{
	SysfsDir: "/sys/class/video4linux",
	DevDir:   "/dev",
	ByIDDir:  "/dev/v4l/by-id",
}

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	return DefaultScanner.FindDevices()
}

// FindDevices lists the nodes under SysfsDir that open and report video
// capture. Nodes that cannot be opened or queried are skipped.
func (s Scanner) FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(s.SysfsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default().With("component", "v4l2")
	}

	var devices []DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		devicePath := filepath.Join(s.DevDir, name)

		c, err := QueryCapability(devicePath)
		if err != nil {
			logger.Debug("skipping video node", "path", devicePath, "error", err)
			continue
		}
		caps := c.EffectiveCaps()
		if caps&CapVideoCapture == 0 {
			continue
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: c.CardName(),
			DeviceID:   s.deviceID(name, c.Bus()),
			Driver:     c.DriverName(),
			BusInfo:    c.Bus(),
			Caps:       caps,
		})
	}
	return devices, nil
}

// GetDevicePathByID finds the device path for a given stable device ID.
func GetDevicePathByID(deviceID string) (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to find devices: %w", err)
	}
	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.DevicePath, nil
		}
	}
	return "", fmt.Errorf("device with ID %s not found", deviceID)
}

// deviceID returns the by-id link name of node, or an ID synthesized from
// the bus when udev created none.
func (s Scanner) deviceID(node, busInfo string) string {
	index := readSysfsInt(filepath.Join(s.SysfsDir, node, "index"))
	if id := findStableID(s.ByIDDir, node, index); id != "" {
		return id
	}
	if strings.HasPrefix(busInfo, "usb-") {
		return fmt.Sprintf("%s-video-index%d", busInfo, index)
	}
	return fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
}

// findStableID returns the link in byIDDir that points at node and ends in
// the node's index suffix.
func findStableID(byIDDir, node string, index int) string {
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	suffix := fmt.Sprintf("-video-index%d", index)
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err != nil {
			continue
		}
		if filepath.Base(target) == node {
			return entry.Name()
		}
	}
	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// QueryCapability opens devicePath and queries its capabilities.
func QueryCapability(devicePath string) (*Capability, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, err
	}
	defer closeFD(fd)

	c := &Capability{}
	if err := Ioctl(fd, VidiocQueryCap, unsafe.Pointer(c)); err != nil {
		return nil, err
	}
	return c, nil
}
