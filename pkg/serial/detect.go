package serial

import (
	"path/filepath"
	"sort"
)

// DefaultPortGlobs covers the USB-serial device paths an ESP32 typically
// shows up under on macOS and Linux. Auto-detection is a convenience only;
// the transport itself always works from a resolved path.
var DefaultPortGlobs = []string{
	"/dev/cu.usbserial-*",
	"/dev/cu.SLAB_USBtoUART*",
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
}

// DetectPort returns the first device path matching any of the globs,
// trying them in order. With no globs given, DefaultPortGlobs is used.
func DetectPort(globs []string) (string, error) {
	if len(globs) == 0 {
		globs = DefaultPortGlobs
	}
	for _, pattern := range globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", ErrNoPortFound
}

// ListPorts returns every device path matching the globs, sorted.
func ListPorts(globs []string) []string {
	if len(globs) == 0 {
		globs = DefaultPortGlobs
	}
	var ports []string
	for _, pattern := range globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		ports = append(ports, matches...)
	}
	sort.Strings(ports)
	return ports
}
