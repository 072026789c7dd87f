//go:build darwin || windows

package gstcam

import (
	"fmt"
	"log/slog"
	"runtime"
)

// maxProbedDevices bounds the device-index scan
const maxProbedDevices = 8

// sourceElement is the camera source for the platform
func sourceElement() string {
	if runtime.GOOS == "darwin" {
		return "avfvideosrc"
	}
	return "mfvideosrc"
}

// Enumerate probes device-index 0, 1, ... until a source fails to open.
// These sources do not expose device names through properties, so devices
// are named by index.
func Enumerate() ([]Device, error) {
	element := sourceElement()

	var devices []Device
	for i := 0; i < maxProbedDevices; i++ {
		dev := Device{
			Index:   i,
			Name:    fmt.Sprintf("Camera %d", i),
			Element: element,
			Props:   map[string]interface{}{"device-index": i},
		}
		if err := dev.Open(); err != nil {
			slog.Debug("gstcam: device probe stopped", "index", i, "error", err)
			break
		}
		devices = append(devices, dev)
	}
	return devices, nil
}
