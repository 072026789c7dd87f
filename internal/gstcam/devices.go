package gstcam

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
)

// Device is a camera reachable through a GStreamer source element
type Device struct {
	// Index is the position in the enumeration order
	Index int
	// Name is the human-readable device name
	Name string
	// Path is the OS locator (/dev/videoN on Linux, empty elsewhere)
	Path string

	// Element is the source factory (v4l2src, avfvideosrc, mfvideosrc)
	Element string
	// Props are set on the source element before use
	Props map[string]interface{}
}

// NewSource creates and configures the source element for the device
func (d Device) NewSource() (*gst.Element, error) {
	gst.Init(nil)

	src, err := gst.NewElement(d.Element)
	if err != nil {
		return nil, fmt.Errorf("gstcam: create %s: %w", d.Element, err)
	}
	for k, v := range d.Props {
		if err := src.SetProperty(k, v); err != nil {
			return nil, fmt.Errorf("gstcam: set %s.%s=%v: %w", d.Element, k, v, err)
		}
	}
	return src, nil
}

// Open checks that the device can be opened by moving its source element to
// READY and back to NULL
func (d Device) Open() error {
	src, err := d.NewSource()
	if err != nil {
		return err
	}
	defer src.SetState(gst.StateNull)

	if err := src.SetState(gst.StateReady); err != nil {
		return fmt.Errorf("gstcam: open %s (%s): %w", d.Name, d.Element, err)
	}

	slog.Debug("gstcam: device opened", "index", d.Index, "name", d.Name, "element", d.Element)
	return nil
}

// Find returns the enumerated device at index
func Find(index int) (Device, error) {
	devices, err := Enumerate()
	if err != nil {
		return Device{}, err
	}
	if index < 0 || index >= len(devices) {
		return Device{}, fmt.Errorf("%w: index %d (%d attached)", ErrNoDevice, index, len(devices))
	}
	return devices[index], nil
}
