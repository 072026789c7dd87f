package gstcam

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
)

// ListFormats opens the device and returns the raw formats its source pad
// can produce, in the order the source reports them.
//
// The source is moved to READY so it opens the device and probes its
// modes; caps are queried without starting a stream.
func ListFormats(dev Device) ([]Format, error) {
	src, err := dev.NewSource()
	if err != nil {
		return nil, err
	}
	defer src.SetState(gst.StateNull)

	if err := src.SetState(gst.StateReady); err != nil {
		return nil, fmt.Errorf("gstcam: open %s for probing: %w", dev.Name, err)
	}

	pad := src.GetStaticPad("src")
	if pad == nil {
		return nil, fmt.Errorf("gstcam: %s has no src pad", dev.Element)
	}

	caps := pad.QueryCaps(nil)
	if caps == nil || caps.GetSize() == 0 {
		return nil, fmt.Errorf("gstcam: %s reported no caps", dev.Name)
	}
	raw := caps.String()

	formats := ParseCaps(raw)

	slog.Debug("gstcam: device caps probed",
		"device", dev.Name,
		"structures", caps.GetSize(),
		"raw_formats", len(formats),
	)

	return formats, nil
}
