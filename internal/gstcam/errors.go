package gstcam

import (
	"errors"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

var (
	// ErrNoDevice reports a device index with no matching capture device
	ErrNoDevice = errors.New("gstcam: no such device")
	// ErrEndOfStream reports that the pipeline posted EOS or was shut down
	ErrEndOfStream = errors.New("gstcam: end of stream")
	// ErrUnsupportedPlatform reports an OS without a known camera source element
	ErrUnsupportedPlatform = errors.New("gstcam: no camera source element for this platform")
)

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryDevice indicates the camera vanished, is busy or failed to open
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryNegotiation indicates caps/format negotiation failures
	ErrCategoryNegotiation
	// ErrCategoryPermission indicates denied access to the device
	ErrCategoryPermission
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryPermission:
		return "permission"
	default:
		return "unknown"
	}
}

// ClassifyGStreamerError categorizes a bus error for telemetry
//
// Distinguishes between:
//   - Permission issues (user must grant camera access)
//   - Negotiation issues (the device refused the pinned caps)
//   - Device issues (unplugged, busy, I/O failure; a rebuild may help)
//   - Unknown issues (need investigation)
//
// go-gst's GError does not expose the error domain, so classification
// relies on message heuristics.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyError(gerr.Error(), gerr.DebugString())
}

// ClassifyError applies the classification heuristics to a message and its
// debug string
func ClassifyError(msg, debug string) ErrorCategory {
	combined := strings.ToLower(msg + " " + debug)

	// Most specific first
	switch {
	case containsAny(combined, permissionKeywords):
		return ErrCategoryPermission
	case containsAny(combined, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(combined, deviceKeywords):
		return ErrCategoryDevice
	default:
		return ErrCategoryUnknown
	}
}

var permissionKeywords = []string{
	"permission denied",
	"not authorized",
	"not permitted",
	"access denied",
	"authorization",
}

var negotiationKeywords = []string{
	"not-negotiated",
	"not negotiated",
	"negotiation",
	"caps",
	"unsupported format",
	"format",
}

var deviceKeywords = []string{
	"no such device",
	"device is busy",
	"resource busy",
	"could not open",
	"cannot identify device",
	"failed to allocate",
	"no buffer space",
	"device",
	"v4l2",
	"i/o",
	"disconnected",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
