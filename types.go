package webcamcapture

import (
	"fmt"
	"math"
	"time"
)

// Encoding identifies the pixel layout a camera delivers natively
type Encoding int

const (
	// EncodingNone marks a raw format the converter does not recognize
	EncodingNone Encoding = iota
	// EncodingRGB32 is packed 32-bit RGB (4 bytes per pixel)
	EncodingRGB32
	// EncodingRGB24 is packed 24-bit RGB (3 bytes per pixel, no alpha)
	EncodingRGB24
	// EncodingYUY2 is packed 4:2:2 YUV (Y0 Cb Y1 Cr per 2 pixels)
	EncodingYUY2
	// EncodingNV12 is planar 4:2:0 YUV. Recognized but not convertible.
	EncodingNV12
)

// String returns a human-readable string representation of the encoding
func (e Encoding) String() string {
	switch e {
	case EncodingRGB32:
		return "RGB32"
	case EncodingRGB24:
		return "RGB24"
	case EncodingYUY2:
		return "YUY2"
	case EncodingNV12:
		return "NV12"
	default:
		return "none"
	}
}

// ChannelOrder describes the byte order of the color channels in RGB encodings
type ChannelOrder int

const (
	// OrderRGB means red comes first (R G B [A])
	OrderRGB ChannelOrder = iota
	// OrderBGR means blue comes first (B G R [A]); fixed up by SwapRedBlue
	OrderBGR
)

// String returns a human-readable string representation of the channel order
func (o ChannelOrder) String() string {
	if o == OrderBGR {
		return "BGR"
	}
	return "RGB"
}

// FPSRange is a closed frame-rate interval offered by a native format
type FPSRange struct {
	Min float64
	Max float64
}

// Admits reports whether fps falls inside floor(Min)..ceil(Max)
func (r FPSRange) Admits(fps float64) bool {
	return math.Floor(r.Min) <= fps && fps <= math.Ceil(r.Max)
}

// NativeFormat describes one resolution/encoding/frame-rate combination a
// device can deliver without conversion
type NativeFormat struct {
	// Width in pixels (> 0)
	Width int
	// Height in pixels (> 0)
	Height int
	// Encoding is the pixel layout
	Encoding Encoding
	// Order is the channel order for RGB encodings
	Order ChannelOrder
	// FPSRanges lists the supported frame-rate ranges, in backend order
	FPSRanges []FPSRange
	// Raw is the backend descriptor this format was parsed from (e.g. caps)
	Raw string
}

// String returns a compact description such as "YUY2 640x480"
func (f NativeFormat) String() string {
	return fmt.Sprintf("%s %dx%d", f.Encoding, f.Width, f.Height)
}

// NegotiatedFormat is the single native format chosen for a session
type NegotiatedFormat struct {
	Width    int
	Height   int
	Encoding Encoding
	Order    ChannelOrder
	// FPSNum / FPSDen is the requested frame rate admitted by FPSRange
	FPSNum   int
	FPSDen   int
	FPSRange FPSRange
	// Raw is carried over from the chosen NativeFormat
	Raw string
}

// FPS returns the negotiated frame rate as a float
func (f NegotiatedFormat) FPS() float64 {
	if f.FPSDen == 0 {
		return 0
	}
	return float64(f.FPSNum) / float64(f.FPSDen)
}

// Resolution returns the native resolution as "WxH"
func (f NegotiatedFormat) Resolution() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// DeviceInfo identifies a capture device as enumerated by a backend
type DeviceInfo struct {
	// Index is the position in the enumeration order
	Index int
	// Name is the human-readable device name
	Name string
	// Path is the backend-specific locator (e.g. /dev/video0), may be empty
	Path string
}

// Mode selects how frames travel from the backend to the caller
type Mode int

const (
	// ModeAuto picks ModeSync when the stream supports pulling, else ModeAsync
	ModeAuto Mode = iota
	// ModeSync blocks the caller in DoCapture until a sample is pulled
	ModeSync
	// ModeAsync converts samples on the backend's callback goroutine on demand
	ModeAsync
)

// String returns a human-readable string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	default:
		return "auto"
	}
}

// ParseMode converts "auto", "sync" or "async" into a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "sync":
		return ModeSync, nil
	case "async":
		return ModeAsync, nil
	default:
		return ModeAuto, fmt.Errorf("webcam-capture: unknown mode %q (must be auto, sync or async): %w", s, ErrInvalidParameters)
	}
}

// State is the lifecycle state of a Session
type State int32

const (
	StateUninitialized State = iota
	StateNegotiated
	StateStreaming
	StateStopped
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNegotiated:
		return "negotiated"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config contains the caller's capture request
type Config struct {
	// DeviceIndex selects the device from the backend enumeration
	DeviceIndex int
	// Width is the desired output width in pixels (> 0)
	Width int
	// Height is the desired output height in pixels (> 0)
	Height int
	// FPSNum / FPSDen is the desired frame rate (FPSDen defaults to 1)
	FPSNum int
	FPSDen int
	// Mode selects sync pull or async poll (default ModeAuto)
	Mode Mode
}

// FPS returns the desired frame rate as a float
func (c Config) FPS() float64 {
	den := c.FPSDen
	if den == 0 {
		den = 1
	}
	return float64(c.FPSNum) / float64(den)
}

// OutputSize returns the required output buffer length in bytes
func (c Config) OutputSize() int {
	return c.Width * c.Height * 4
}

// SessionStats contains current capture statistics
type SessionStats struct {
	// SessionID is the unique session identifier
	SessionID string
	// State is the lifecycle state at snapshot time
	State State
	// Mode is the resolved operating mode
	Mode Mode
	// FramesCaptured is the number of frames written to the output buffer
	FramesCaptured uint64
	// FramesSkipped counts async samples ignored because no capture was wanted
	FramesSkipped uint64
	// StreamTicks counts sync pulls that returned no sample data
	StreamTicks uint64
	// FormatChanges counts mid-stream native format changes
	FormatChanges uint64
	// Faults counts stream faults surfaced to the caller
	Faults uint64
	// BytesRead is the total raw sample bytes converted
	BytesRead uint64
	// FPSTarget is the negotiated frame rate
	FPSTarget float64
	// FPSReal is the measured capture rate since Start
	FPSReal float64
	// LatencyMS is the time since the last captured frame in milliseconds
	LatencyMS int64
	// NativeResolution is the negotiated native size (e.g. "1280x720")
	NativeResolution string
	// OutputResolution is the caller's desired size (e.g. "640x480")
	OutputResolution string
	// Encoding is the negotiated native encoding
	Encoding Encoding
}

// WarmupStats contains statistics collected during the capture warm-up phase
type WarmupStats struct {
	// FramesReceived is the number of frames received during warm-up
	FramesReceived int
	// Duration is the actual warm-up duration
	Duration time.Duration
	// FPSMean is the mean FPS across all frames
	FPSMean float64
	// FPSStdDev is the standard deviation of FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// IsStable is true if FPS is stable (stddev < 15% of mean AND jitter < 20%)
	IsStable bool
	// JitterMean is the average inter-frame interval deviation (seconds)
	JitterMean float64
	// JitterStdDev is the standard deviation of jitter (seconds)
	JitterStdDev float64
	// JitterMax is the maximum jitter observed (seconds)
	JitterMax float64
}
