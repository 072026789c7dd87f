package webcamcapture

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by this package wraps one of these
// sentinels and can be matched with errors.Is.
var (
	// ErrInvalidParameters reports desired width/height/fps <= 0 or a
	// mis-sized output buffer
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrDeviceUnavailable reports a bad device index or an activation failure
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrNegotiationFailed reports that no native format satisfies the request
	ErrNegotiationFailed = errors.New("negotiation failed")
	// ErrUnsupportedEncoding reports NV12 or an unrecognized pixel encoding
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	// ErrBackendConfiguration reports stream/decoder setup rejected by the backend
	ErrBackendConfiguration = errors.New("backend configuration failed")
	// ErrStreamFault reports end-of-stream or an I/O failure during capture
	ErrStreamFault = errors.New("stream fault")
	// ErrEndOfStream is returned by PullStream.PullSample when the stream ended
	ErrEndOfStream = errors.New("end of stream")
	// ErrInvalidState reports an operation not allowed in the current state
	ErrInvalidState = errors.New("invalid session state")
)

// NegotiationStage identifies which negotiation sub-step failed
type NegotiationStage int

const (
	// StageResolution means no candidate matched or exceeded the desired size
	StageResolution NegotiationStage = iota
	// StageFrameRate means the chosen format offers no admitting FPS range
	StageFrameRate
	// StageEncoding means the chosen format has no converter
	StageEncoding
)

// String returns a human-readable string representation of the stage
func (s NegotiationStage) String() string {
	switch s {
	case StageResolution:
		return "resolution"
	case StageFrameRate:
		return "frame-rate"
	case StageEncoding:
		return "encoding"
	default:
		return "unknown"
	}
}

// NegotiationError is returned by Negotiate. It matches ErrNegotiationFailed,
// and also ErrUnsupportedEncoding when Stage is StageEncoding.
type NegotiationError struct {
	Stage      NegotiationStage
	Width      int
	Height     int
	FPS        float64
	Candidates int
	// Chosen is the resolution-matched format (zero value for StageResolution)
	Chosen NativeFormat
}

func (e *NegotiationError) Error() string {
	switch e.Stage {
	case StageResolution:
		return fmt.Sprintf("negotiation failed at %s: no native format >= %dx%d among %d candidates",
			e.Stage, e.Width, e.Height, e.Candidates)
	case StageFrameRate:
		return fmt.Sprintf("negotiation failed at %s: %s offers no range admitting %.2f fps",
			e.Stage, e.Chosen, e.FPS)
	default:
		return fmt.Sprintf("negotiation failed at %s: %s has no converter",
			e.Stage, e.Chosen)
	}
}

// Is makes errors.Is match the taxonomy sentinels
func (e *NegotiationError) Is(target error) bool {
	if target == ErrNegotiationFailed {
		return true
	}
	return target == ErrUnsupportedEncoding && e.Stage == StageEncoding
}
