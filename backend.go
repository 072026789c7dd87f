package webcamcapture

import "time"

// Backend is the native capture collaborator a Session drives.
//
// Implementations must guarantee:
//   - EnumerateDevices() returns devices in a stable order (Index == position)
//   - Activate() fails with an error for out-of-range indexes or denied access
//   - ListNativeFormats() returns formats in the device's preferred order
//   - OpenStream() configures the stream for the negotiated format but does
//     not deliver samples until Stream.Start() is called
//   - Release() on devices and streams is idempotent
//
// The returned Stream implements PullStream, CallbackStream, or both.
type Backend interface {
	// EnumerateDevices lists the capture devices currently attached
	EnumerateDevices() ([]DeviceInfo, error)

	// Activate opens the device at index for capture
	Activate(index int) (Device, error)

	// ListNativeFormats lists the raw formats the device delivers
	ListNativeFormats(dev Device) ([]NativeFormat, error)

	// OpenStream configures a stream for the negotiated format
	OpenStream(dev Device, format NegotiatedFormat) (Stream, error)
}

// Device is an activated capture device
type Device interface {
	Info() DeviceInfo
	Release() error
}

// Stream is a configured sample source
type Stream interface {
	// Start begins sample delivery
	Start() error
	// Release stops delivery and frees backend resources (idempotent)
	Release() error
}

// PullStream is a stream the caller pulls samples from synchronously
type PullStream interface {
	Stream

	// PullSample blocks until a sample arrives.
	//
	// Returns ErrEndOfStream when the stream ended, or another error on I/O
	// failure. There is no timeout: a stalled device blocks the caller.
	PullSample() (Sample, error)
}

// CallbackStream is a stream that pushes samples from its own goroutine
type CallbackStream interface {
	Stream

	// SetSampleHandler installs the handler called for every sample.
	//
	// Passing nil detaches the handler; the call returns only after any
	// in-flight handler invocation has finished.
	SetSampleHandler(handler func(Sample))

	// Err reports asynchronous stream faults (end-of-stream, device errors)
	Err() <-chan error
}

// SampleFlags qualifies a Sample
type SampleFlags uint32

const (
	// FlagFormatChanged signals that the native format changed; Sample.Format
	// carries the new format and Data is already in it
	FlagFormatChanged SampleFlags = 1 << iota
	// FlagStreamTick marks a gap notification with no pixel data
	FlagStreamTick
)

// Has reports whether all bits of f are set
func (s SampleFlags) Has(f SampleFlags) bool {
	return s&f == f
}

// Sample is one raw frame delivered by a backend.
//
// Data is only valid for the duration of the handler call (async) or until
// the next PullSample (sync); the session copies out of it and never
// retains it.
type Sample struct {
	Data      []byte
	Flags     SampleFlags
	Format    *NativeFormat
	Timestamp time.Time
}
