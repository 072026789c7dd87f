package webcamcapture

import (
	"context"
	"time"
)

// Capturer defines the contract for webcam frame acquisition
//
// Implementations must guarantee:
//   - Init() fails closed: on error no device or stream is left open
//   - DoCapture() never writes a partial frame into the output buffer
//   - Stop() is idempotent (safe to call multiple times)
//   - Stats() is thread-safe (can be called from any goroutine)
type Capturer interface {
	// Init activates the device, negotiates a native format and opens the
	// stream. The stream is not started.
	//
	// Returns an error wrapping ErrDeviceUnavailable, ErrNegotiationFailed,
	// ErrUnsupportedEncoding or ErrBackendConfiguration.
	//
	// Example:
	//   s, _ := NewSession(NewGStreamerBackend(), cfg)
	//   if err := s.Init(ctx); err != nil {
	//       log.Fatal(err)
	//   }
	//   log.Printf("native %s", s.Format().Resolution())
	Init(ctx context.Context) error

	// SetBuffer installs the caller-owned RGBA output buffer of exactly
	// Width*Height*4 bytes.
	//
	// In async mode the buffer can only be replaced before Start().
	SetBuffer(out []byte) error

	// Start begins sample delivery from the device.
	Start() error

	// DoCapture fills the output buffer with one frame.
	//
	// Sync mode blocks until a sample is pulled and returns true.
	// Async mode never blocks: it returns true only when a frame was written
	// since the previous call, false otherwise.
	//
	// Returns an error wrapping ErrStreamFault on end-of-stream or I/O failure.
	DoCapture() (bool, error)

	// Stop detaches callbacks and releases the stream and the device.
	//
	// Safe to call multiple times (idempotent). Stopped is terminal.
	Stop() error

	// Stats returns current capture statistics.
	Stats() SessionStats

	// Warmup polls DoCapture for the given duration and measures the real
	// frame rate of the device.
	//
	// Returns WarmupStats with FPS measurements, or an error if:
	//   - The session is not streaming
	//   - Not enough frames were captured (< 2)
	//   - The context is cancelled
	Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error)
}

var _ Capturer = (*Session)(nil)
