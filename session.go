package webcamcapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session drives one camera through negotiation, conversion and resampling
// into a caller-owned RGBA buffer.
//
// Lifecycle: Uninitialized → Negotiated (Init) → Streaming (Start or first
// DoCapture) → Stopped (Stop, terminal). A stopped session cannot be
// restarted; construct a new one.
type Session struct {
	id      string
	backend Backend
	cfg     Config

	// Lifecycle (Init/Start/Stop), never taken on the per-frame path
	mu    sync.Mutex
	state atomic.Int32
	mode  Mode

	device Device
	stream Stream
	pull   PullStream
	push   CallbackStream

	// Negotiated format, converter and intermediate RGBA buffer. Written by
	// Init and by reconfigure on the capturing goroutine; fmtMu only
	// serializes those writes against the getters.
	fmtMu  sync.RWMutex
	format NegotiatedFormat
	conv   Converter
	frame  []byte

	// Caller-owned, never resized or freed
	output []byte

	// Async handshake over the output buffer, see handoffIdle
	handoff    atomic.Int32
	asyncFault chan error

	// First stream fault, returned by every later DoCapture
	faultErr atomic.Pointer[error]

	// Statistics (atomic for thread-safety)
	framesCaptured uint64
	framesSkipped  uint64
	streamTicks    uint64
	formatChanges  uint64
	faults         uint64
	bytesRead      uint64
	lastFrameAt    atomic.Int64 // unix nanos
	started        time.Time
}

// NewSession creates a capture session with fail-fast validation
//
// Validates configuration at construction time:
//   - backend must not be nil
//   - Width, Height and FPSNum must be > 0
//   - FPSDen must be >= 0 (0 means 1)
//   - DeviceIndex must be >= 0
//
// Returns an error wrapping ErrInvalidParameters if validation fails.
func NewSession(backend Backend, cfg Config) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("webcam-capture: backend is required: %w", ErrInvalidParameters)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("webcam-capture: invalid resolution %dx%d: %w", cfg.Width, cfg.Height, ErrInvalidParameters)
	}
	if cfg.FPSNum <= 0 || cfg.FPSDen < 0 {
		return nil, fmt.Errorf("webcam-capture: invalid FPS %d/%d: %w", cfg.FPSNum, cfg.FPSDen, ErrInvalidParameters)
	}
	if cfg.DeviceIndex < 0 {
		return nil, fmt.Errorf("webcam-capture: invalid device index %d: %w", cfg.DeviceIndex, ErrInvalidParameters)
	}
	if cfg.FPSDen == 0 {
		cfg.FPSDen = 1
	}

	s := &Session{
		id:         uuid.New().String(),
		backend:    backend,
		cfg:        cfg,
		mode:       cfg.Mode,
		asyncFault: make(chan error, 1),
	}

	slog.Info("webcam-capture: session created",
		"session_id", s.id,
		"device_index", cfg.DeviceIndex,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps", fmt.Sprintf("%d/%d", cfg.FPSNum, cfg.FPSDen),
		"mode", cfg.Mode.String(),
	)

	return s, nil
}

// Init negotiates the native format and prepares the stream
//
// This method:
//  1. Activates the configured device
//  2. Lists its native formats and negotiates against the desired size/FPS
//  3. Binds the converter for the negotiated encoding
//  4. Opens the backend stream and resolves the operating mode
//  5. Allocates the intermediate RGBA buffer
//
// Fails closed: on any error the device and stream are released and the
// session stays Uninitialized.
func (s *Session) Init(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateUninitialized {
		return fmt.Errorf("webcam-capture: init in state %s: %w", st, ErrInvalidState)
	}

	defer func() {
		if err != nil {
			if relErr := s.releaseLocked(); relErr != nil {
				slog.Warn("webcam-capture: cleanup after failed init", "session_id", s.id, "error", relErr)
			}
			s.device, s.stream, s.pull, s.push = nil, nil, nil, nil
			slog.Error("webcam-capture: init failed", "session_id", s.id, "error", err)
		}
	}()

	dev, err := s.backend.Activate(s.cfg.DeviceIndex)
	if err != nil {
		return fmt.Errorf("webcam-capture: activate device %d: %w: %w", s.cfg.DeviceIndex, ErrDeviceUnavailable, err)
	}
	s.device = dev

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("webcam-capture: init cancelled: %w", err)
	}

	candidates, err := s.backend.ListNativeFormats(dev)
	if err != nil {
		return fmt.Errorf("webcam-capture: list native formats: %w: %w", ErrBackendConfiguration, err)
	}

	slog.Debug("webcam-capture: native formats listed",
		"session_id", s.id,
		"device", dev.Info().Name,
		"candidates", len(candidates),
	)

	format, err := Negotiate(s.cfg.Width, s.cfg.Height, s.cfg.FPSNum, s.cfg.FPSDen, candidates)
	if err != nil {
		return fmt.Errorf("webcam-capture: %w", err)
	}

	conv, err := ConverterFor(format.Encoding)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("webcam-capture: init cancelled: %w", err)
	}

	stream, err := s.backend.OpenStream(dev, format)
	if err != nil {
		return fmt.Errorf("webcam-capture: open stream %s: %w: %w", format.Resolution(), ErrBackendConfiguration, err)
	}
	s.stream = stream

	mode, err := resolveMode(s.cfg.Mode, stream)
	if err != nil {
		return err
	}
	s.mode = mode
	switch mode {
	case ModeSync:
		s.pull = stream.(PullStream)
	case ModeAsync:
		s.push = stream.(CallbackStream)
	}

	s.fmtMu.Lock()
	s.format = format
	s.conv = conv
	s.frame = make([]byte, format.Width*format.Height*4)
	s.fmtMu.Unlock()

	s.state.Store(int32(StateNegotiated))

	slog.Info("webcam-capture: format negotiated",
		"session_id", s.id,
		"device", dev.Info().Name,
		"native", format.Resolution(),
		"encoding", format.Encoding.String(),
		"order", format.Order.String(),
		"fps", fmt.Sprintf("%d/%d", format.FPSNum, format.FPSDen),
		"fps_range", fmt.Sprintf("%.1f-%.1f", format.FPSRange.Min, format.FPSRange.Max),
		"output", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"mode", mode.String(),
	)

	return nil
}

// resolveMode matches the requested mode against what the stream supports
func resolveMode(want Mode, stream Stream) (Mode, error) {
	_, canPull := stream.(PullStream)
	_, canPush := stream.(CallbackStream)

	switch want {
	case ModeSync:
		if canPull {
			return ModeSync, nil
		}
	case ModeAsync:
		if canPush {
			return ModeAsync, nil
		}
	default:
		if canPull {
			return ModeSync, nil
		}
		if canPush {
			return ModeAsync, nil
		}
	}
	return ModeAuto, fmt.Errorf("webcam-capture: stream does not support %s mode: %w", want, ErrBackendConfiguration)
}

// SetBuffer installs the caller-owned output buffer
//
// The buffer must be exactly Width*Height*4 bytes. The session writes one
// RGBA frame into it per successful capture and never resizes or frees it.
// In async mode the buffer can only be replaced before streaming starts.
func (s *Session) SetBuffer(out []byte) error {
	if len(out) != s.cfg.OutputSize() {
		return fmt.Errorf("webcam-capture: output buffer has %d bytes, need %d: %w", len(out), s.cfg.OutputSize(), ErrInvalidParameters)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.State()
	if st == StateStopped || (st == StateStreaming && s.mode == ModeAsync) {
		return fmt.Errorf("webcam-capture: set buffer in state %s (%s mode): %w", st, s.mode, ErrInvalidState)
	}
	s.output = out
	return nil
}

// Start begins sample delivery
//
// In async mode the sample handler is registered before the stream starts,
// so no sample is delivered to a session that cannot take it. Calling Start
// is optional in sync mode: the first DoCapture starts the stream.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() error {
	switch st := s.State(); st {
	case StateStreaming:
		return nil
	case StateNegotiated:
	default:
		return fmt.Errorf("webcam-capture: start in state %s: %w", st, ErrInvalidState)
	}

	if s.output == nil {
		return fmt.Errorf("webcam-capture: output buffer not set: %w", ErrInvalidParameters)
	}

	if s.mode == ModeAsync {
		s.push.SetSampleHandler(s.onSample)
	}

	if err := s.stream.Start(); err != nil {
		if s.mode == ModeAsync {
			s.push.SetSampleHandler(nil)
		}
		return fmt.Errorf("webcam-capture: start stream: %w: %w", ErrBackendConfiguration, err)
	}

	s.started = time.Now()
	s.state.Store(int32(StateStreaming))

	slog.Info("webcam-capture: streaming started",
		"session_id", s.id,
		"mode", s.mode.String(),
	)
	return nil
}

// DoCapture captures one frame into the output buffer
//
// Sync mode blocks until a frame has been written and returns (true, nil).
// Async mode never blocks: it returns (true, nil) when a frame was produced
// since the previous true return, and otherwise requests one and returns
// (false, nil). After a true return the output buffer is not written again
// until the next DoCapture.
//
// Returns an error wrapping ErrStreamFault on end-of-stream or backend I/O
// failure. The fault is fatal: every later call returns it until Stop. The
// pipeline does not retry.
func (s *Session) DoCapture() (bool, error) {
	switch st := s.State(); st {
	case StateStreaming:
	case StateNegotiated:
		s.mu.Lock()
		err := s.startLocked()
		s.mu.Unlock()
		if err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("webcam-capture: capture in state %s: %w", st, ErrInvalidState)
	}

	if p := s.faultErr.Load(); p != nil {
		return false, *p
	}

	if s.mode == ModeSync {
		return s.captureSync()
	}
	return s.captureAsync()
}

// Stop tears the session down
//
// This method:
//  1. Detaches the async sample handler (waits for an in-flight callback)
//  2. Releases the stream, then the device
//  3. Drops the intermediate buffer
//
// The output buffer is left untouched. Idempotent; Stopped is terminal.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.State()
	if prev == StateStopped {
		slog.Debug("webcam-capture: session already stopped", "session_id", s.id)
		return nil
	}
	s.state.Store(int32(StateStopped))

	err := s.releaseLocked()

	s.fmtMu.Lock()
	s.frame = nil
	s.fmtMu.Unlock()

	var fpsReal float64
	captured := atomic.LoadUint64(&s.framesCaptured)
	if !s.started.IsZero() {
		if uptime := time.Since(s.started).Seconds(); uptime > 0 {
			fpsReal = float64(captured) / uptime
		}
	}

	slog.Info("webcam-capture: session stopped",
		"session_id", s.id,
		"previous_state", prev.String(),
		"frames_captured", captured,
		"frames_skipped", atomic.LoadUint64(&s.framesSkipped),
		"format_changes", atomic.LoadUint64(&s.formatChanges),
		"fps_real", fmt.Sprintf("%.2f", fpsReal),
	)

	if err != nil {
		return fmt.Errorf("webcam-capture: stop: %w", err)
	}
	return nil
}

// releaseLocked detaches callbacks and releases stream and device
func (s *Session) releaseLocked() error {
	if s.push != nil {
		s.push.SetSampleHandler(nil)
	}

	var errs []error
	if s.stream != nil {
		if err := s.stream.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release stream: %w", err))
		}
	}
	if s.device != nil {
		if err := s.device.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release device: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ID returns the unique session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Mode returns the resolved operating mode (ModeAuto before Init)
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Config returns the caller's capture request
func (s *Session) Config() Config {
	return s.cfg
}

// Format returns the current negotiated format
func (s *Session) Format() NegotiatedFormat {
	s.fmtMu.RLock()
	defer s.fmtMu.RUnlock()
	return s.format
}

// FrameWidth returns the native frame width (0 before Init)
func (s *Session) FrameWidth() int {
	return s.Format().Width
}

// FrameHeight returns the native frame height (0 before Init)
func (s *Session) FrameHeight() int {
	return s.Format().Height
}

// VideoFormat returns the negotiated native encoding
func (s *Session) VideoFormat() Encoding {
	return s.Format().Encoding
}

// Devices enumerates the devices visible to the session's backend
func (s *Session) Devices() ([]DeviceInfo, error) {
	devices, err := s.backend.EnumerateDevices()
	if err != nil {
		return nil, fmt.Errorf("webcam-capture: enumerate devices: %w: %w", ErrDeviceUnavailable, err)
	}
	return devices, nil
}

// DeviceCount returns the number of devices visible to the backend
func (s *Session) DeviceCount() int {
	devices, err := s.Devices()
	if err != nil {
		return 0
	}
	return len(devices)
}

// Stats returns current capture statistics
//
// Thread-safe - uses atomic operations for counters.
func (s *Session) Stats() SessionStats {
	format := s.Format()

	s.mu.Lock()
	started := s.started
	mode := s.mode
	s.mu.Unlock()

	captured := atomic.LoadUint64(&s.framesCaptured)

	var fpsReal float64
	if !started.IsZero() {
		if uptime := time.Since(started).Seconds(); uptime > 0 {
			fpsReal = float64(captured) / uptime
		}
	}

	var latencyMS int64
	if last := s.lastFrameAt.Load(); last != 0 {
		latencyMS = time.Since(time.Unix(0, last)).Milliseconds()
	}

	return SessionStats{
		SessionID:        s.id,
		State:            s.State(),
		Mode:             mode,
		FramesCaptured:   captured,
		FramesSkipped:    atomic.LoadUint64(&s.framesSkipped),
		StreamTicks:      atomic.LoadUint64(&s.streamTicks),
		FormatChanges:    atomic.LoadUint64(&s.formatChanges),
		Faults:           atomic.LoadUint64(&s.faults),
		BytesRead:        atomic.LoadUint64(&s.bytesRead),
		FPSTarget:        format.FPS(),
		FPSReal:          fpsReal,
		LatencyMS:        latencyMS,
		NativeResolution: format.Resolution(),
		OutputResolution: fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		Encoding:         format.Encoding,
	}
}

// reconfigure rebinds converter and intermediate buffer after the backend
// signalled a native format change. The desired output size is unchanged.
func (s *Session) reconfigure(next *NativeFormat) error {
	s.fmtMu.Lock()
	defer s.fmtMu.Unlock()

	prev := s.format
	format := prev
	if next != nil {
		if next.Width <= 0 || next.Height <= 0 {
			return fmt.Errorf("webcam-capture: format change to %s: %w", next, ErrBackendConfiguration)
		}
		format.Width = next.Width
		format.Height = next.Height
		format.Encoding = next.Encoding
		format.Order = next.Order
		format.Raw = next.Raw
	}

	conv, err := ConverterFor(format.Encoding)
	if err != nil {
		return fmt.Errorf("webcam-capture: format change: %w: %w", ErrBackendConfiguration, err)
	}

	s.format = format
	s.conv = conv
	if len(s.frame) != format.Width*format.Height*4 {
		s.frame = make([]byte, format.Width*format.Height*4)
	}
	atomic.AddUint64(&s.formatChanges, 1)

	slog.Info("webcam-capture: native format changed",
		"session_id", s.id,
		"from", fmt.Sprintf("%s %s", prev.Encoding, prev.Resolution()),
		"to", fmt.Sprintf("%s %s", format.Encoding, format.Resolution()),
	)
	return nil
}

// process converts one raw sample into the intermediate buffer and resamples
// it into the output buffer. Only called from the capturing goroutine.
func (s *Session) process(data []byte, ts time.Time) error {
	format, conv, frame := s.format, s.conv, s.frame
	if frame == nil || s.output == nil {
		return fmt.Errorf("webcam-capture: session buffers released: %w", ErrInvalidState)
	}

	stride, ok := sourceStride(len(data), conv.RowBytes(format.Width), format.Height)
	if !ok {
		return fmt.Errorf("webcam-capture: short %s sample (%d bytes for %s): %w",
			format.Encoding, len(data), format.Resolution(), ErrStreamFault)
	}

	if err := ConvertFrame(conv, data, stride, frame, format.Width, format.Height); err != nil {
		return err
	}
	if format.Order == OrderBGR {
		SwapRedBlue(frame)
	}

	Resample(frame, format.Width, format.Height, s.output, s.cfg.Width, s.cfg.Height)

	atomic.AddUint64(&s.framesCaptured, 1)
	atomic.AddUint64(&s.bytesRead, uint64(len(data)))
	if ts.IsZero() {
		ts = time.Now()
	}
	s.lastFrameAt.Store(ts.UnixNano())
	return nil
}

// fault counts, wraps and latches a stream fault
func (s *Session) fault(err error) error {
	atomic.AddUint64(&s.faults, 1)
	slog.Error("webcam-capture: stream fault",
		"session_id", s.id,
		"mode", s.mode.String(),
		"error", err,
		"frames_captured", atomic.LoadUint64(&s.framesCaptured),
	)
	if !errors.Is(err, ErrStreamFault) {
		err = fmt.Errorf("webcam-capture: %w: %w", ErrStreamFault, err)
	}
	s.faultErr.CompareAndSwap(nil, &err)
	return err
}
