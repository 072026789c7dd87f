// Package mockcam is a synthetic capture backend.
//
// It enumerates fake devices, offers a configurable list of native formats
// and generates color-bar frames in the negotiated encoding. Tests drive it
// deterministically (Inject, Emit, ChangeFormat, EndOfStream); the CLI uses
// it as "backend: mock" for demos without a camera.
package mockcam

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
)

// Kind selects which delivery models the opened streams support
type Kind int

const (
	// KindBoth streams implement PullStream and CallbackStream
	KindBoth Kind = iota
	// KindPull streams only implement PullStream
	KindPull
	// KindCallback streams only implement CallbackStream
	KindCallback
)

// Options configures a mock backend
type Options struct {
	// Devices lists device names. Default: a single "Mock Camera".
	Devices []string
	// Formats lists the native formats every device offers.
	// Default: DefaultFormats().
	Formats []webcamcapture.NativeFormat
	// Kind selects the stream delivery models
	Kind Kind
	// Paced makes streams deliver at the negotiated frame rate. Unpaced pull
	// streams return a frame immediately.
	Paced bool
	// Manual disables the callback generator goroutine; samples are only
	// delivered through Emit.
	Manual bool
	// Jitter spreads each paced frame period uniformly over
	// [period-Jitter, period+Jitter], like a camera fighting for USB
	// bandwidth
	Jitter time.Duration
}

// DefaultFormats mirrors a typical USB webcam: YUY2 at several sizes, a BGR
// RGB24 mode and an NV12 mode no session can convert
func DefaultFormats() []webcamcapture.NativeFormat {
	r30 := []webcamcapture.FPSRange{{Min: 5, Max: 30}}
	return []webcamcapture.NativeFormat{
		{Width: 640, Height: 480, Encoding: webcamcapture.EncodingYUY2, FPSRanges: r30},
		{Width: 1280, Height: 720, Encoding: webcamcapture.EncodingYUY2, FPSRanges: []webcamcapture.FPSRange{{Min: 5, Max: 10}}},
		{Width: 320, Height: 240, Encoding: webcamcapture.EncodingYUY2, FPSRanges: r30},
		{Width: 640, Height: 480, Encoding: webcamcapture.EncodingRGB24, Order: webcamcapture.OrderBGR, FPSRanges: r30},
		{Width: 640, Height: 480, Encoding: webcamcapture.EncodingNV12, FPSRanges: r30},
	}
}

// Backend is a webcamcapture.Backend producing synthetic frames
type Backend struct {
	opts Options

	mu sync.Mutex
	// Failure injection, checked on the matching call
	ActivateErr error
	ListErr     error
	OpenErr     error
	StartErr    error

	devices []*Device
	streams []*Stream
}

// New creates a mock backend
func New(opts Options) *Backend {
	if len(opts.Devices) == 0 {
		opts.Devices = []string{"Mock Camera"}
	}
	if opts.Formats == nil {
		opts.Formats = DefaultFormats()
	}
	return &Backend{opts: opts}
}

// EnumerateDevices lists the configured device names
func (b *Backend) EnumerateDevices() ([]webcamcapture.DeviceInfo, error) {
	infos := make([]webcamcapture.DeviceInfo, len(b.opts.Devices))
	for i, name := range b.opts.Devices {
		infos[i] = webcamcapture.DeviceInfo{Index: i, Name: name, Path: fmt.Sprintf("mock://%d", i)}
	}
	return infos, nil
}

// Activate opens device index
func (b *Backend) Activate(index int) (webcamcapture.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ActivateErr != nil {
		return nil, b.ActivateErr
	}
	if index < 0 || index >= len(b.opts.Devices) {
		return nil, fmt.Errorf("mockcam: no device at index %d (%d attached)", index, len(b.opts.Devices))
	}
	dev := &Device{info: webcamcapture.DeviceInfo{
		Index: index,
		Name:  b.opts.Devices[index],
		Path:  fmt.Sprintf("mock://%d", index),
	}}
	b.devices = append(b.devices, dev)
	return dev, nil
}

// ListNativeFormats returns the configured formats
func (b *Backend) ListNativeFormats(dev webcamcapture.Device) ([]webcamcapture.NativeFormat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ListErr != nil {
		return nil, b.ListErr
	}
	formats := make([]webcamcapture.NativeFormat, len(b.opts.Formats))
	copy(formats, b.opts.Formats)
	return formats, nil
}

// OpenStream configures a synthetic stream for format
func (b *Backend) OpenStream(dev webcamcapture.Device, format webcamcapture.NegotiatedFormat) (webcamcapture.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	s := newStream(format, b.opts, b.StartErr)
	b.streams = append(b.streams, s)

	switch b.opts.Kind {
	case KindPull:
		return pullOnly{s}, nil
	case KindCallback:
		return callbackOnly{s}, nil
	default:
		return s, nil
	}
}

// LastDevice returns the most recently activated device, or nil
func (b *Backend) LastDevice() *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.devices) == 0 {
		return nil
	}
	return b.devices[len(b.devices)-1]
}

// LastStream returns the most recently opened stream, or nil
func (b *Backend) LastStream() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		return nil
	}
	return b.streams[len(b.streams)-1]
}

// Device is an activated mock device
type Device struct {
	info webcamcapture.DeviceInfo

	mu       sync.Mutex
	released int
}

// Info returns the device identity
func (d *Device) Info() webcamcapture.DeviceInfo {
	return d.info
}

// Release marks the device released (idempotent)
func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released++
	return nil
}

// Released reports whether Release was called
func (d *Device) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released > 0
}

// Stream is a synthetic sample source supporting both delivery models
type Stream struct {
	opts     Options
	startErr error

	mu       sync.Mutex
	format   webcamcapture.NegotiatedFormat
	pending  *webcamcapture.NativeFormat // announced on the next sample
	queue    []webcamcapture.Sample
	eos      bool
	started  bool
	released bool
	seq      uint64

	// handler is read under handlerMu.RLock for the whole invocation, so
	// SetSampleHandler(nil) waits for in-flight callbacks
	handlerMu sync.RWMutex
	handler   func(webcamcapture.Sample)

	errCh chan error
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func newStream(format webcamcapture.NegotiatedFormat, opts Options, startErr error) *Stream {
	return &Stream{
		opts:     opts,
		startErr: startErr,
		format:   format,
		errCh:    make(chan error, 1),
		stop:     make(chan struct{}),
	}
}

// Start begins delivery. When a sample handler is installed the generator
// goroutine is spawned, unless Options.Manual is set.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startErr != nil {
		return s.startErr
	}
	if s.released {
		return errors.New("mockcam: stream released")
	}
	if s.started {
		return nil
	}
	s.started = true

	s.handlerMu.RLock()
	push := s.handler != nil
	s.handlerMu.RUnlock()

	if push && !s.opts.Manual {
		s.wg.Add(1)
		go s.generate()
	}

	slog.Debug("mockcam: stream started",
		"format", fmt.Sprintf("%s %s", s.format.Encoding, s.format.Resolution()),
		"fps", s.format.FPS(),
	)
	return nil
}

// Release stops the generator and waits for it (idempotent)
func (s *Stream) Release() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()
	})
	return nil
}

// Started reports whether Start succeeded
func (s *Stream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Released reports whether Release was called
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Format returns the format frames are currently generated in
func (s *Stream) Format() webcamcapture.NegotiatedFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// PullSample returns the next injected sample, or a synthetic frame
func (s *Stream) PullSample() (webcamcapture.Sample, error) {
	s.mu.Lock()
	if !s.started || s.released {
		s.mu.Unlock()
		return webcamcapture.Sample{}, errors.New("mockcam: stream not started")
	}
	if len(s.queue) > 0 {
		sample := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return sample, nil
	}
	if s.eos {
		s.mu.Unlock()
		return webcamcapture.Sample{}, webcamcapture.ErrEndOfStream
	}
	interval := s.interval()
	s.mu.Unlock()

	if s.opts.Paced && interval > 0 {
		select {
		case <-time.After(s.jittered(interval)):
		case <-s.stop:
			return webcamcapture.Sample{}, webcamcapture.ErrEndOfStream
		}
	}
	return s.next(), nil
}

// SetSampleHandler installs handler; nil detaches after in-flight calls finish
func (s *Stream) SetSampleHandler(handler func(webcamcapture.Sample)) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// Err reports end-of-stream for callback delivery
func (s *Stream) Err() <-chan error {
	return s.errCh
}

// Emit delivers samples to the handler on the calling goroutine. Without
// arguments it delivers one synthetic frame.
func (s *Stream) Emit(sample ...webcamcapture.Sample) {
	if len(sample) == 0 {
		s.deliver(s.next())
		return
	}
	for _, smp := range sample {
		s.deliver(smp)
	}
}

// Inject queues samples returned by PullSample ahead of synthetic frames
func (s *Stream) Inject(samples ...webcamcapture.Sample) {
	s.mu.Lock()
	s.queue = append(s.queue, samples...)
	s.mu.Unlock()
}

// ChangeFormat switches generation to next. The following synthetic frame
// carries FlagFormatChanged.
func (s *Stream) ChangeFormat(next webcamcapture.NativeFormat) {
	s.mu.Lock()
	s.pending = &next
	s.mu.Unlock()
}

// EndOfStream ends the stream. Pull delivery returns ErrEndOfStream once the
// queue drains; callback delivery reports it on Err.
func (s *Stream) EndOfStream() {
	s.mu.Lock()
	s.eos = true
	s.mu.Unlock()

	select {
	case s.errCh <- fmt.Errorf("mockcam: %w", webcamcapture.ErrEndOfStream):
	default:
	}
}

func (s *Stream) deliver(sample webcamcapture.Sample) {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()
	if s.handler != nil {
		s.handler(sample)
	}
}

// interval is the frame period at the current rate. Caller holds s.mu.
func (s *Stream) interval() time.Duration {
	fps := s.format.FPS()
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// jittered applies Options.Jitter to one frame period
func (s *Stream) jittered(period time.Duration) time.Duration {
	if s.opts.Jitter <= 0 {
		return period
	}
	d := period - s.opts.Jitter + time.Duration(rand.Int63n(int64(2*s.opts.Jitter)+1))
	return max(d, time.Millisecond)
}

// next renders the next synthetic frame, applying a pending format change
func (s *Stream) next() webcamcapture.Sample {
	s.mu.Lock()
	var flags webcamcapture.SampleFlags
	var announced *webcamcapture.NativeFormat
	if s.pending != nil {
		announced = s.pending
		s.format.Width = announced.Width
		s.format.Height = announced.Height
		s.format.Encoding = announced.Encoding
		s.format.Order = announced.Order
		s.pending = nil
		flags |= webcamcapture.FlagFormatChanged
	}
	format := s.format
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	data, err := Encode(ColorBars(format.Width, format.Height, int(seq-1)), format.Width, format.Height, format.Encoding, format.Order)
	if err != nil {
		// Unencodable formats produce an empty sample, which sessions skip
		slog.Warn("mockcam: cannot render frame", "encoding", format.Encoding.String(), "error", err)
	}
	return webcamcapture.Sample{
		Data:      data,
		Flags:     flags,
		Format:    announced,
		Timestamp: time.Now(),
	}
}

// generate runs the callback delivery loop at the negotiated frame rate
func (s *Stream) generate() {
	defer s.wg.Done()

	s.mu.Lock()
	interval := s.interval()
	s.mu.Unlock()
	if interval <= 0 {
		interval = time.Second / 30
	}

	timer := time.NewTimer(s.jittered(interval))
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-timer.C:
			timer.Reset(s.jittered(interval))
			s.mu.Lock()
			if s.eos {
				s.mu.Unlock()
				return
			}
			var sample *webcamcapture.Sample
			if len(s.queue) > 0 {
				sample = &s.queue[0]
				s.queue = s.queue[1:]
			}
			s.mu.Unlock()

			if sample != nil {
				s.deliver(*sample)
				continue
			}
			s.deliver(s.next())
		}
	}
}

// pullOnly hides the callback methods of a Stream
type pullOnly struct{ s *Stream }

func (p pullOnly) Start() error { return p.s.Start() }

func (p pullOnly) Release() error { return p.s.Release() }

func (p pullOnly) PullSample() (webcamcapture.Sample, error) { return p.s.PullSample() }

// callbackOnly hides PullSample of a Stream
type callbackOnly struct{ s *Stream }

func (c callbackOnly) Start() error { return c.s.Start() }

func (c callbackOnly) Release() error { return c.s.Release() }

func (c callbackOnly) SetSampleHandler(h func(webcamcapture.Sample)) { c.s.SetSampleHandler(h) }

func (c callbackOnly) Err() <-chan error { return c.s.Err() }
