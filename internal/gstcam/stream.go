package gstcam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// startTimeout bounds how long Start waits for the camera to reach PLAYING
const startTimeout = 5 * time.Second

// Stream is one camera pipeline delivering raw samples either by pull or by
// callback
type Stream struct {
	cfg   PipelineConfig
	elems *PipelineElements

	handlerMu sync.RWMutex
	handler   Handler

	// Caps tracking (streaming thread or puller)
	capsMu   sync.Mutex
	lastCaps string
	current  Format

	pullBuf []byte

	errCh  chan error
	fault  atomic.Pointer[error]
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	framesRead uint64
	bytesRead  uint64
	counters   ErrorCounters
}

// Open builds the pipeline for cfg. Samples flow after Start.
func Open(cfg PipelineConfig) (*Stream, error) {
	elems, err := CreatePipeline(cfg)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		cfg:     cfg,
		elems:   elems,
		current: Format{Name: cfg.Format, Width: cfg.Width, Height: cfg.Height},
		errCh:   make(chan error, 1),
	}

	elems.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return OnNewSample(sink, s)
		},
	})

	return s, nil
}

// Start sets the pipeline to PLAYING and waits until the camera delivers
//
// This method:
//  1. Sets pipeline state to PLAYING
//  2. Waits for PLAYING or an error (negotiation failures surface here)
//  3. Starts the bus monitor goroutine, which reports later faults on Err()
func (s *Stream) Start() error {
	if err := s.elems.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("gstcam: set pipeline to PLAYING: %w", err)
	}

	if err := WaitPlaying(s.elems.Pipeline, &s.counters, startTimeout); err != nil {
		s.elems.Pipeline.SetState(gst.StateNull)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := MonitorPipelineBus(ctx, s.elems.Pipeline, &s.counters, s.cfg.Device.Name); err != nil {
			s.report(err)
		}
	}()

	slog.Info("gstcam: stream playing",
		"device", s.cfg.Device.Name,
		"format", s.cfg.Format,
		"resolution", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"rate", s.cfg.Rate.String(),
	)
	return nil
}

// PullSample blocks until the appsink has a sample. The returned Data is
// reused by the next call.
func (s *Stream) PullSample() (Sample, error) {
	if err := s.Fault(); err != nil {
		return Sample{}, err
	}

	sample := s.elems.AppSink.PullSample()
	if sample == nil {
		// EOS or flushing; prefer the bus error when there is one
		if err := s.Fault(); err != nil {
			return Sample{}, err
		}
		return Sample{}, ErrEndOfStream
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return Sample{Timestamp: time.Now()}, nil
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if cap(s.pullBuf) < len(data) {
		s.pullBuf = make([]byte, len(data))
	}
	s.pullBuf = s.pullBuf[:len(data)]
	copy(s.pullBuf, data)
	buffer.Unmap()

	atomic.AddUint64(&s.framesRead, 1)
	atomic.AddUint64(&s.bytesRead, uint64(len(data)))

	return Sample{
		Data:      s.pullBuf,
		Format:    s.trackCaps(sample),
		Timestamp: time.Now(),
	}, nil
}

// SetHandler installs the callback handler. nil detaches it and waits for
// an in-flight callback to return.
func (s *Stream) SetHandler(h Handler) {
	s.handlerMu.Lock()
	s.handler = h
	s.handlerMu.Unlock()
}

// Err reports the first bus EOS or error after Start
func (s *Stream) Err() <-chan error {
	return s.errCh
}

// Fault returns the fault recorded by the bus monitor, if any
func (s *Stream) Fault() error {
	if p := s.fault.Load(); p != nil {
		return *p
	}
	return nil
}

// Release stops the pipeline and the monitor (idempotent)
func (s *Stream) Release() error {
	var err error
	s.once.Do(func() {
		s.SetHandler(nil)
		err = DestroyPipeline(s.elems)
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		slog.Info("gstcam: stream released",
			"device", s.cfg.Device.Name,
			"frames_read", atomic.LoadUint64(&s.framesRead),
			"bytes_read", atomic.LoadUint64(&s.bytesRead),
			"errors_device", atomic.LoadUint64(&s.counters.Device),
			"errors_negotiation", atomic.LoadUint64(&s.counters.Negotiation),
			"errors_permission", atomic.LoadUint64(&s.counters.Permission),
			"errors_unknown", atomic.LoadUint64(&s.counters.Unknown),
		)
	})
	return err
}

func (s *Stream) report(err error) {
	s.fault.CompareAndSwap(nil, &err)
	select {
	case s.errCh <- err:
	default:
	}
}

// IsEndOfStream reports whether err is an end-of-stream condition
func IsEndOfStream(err error) bool {
	return errors.Is(err, ErrEndOfStream)
}
