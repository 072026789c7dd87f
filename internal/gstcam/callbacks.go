package gstcam

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Sample is one raw frame from the appsink
type Sample struct {
	// Data is the mapped buffer. In callbacks it is only valid until the
	// handler returns; from PullSample until the next PullSample.
	Data []byte
	// Format is set when the sample's caps differ from the previous sample's
	// format (name or size)
	Format    *Format
	Timestamp time.Time
}

// Handler receives samples on the GStreamer streaming thread
type Handler func(Sample)

// OnNewSample is called by GStreamer when a new frame is available
//
// This callback:
//  1. Returns immediately when no handler is installed (the sample stays
//     queued for PullSample)
//  2. Pulls the sample from the appsink and maps its buffer (zero-copy)
//  3. Detects caps changes against the previous sample
//  4. Calls the handler while holding the handler read lock, so detaching
//     waits for it
//  5. Unmaps the buffer
//
// Always returns gst.FlowOK: a single bad sample must not stop the camera.
func OnNewSample(sink *app.Sink, s *Stream) gst.FlowReturn {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()

	if s.handler == nil {
		return gst.FlowOK
	}

	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstcam: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstcam: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	defer buffer.Unmap()

	out := Sample{
		Data:      data,
		Format:    s.trackCaps(sample),
		Timestamp: time.Now(),
	}

	seq := atomic.AddUint64(&s.framesRead, 1)
	atomic.AddUint64(&s.bytesRead, uint64(len(data)))

	slog.Debug("gstcam: sample delivered",
		"seq", seq,
		"size_bytes", len(data),
		"format_changed", out.Format != nil,
	)

	s.handler(out)
	return gst.FlowOK
}

// trackCaps compares the sample's caps with the last seen ones and returns
// the new format when name or size changed
func (s *Stream) trackCaps(sample *gst.Sample) *Format {
	caps := sample.GetCaps()
	if caps == nil {
		return nil
	}
	str := caps.String()

	s.capsMu.Lock()
	defer s.capsMu.Unlock()

	if str == s.lastCaps {
		return nil
	}
	s.lastCaps = str

	formats := ParseCaps(str)
	if len(formats) == 0 {
		return nil
	}
	next := formats[0]
	if next.Name == s.current.Name && next.Width == s.current.Width && next.Height == s.current.Height {
		return nil
	}

	slog.Info("gstcam: caps changed",
		"from", s.current.Caps,
		"to", next.Caps,
	)
	s.current = next
	return &next
}
