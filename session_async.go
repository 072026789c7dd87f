package webcamcapture

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Async handoff states. The consumer moves idle → requested and ready →
// idle; the producer moves requested → busy → ready. The producer only
// writes the output buffer in busy, which it can only enter from a request
// made after the consumer took the previous frame.
const (
	handoffIdle int32 = iota
	handoffRequested
	handoffBusy
	handoffReady
)

// captureAsync is the non-blocking poll. A finished frame is handed over
// without a new request, so the output buffer stays untouched until the
// next poll.
func (s *Session) captureAsync() (bool, error) {
	select {
	case err, ok := <-s.push.Err():
		if ok && err != nil {
			return false, s.fault(err)
		}
	case err := <-s.asyncFault:
		return false, s.fault(err)
	default:
	}

	if s.handoff.CompareAndSwap(handoffReady, handoffIdle) {
		return true, nil
	}
	s.handoff.CompareAndSwap(handoffIdle, handoffRequested)
	return false, nil
}

// onSample runs on the backend's callback goroutine. Work is skipped unless
// the consumer asked for a frame since it took the last one.
func (s *Session) onSample(sample Sample) {
	if sample.Flags.Has(FlagStreamTick) || len(sample.Data) == 0 {
		return
	}

	if sample.Flags.Has(FlagFormatChanged) {
		if err := s.reconfigure(sample.Format); err != nil {
			s.reportAsyncFault(err)
			return
		}
	}

	if !s.handoff.CompareAndSwap(handoffRequested, handoffBusy) {
		atomic.AddUint64(&s.framesSkipped, 1)
		return
	}

	if err := s.process(sample.Data, sample.Timestamp); err != nil {
		// Back to requested so the next sample retries
		s.handoff.Store(handoffRequested)
		s.reportAsyncFault(err)
		return
	}

	// Publish only after the output write completed
	s.handoff.Store(handoffReady)
}

// reportAsyncFault hands a callback-side failure to the next DoCapture.
// Only the first pending fault is kept.
func (s *Session) reportAsyncFault(err error) {
	select {
	case s.asyncFault <- fmt.Errorf("webcam-capture: callback: %w", err):
	default:
	}
	slog.Warn("webcam-capture: callback failed", "session_id", s.id, "error", err)
}
