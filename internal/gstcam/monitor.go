package gstcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCounters holds atomic counters for different error categories
type ErrorCounters struct {
	Device      uint64
	Negotiation uint64
	Permission  uint64
	Unknown     uint64
}

func (c *ErrorCounters) add(category ErrorCategory) {
	switch category {
	case ErrCategoryDevice:
		atomic.AddUint64(&c.Device, 1)
	case ErrCategoryNegotiation:
		atomic.AddUint64(&c.Negotiation, 1)
	case ErrCategoryPermission:
		atomic.AddUint64(&c.Permission, 1)
	default:
		atomic.AddUint64(&c.Unknown, 1)
	}
}

// BusError is a classified pipeline error posted on the bus
type BusError struct {
	Category ErrorCategory
	Message  string
	Debug    string
}

func (e *BusError) Error() string {
	return fmt.Sprintf("gstcam: pipeline error [%s]: %s", e.Category, e.Message)
}

// busPollInterval bounds how long shutdown waits on a TimedPop
const busPollInterval = 50 * time.Millisecond

// WaitPlaying blocks until the pipeline reaches PLAYING, posts an error or
// EOS, or timeout elapses. Live sources report negotiation failures here
// rather than from SetState.
func WaitPlaying(pipeline *gst.Pipeline, counters *ErrorCounters, timeout time.Duration) error {
	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			return busError(msg, counters)

		case gst.MessageEOS:
			return ErrEndOfStream

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				_, newState := msg.ParseStateChanged()
				if newState == gst.StatePlaying {
					return nil
				}
			}
		}
	}
	return fmt.Errorf("gstcam: pipeline did not reach PLAYING within %s", timeout)
}

// MonitorPipelineBus watches the bus of a playing pipeline
//
// This function:
//  1. Polls pipeline bus for messages (EOS, Error, StateChanged)
//  2. Classifies errors and updates the counters atomically
//  3. Returns the first EOS or error
//
// Returns nil if context is cancelled (graceful shutdown).
func MonitorPipelineBus(ctx context.Context, pipeline *gst.Pipeline, counters *ErrorCounters, device string) error {
	if pipeline == nil {
		return fmt.Errorf("gstcam: pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()
	startedAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstcam: context cancelled, stopping pipeline monitor")
			return nil

		default:
			msg := bus.TimedPop(busPollInterval)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Info("gstcam: end of stream received",
					"device", device,
					"uptime", time.Since(startedAt),
				)
				return ErrEndOfStream

			case gst.MessageError:
				err := busError(msg, counters)
				slog.Error("gstcam: pipeline error",
					"error", err.Message,
					"debug", err.Debug,
					"category", err.Category.String(),
					"device", device,
					"uptime", time.Since(startedAt),
				)
				return err

			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					oldState, newState := msg.ParseStateChanged()
					slog.Debug("gstcam: pipeline state changed",
						"from", oldState,
						"to", newState,
					)
				}
			}
		}
	}
}

func busError(msg *gst.Message, counters *ErrorCounters) *BusError {
	gerr := msg.ParseError()
	category := ClassifyGStreamerError(gerr)
	if counters != nil {
		counters.add(category)
	}
	return &BusError{
		Category: category,
		Message:  gerr.Error(),
		Debug:    gerr.DebugString(),
	}
}
