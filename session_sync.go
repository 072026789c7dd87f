package webcamcapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// captureSync pulls samples until one carries pixel data, reconfigures on a
// native format change, then converts and resamples into the output buffer.
// Blocks the caller for the whole pass.
func (s *Session) captureSync() (bool, error) {
	pull := s.pull

	var sample Sample
	for {
		var err error
		sample, err = pull.PullSample()
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				return false, s.fault(fmt.Errorf("webcam-capture: pull sample: %w: %w", ErrStreamFault, err))
			}
			return false, s.fault(fmt.Errorf("webcam-capture: pull sample: %w", err))
		}

		if sample.Flags.Has(FlagStreamTick) || len(sample.Data) == 0 {
			atomic.AddUint64(&s.streamTicks, 1)
			slog.Debug("webcam-capture: stream tick, pulling again", "session_id", s.id)
			continue
		}
		break
	}

	if sample.Flags.Has(FlagFormatChanged) {
		if err := s.reconfigure(sample.Format); err != nil {
			return false, s.fault(err)
		}
	}

	if err := s.process(sample.Data, sample.Timestamp); err != nil {
		return false, s.fault(err)
	}

	slog.Debug("webcam-capture: frame captured",
		"session_id", s.id,
		"seq", atomic.LoadUint64(&s.framesCaptured),
		"size_bytes", len(sample.Data),
	)
	return true, nil
}
