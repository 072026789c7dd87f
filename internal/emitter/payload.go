package emitter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
)

// StatsPayload is the periodic capture health report
type StatsPayload struct {
	InstanceID       string  `msgpack:"instance_id"`
	SessionID        string  `msgpack:"session_id"`
	Timestamp        int64   `msgpack:"ts_ms"`
	State            string  `msgpack:"state"`
	Mode             string  `msgpack:"mode"`
	FramesCaptured   uint64  `msgpack:"frames_captured"`
	FramesSkipped    uint64  `msgpack:"frames_skipped"`
	StreamTicks      uint64  `msgpack:"stream_ticks"`
	FormatChanges    uint64  `msgpack:"format_changes"`
	Faults           uint64  `msgpack:"faults"`
	BytesRead        uint64  `msgpack:"bytes_read"`
	FPSTarget        float64 `msgpack:"fps_target"`
	FPSReal          float64 `msgpack:"fps_real"`
	LatencyMS        int64   `msgpack:"latency_ms"`
	NativeResolution string  `msgpack:"native_resolution"`
	OutputResolution string  `msgpack:"output_resolution"`
	Encoding         string  `msgpack:"encoding"`
}

// NewStatsPayload snapshots session stats for publishing
func NewStatsPayload(instanceID string, s webcamcapture.SessionStats, now time.Time) StatsPayload {
	return StatsPayload{
		InstanceID:       instanceID,
		SessionID:        s.SessionID,
		Timestamp:        now.UnixMilli(),
		State:            s.State.String(),
		Mode:             s.Mode.String(),
		FramesCaptured:   s.FramesCaptured,
		FramesSkipped:    s.FramesSkipped,
		StreamTicks:      s.StreamTicks,
		FormatChanges:    s.FormatChanges,
		Faults:           s.Faults,
		BytesRead:        s.BytesRead,
		FPSTarget:        s.FPSTarget,
		FPSReal:          s.FPSReal,
		LatencyMS:        s.LatencyMS,
		NativeResolution: s.NativeResolution,
		OutputResolution: s.OutputResolution,
		Encoding:         s.Encoding.String(),
	}
}

// FrameEvent announces one captured frame (pixels are not published)
type FrameEvent struct {
	TraceID   string `msgpack:"trace_id"`
	SessionID string `msgpack:"session_id"`
	Seq       uint64 `msgpack:"seq"`
	Timestamp int64  `msgpack:"ts_ms"`
	Width     int    `msgpack:"width"`
	Height    int    `msgpack:"height"`
	Snapshot  string `msgpack:"snapshot,omitempty"`
}

// NewFrameEvent stamps a frame with a fresh trace ID
func NewFrameEvent(sessionID string, seq uint64, width, height int, ts time.Time) FrameEvent {
	return FrameEvent{
		TraceID:   uuid.New().String(),
		SessionID: sessionID,
		Seq:       seq,
		Timestamp: ts.UnixMilli(),
		Width:     width,
		Height:    height,
	}
}

// Encode marshals a payload with msgpack
func Encode(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("emitter: marshal %T: %w", v, err)
	}
	return b, nil
}

// Decode unmarshals a msgpack payload
func Decode(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("emitter: unmarshal %T: %w", v, err)
	}
	return nil
}
