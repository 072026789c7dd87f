package emitter

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/config"
)

type fakeToken struct {
	mqtt.Token
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool                     { return !t.timedOut }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	token *fakeToken
	sent  []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) Disconnect(quiesce uint) {}

func newTestEmitter(token *fakeToken) (*MQTTEmitter, *fakeClient) {
	cfg := config.MQTTConfig{
		Broker: "tcp://localhost:1883",
		QoS:    1,
		Topics: config.MQTTTopics{Stats: "care/capture/test/stats", Frames: "care/capture/test/frames"},
	}
	client := &fakeClient{token: token}
	e := NewMQTTEmitter(cfg)
	e.Client = client
	e.setConnected(true)
	return e, client
}

func TestPublishStats(t *testing.T) {
	e, client := newTestEmitter(&fakeToken{})

	now := time.UnixMilli(1700000000123)
	stats := webcamcapture.SessionStats{
		SessionID:        "s-1",
		State:            webcamcapture.StateStreaming,
		Mode:             webcamcapture.ModeAsync,
		FramesCaptured:   42,
		FramesSkipped:    7,
		FPSTarget:        15,
		FPSReal:          14.8,
		NativeResolution: "640x480",
		OutputResolution: "320x240",
		Encoding:         webcamcapture.EncodingYUY2,
	}

	if err := e.PublishStats(NewStatsPayload("room-1", stats, now)); err != nil {
		t.Fatalf("PublishStats() error = %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.sent))
	}
	msg := client.sent[0]
	if msg.topic != "care/capture/test/stats" || msg.qos != 1 {
		t.Errorf("published to %s qos %d", msg.topic, msg.qos)
	}

	var got StatsPayload
	if err := Decode(msg.payload, &got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.State != "streaming" || got.Mode != "async" || got.Encoding != "YUY2" {
		t.Errorf("enum fields = %s/%s/%s", got.State, got.Mode, got.Encoding)
	}
	if got.FramesCaptured != 42 || got.FramesSkipped != 7 || got.Timestamp != now.UnixMilli() {
		t.Errorf("decoded payload = %+v", got)
	}

	if n := e.Stats().Published["care/capture/test/stats"]; n != 1 {
		t.Errorf("published count = %d, want 1", n)
	}
}

func TestPublishFrame_TraceIDs(t *testing.T) {
	e, client := newTestEmitter(&fakeToken{})

	ts := time.Now()
	first := NewFrameEvent("s-1", 1, 320, 240, ts)
	second := NewFrameEvent("s-1", 2, 320, 240, ts)
	if first.TraceID == second.TraceID {
		t.Fatal("frame events share a trace id")
	}
	if _, err := uuid.Parse(first.TraceID); err != nil {
		t.Errorf("trace id %q is not a uuid: %v", first.TraceID, err)
	}

	first.Snapshot = "/tmp/frames/frame_000001.png"
	if err := e.PublishFrame(first); err != nil {
		t.Fatalf("PublishFrame() error = %v", err)
	}

	var got FrameEvent
	if err := Decode(client.sent[0].payload, &got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != first {
		t.Errorf("decoded = %+v, want %+v", got, first)
	}
}

func TestPublish_Failures(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
		down  bool
		want  error
	}{
		{name: "not connected", token: &fakeToken{}, down: true, want: ErrNotConnected},
		{name: "timeout", token: &fakeToken{timedOut: true}},
		{name: "broker error", token: &fakeToken{err: errors.New("refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEmitter(tt.token)
			if tt.down {
				e.setConnected(false)
			}

			err := e.PublishFrame(NewFrameEvent("s", 1, 1, 1, time.Now()))
			if err == nil {
				t.Fatal("PublishFrame() error = nil, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("PublishFrame() error = %v, want %v", err, tt.want)
			}
			if e.Stats().Errors != 1 {
				t.Errorf("Errors = %d, want 1", e.Stats().Errors)
			}
		})
	}
}

func TestDisconnect(t *testing.T) {
	e, _ := newTestEmitter(&fakeToken{})
	e.Disconnect()
	if e.Stats().Connected {
		t.Error("Connected = true after Disconnect")
	}
}
