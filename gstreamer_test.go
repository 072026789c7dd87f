package webcamcapture

import (
	"context"
	"errors"
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/gstcam"
)

func TestNativeFromGst(t *testing.T) {
	rate := []gstcam.RateRange{{Min: gstcam.Fraction{Num: 5, Den: 1}, Max: gstcam.Fraction{Num: 30, Den: 1}}}

	tests := []struct {
		name      string
		gstName   string
		wantOK    bool
		wantEnc   Encoding
		wantOrder ChannelOrder
	}{
		{"YUY2", "YUY2", true, EncodingYUY2, OrderRGB},
		{"YUYV alias", "YUYV", true, EncodingYUY2, OrderRGB},
		{"RGB", "RGB", true, EncodingRGB24, OrderRGB},
		{"BGR", "BGR", true, EncodingRGB24, OrderBGR},
		{"RGBx", "RGBx", true, EncodingRGB32, OrderRGB},
		{"BGRA", "BGRA", true, EncodingRGB32, OrderBGR},
		{"BGRx", "BGRx", true, EncodingRGB32, OrderBGR},
		{"NV12 kept for negotiation", "NV12", true, EncodingNV12, OrderRGB},
		{"I420 skipped", "I420", false, EncodingNone, OrderRGB},
		{"UYVY skipped", "UYVY", false, EncodingNone, OrderRGB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nf, ok := nativeFromGst(gstcam.Format{Name: tt.gstName, Width: 640, Height: 480, Rates: rate})
			if ok != tt.wantOK {
				t.Fatalf("nativeFromGst(%s) ok = %v, want %v", tt.gstName, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if nf.Encoding != tt.wantEnc || nf.Order != tt.wantOrder {
				t.Errorf("nativeFromGst(%s) = %s/%s, want %s/%s", tt.gstName, nf.Encoding, nf.Order, tt.wantEnc, tt.wantOrder)
			}
			if nf.Width != 640 || nf.Height != 480 {
				t.Errorf("size = %dx%d, want 640x480", nf.Width, nf.Height)
			}
			if len(nf.FPSRanges) != 1 || nf.FPSRanges[0] != (FPSRange{Min: 5, Max: 30}) {
				t.Errorf("FPSRanges = %v, want [{5 30}]", nf.FPSRanges)
			}
			if nf.Raw != tt.gstName {
				t.Errorf("Raw = %q, want %q", nf.Raw, tt.gstName)
			}
		})
	}
}

func TestGstFormatName(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		enc    Encoding
		order  ChannelOrder
		want   string
		wantOK bool
	}{
		{"raw name preserved", "BGRx", EncodingRGB32, OrderBGR, "BGRx", true},
		{"raw alias preserved", "YUYV", EncodingYUY2, OrderRGB, "YUYV", true},
		{"canonical YUY2", "", EncodingYUY2, OrderRGB, "YUY2", true},
		{"canonical BGR32", "", EncodingRGB32, OrderBGR, "BGRA", true},
		{"canonical RGB32", "", EncodingRGB32, OrderRGB, "RGBA", true},
		{"canonical BGR24", "", EncodingRGB24, OrderBGR, "BGR", true},
		{"mismatched raw ignored", "BGR", EncodingRGB24, OrderRGB, "RGB", true},
		{"NV12 not streamable", "", EncodingNV12, OrderRGB, "", false},
		{"none", "", EncodingNone, OrderRGB, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := gstFormatName(tt.raw, tt.enc, tt.order)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("gstFormatName(%q, %s, %s) = %q, %v; want %q, %v", tt.raw, tt.enc, tt.order, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTranslateStreamErr(t *testing.T) {
	eos := translateStreamErr(gstcam.ErrEndOfStream)
	if !errors.Is(eos, ErrEndOfStream) {
		t.Errorf("translateStreamErr(EOS) = %v, want ErrEndOfStream", eos)
	}

	neg := translateStreamErr(&gstcam.BusError{Category: gstcam.ErrCategoryNegotiation, Message: "not-negotiated"})
	if !errors.Is(neg, ErrBackendConfiguration) {
		t.Errorf("translateStreamErr(negotiation) = %v, want ErrBackendConfiguration", neg)
	}

	dev := &gstcam.BusError{Category: gstcam.ErrCategoryDevice, Message: "device gone"}
	if got := translateStreamErr(dev); got != dev {
		t.Errorf("translateStreamErr(device) = %v, want passthrough", got)
	}
}

func TestSampleFromGst_FormatChange(t *testing.T) {
	plain := sampleFromGst(gstcam.Sample{Data: []byte{1, 2}})
	if plain.Flags.Has(FlagFormatChanged) || plain.Format != nil {
		t.Errorf("sample without caps change flagged: %+v", plain)
	}

	changed := sampleFromGst(gstcam.Sample{Data: []byte{1, 2}, Format: &gstcam.Format{Name: "RGB", Width: 2, Height: 1}})
	if !changed.Flags.Has(FlagFormatChanged) || changed.Format == nil || changed.Format.Encoding != EncodingRGB24 {
		t.Errorf("caps change not translated: %+v", changed)
	}

	unknown := sampleFromGst(gstcam.Sample{Data: []byte{1, 2}, Format: &gstcam.Format{Name: "I420", Width: 2, Height: 2}})
	if !unknown.Flags.Has(FlagFormatChanged) || unknown.Format == nil || unknown.Format.Encoding != EncodingNone {
		t.Errorf("unknown caps change = %+v, want EncodingNone change", unknown)
	}
}

// TestGStreamerSession_StopIdempotent runs a real camera when one is attached
func TestGStreamerSession_StopIdempotent(t *testing.T) {
	backend := NewGStreamerBackend()
	devices, err := backend.EnumerateDevices()
	if err != nil || len(devices) == 0 {
		t.Skipf("Skipping test: no camera available (devices=%d, err=%v)", len(devices), err)
	}

	s, err := NewSession(backend, Config{DeviceIndex: 0, Width: 320, Height: 240, FPSNum: 15})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := s.Init(context.Background()); err != nil {
		t.Skipf("Skipping test: camera %q did not negotiate: %v", devices[0].Name, err)
	}
	t.Logf("negotiated %s %s @ %.2f fps (%s mode)", s.Format().Encoding, s.Format().Resolution(), s.Format().FPS(), s.Mode())

	if err := s.SetBuffer(make([]byte, 320*240*4)); err != nil {
		t.Fatalf("SetBuffer() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := s.Stop(); err != nil {
		t.Errorf("first Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
