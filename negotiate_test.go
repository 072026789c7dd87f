package webcamcapture

import (
	"errors"
	"testing"
)

func yuy2(w, h int, ranges ...FPSRange) NativeFormat {
	if len(ranges) == 0 {
		ranges = []FPSRange{{Min: 5, Max: 30}}
	}
	return NativeFormat{Width: w, Height: h, Encoding: EncodingYUY2, FPSRanges: ranges}
}

func TestNegotiate_Resolution(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		candidates []NativeFormat
		wantW      int
		wantH      int
	}{
		{
			name:       "exact match first",
			w:          640,
			h:          480,
			candidates: []NativeFormat{yuy2(640, 480), yuy2(1280, 720)},
			wantW:      640,
			wantH:      480,
		},
		{
			name:       "exact match wins anywhere in the list",
			w:          640,
			h:          480,
			candidates: []NativeFormat{yuy2(800, 600), yuy2(1920, 1080), yuy2(640, 480)},
			wantW:      640,
			wantH:      480,
		},
		{
			name:       "smallest larger candidate",
			w:          600,
			h:          400,
			candidates: []NativeFormat{yuy2(1920, 1080), yuy2(640, 480), yuy2(1280, 720)},
			wantW:      640,
			wantH:      480,
		},
		{
			name:       "smaller candidates ignored",
			w:          1000,
			h:          700,
			candidates: []NativeFormat{yuy2(640, 480), yuy2(1280, 720), yuy2(320, 240)},
			wantW:      1280,
			wantH:      720,
		},
		{
			name:       "tie keeps the first candidate",
			w:          600,
			h:          400,
			candidates: []NativeFormat{yuy2(700, 500), yuy2(650, 500)},
			wantW:      700,
			wantH:      500,
		},
		{
			// 1000x481 errs (360, 1), 900x800 errs (260, 320). The first is
			// closer by total and area error, the second by the larger axis
			// error, which is the one compared.
			name:       "larger axis error decides",
			w:          640,
			h:          480,
			candidates: []NativeFormat{yuy2(1000, 481), yuy2(900, 800)},
			wantW:      900,
			wantH:      800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Negotiate(tt.w, tt.h, 30, 1, tt.candidates)
			if err != nil {
				t.Fatalf("Negotiate() error = %v", err)
			}
			if got.Width != tt.wantW || got.Height != tt.wantH {
				t.Errorf("Negotiate() = %s, want %dx%d", got.Resolution(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestNegotiate_Deterministic(t *testing.T) {
	candidates := []NativeFormat{yuy2(1920, 1080), yuy2(800, 600), yuy2(1280, 720), yuy2(1024, 768)}
	first, err := Negotiate(700, 500, 15, 1, candidates)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		got, _ := Negotiate(700, 500, 15, 1, candidates)
		if got.Width != first.Width || got.Height != first.Height {
			t.Fatalf("run %d: Negotiate() = %s, want %s", i, got.Resolution(), first.Resolution())
		}
	}
}

func TestNegotiate_FrameRate(t *testing.T) {
	tests := []struct {
		name      string
		ranges    []FPSRange
		num, den  int
		wantErr   bool
		wantRange FPSRange
	}{
		{"inside range", []FPSRange{{Min: 5, Max: 30}}, 15, 1, false, FPSRange{Min: 5, Max: 30}},
		{"first admitting range", []FPSRange{{Min: 1, Max: 10}, {Min: 15, Max: 60}, {Min: 20, Max: 30}}, 25, 1, false, FPSRange{Min: 15, Max: 60}},
		{"floor of min admits", []FPSRange{{Min: 29.97, Max: 60}}, 29, 1, false, FPSRange{Min: 29.97, Max: 60}},
		{"ceil of max admits", []FPSRange{{Min: 5, Max: 29.97}}, 30, 1, false, FPSRange{Min: 5, Max: 29.97}},
		{"fractional rate", []FPSRange{{Min: 29.97, Max: 29.97}}, 30000, 1001, false, FPSRange{Min: 29.97, Max: 29.97}},
		{"above every range", []FPSRange{{Min: 5, Max: 30}}, 60, 1, true, FPSRange{}},
		{"no ranges", nil, 30, 1, true, FPSRange{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NativeFormat{Width: 640, Height: 480, Encoding: EncodingYUY2, FPSRanges: tt.ranges}
			got, err := Negotiate(640, 480, tt.num, tt.den, []NativeFormat{f})
			if tt.wantErr {
				var nerr *NegotiationError
				if !errors.As(err, &nerr) || nerr.Stage != StageFrameRate {
					t.Fatalf("Negotiate() error = %v, want frame-rate NegotiationError", err)
				}
				if nerr.Chosen.Width != 640 {
					t.Errorf("NegotiationError.Chosen = %s, want the resolution match", nerr.Chosen)
				}
				return
			}
			if err != nil {
				t.Fatalf("Negotiate() error = %v", err)
			}
			if got.FPSRange != tt.wantRange {
				t.Errorf("FPSRange = %+v, want %+v", got.FPSRange, tt.wantRange)
			}
			if got.FPSNum != tt.num || got.FPSDen != tt.den {
				t.Errorf("FPS = %d/%d, want %d/%d", got.FPSNum, got.FPSDen, tt.num, tt.den)
			}
		})
	}
}

func TestNegotiate_Failures(t *testing.T) {
	tests := []struct {
		name        string
		w, h, fps   int
		candidates  []NativeFormat
		wantStage   NegotiationStage
		unsupported bool
	}{
		{
			name:      "no candidates",
			w:         640,
			h:         480,
			fps:       30,
			wantStage: StageResolution,
		},
		{
			name:       "all smaller",
			w:          1920,
			h:          1080,
			fps:        30,
			candidates: []NativeFormat{yuy2(1280, 720), yuy2(640, 480)},
			wantStage:  StageResolution,
		},
		{
			name:       "larger in one axis only",
			w:          1000,
			h:          1000,
			fps:        30,
			candidates: []NativeFormat{yuy2(1280, 720)},
			wantStage:  StageResolution,
		},
		{
			name:       "NV12 chosen",
			w:          640,
			h:          480,
			fps:        30,
			candidates: []NativeFormat{
				{Width: 640, Height: 480, Encoding: EncodingNV12, FPSRanges: []FPSRange{{Min: 5, Max: 30}}},
				yuy2(800, 600),
			},
			wantStage:   StageEncoding,
			unsupported: true,
		},
		{
			name:       "unrecognized encoding chosen",
			w:          640,
			h:          480,
			fps:        30,
			candidates: []NativeFormat{
				{Width: 640, Height: 480, Encoding: EncodingNone, FPSRanges: []FPSRange{{Min: 5, Max: 30}}},
			},
			wantStage:   StageEncoding,
			unsupported: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Negotiate(tt.w, tt.h, tt.fps, 1, tt.candidates)
			if !errors.Is(err, ErrNegotiationFailed) {
				t.Fatalf("Negotiate() error = %v, want ErrNegotiationFailed", err)
			}
			var nerr *NegotiationError
			if !errors.As(err, &nerr) {
				t.Fatalf("Negotiate() error %T is not *NegotiationError", err)
			}
			if nerr.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", nerr.Stage, tt.wantStage)
			}
			if got := errors.Is(err, ErrUnsupportedEncoding); got != tt.unsupported {
				t.Errorf("errors.Is(err, ErrUnsupportedEncoding) = %v, want %v", got, tt.unsupported)
			}
			t.Logf("diagnostic: %v", err)
		})
	}
}

func TestNegotiate_InvalidParameters(t *testing.T) {
	candidates := []NativeFormat{yuy2(640, 480)}
	tests := []struct {
		name      string
		w, h, fps int
	}{
		{"zero width", 0, 480, 30},
		{"negative height", 640, -1, 30},
		{"zero fps", 640, 480, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Negotiate(tt.w, tt.h, tt.fps, 1, candidates); !errors.Is(err, ErrInvalidParameters) {
				t.Errorf("Negotiate() error = %v, want ErrInvalidParameters", err)
			}
		})
	}
}
