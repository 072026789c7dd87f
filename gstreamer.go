package webcamcapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/gstcam"
)

// GStreamerBackend captures from real cameras through GStreamer
// (v4l2src on Linux, avfvideosrc on macOS, mfvideosrc on Windows).
//
// Streams support both pull (sync) and callback (async) delivery.
type GStreamerBackend struct{}

// NewGStreamerBackend returns the GStreamer camera backend
func NewGStreamerBackend() *GStreamerBackend {
	return &GStreamerBackend{}
}

// EnumerateDevices lists attached cameras
func (b *GStreamerBackend) EnumerateDevices() ([]DeviceInfo, error) {
	devices, err := gstcam.Enumerate()
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = DeviceInfo{Index: d.Index, Name: d.Name, Path: d.Path}
	}
	return infos, nil
}

// Activate finds the camera at index and checks it can be opened
func (b *GStreamerBackend) Activate(index int) (Device, error) {
	dev, err := gstcam.Find(index)
	if err != nil {
		return nil, err
	}
	if err := dev.Open(); err != nil {
		return nil, err
	}
	return &gstDevice{dev: dev}, nil
}

// ListNativeFormats probes the camera's raw modes. Formats GStreamer names
// but the converter table does not know (I420, UYVY, ...) are left out;
// NV12 is kept so negotiation can report it.
func (b *GStreamerBackend) ListNativeFormats(dev Device) ([]NativeFormat, error) {
	gd, ok := dev.(*gstDevice)
	if !ok {
		return nil, fmt.Errorf("webcam-capture: device %T is not a GStreamer device", dev)
	}

	raw, err := gstcam.ListFormats(gd.dev)
	if err != nil {
		return nil, err
	}

	formats := make([]NativeFormat, 0, len(raw))
	for _, f := range raw {
		nf, ok := nativeFromGst(f)
		if !ok {
			slog.Debug("webcam-capture: skipping raw format", "format", f.Name, "size", fmt.Sprintf("%dx%d", f.Width, f.Height))
			continue
		}
		formats = append(formats, nf)
	}
	return formats, nil
}

// OpenStream builds the capture pipeline pinned to the negotiated format
func (b *GStreamerBackend) OpenStream(dev Device, format NegotiatedFormat) (Stream, error) {
	gd, ok := dev.(*gstDevice)
	if !ok {
		return nil, fmt.Errorf("webcam-capture: device %T is not a GStreamer device", dev)
	}

	name, ok := gstFormatName(format.Raw, format.Encoding, format.Order)
	if !ok {
		return nil, fmt.Errorf("webcam-capture: no GStreamer format for %s: %w", format.Encoding, ErrUnsupportedEncoding)
	}

	stream, err := gstcam.Open(gstcam.PipelineConfig{
		Device: gd.dev,
		Format: name,
		Width:  format.Width,
		Height: format.Height,
		Rate:   gstcam.Fraction{Num: format.FPSNum, Den: format.FPSDen},
	})
	if err != nil {
		return nil, err
	}
	return &gstStream{s: stream, done: make(chan struct{})}, nil
}

type gstDevice struct {
	dev gstcam.Device
}

func (d *gstDevice) Info() DeviceInfo {
	return DeviceInfo{Index: d.dev.Index, Name: d.dev.Name, Path: d.dev.Path}
}

// Release is a no-op: the device is only held open by the stream pipeline
func (d *gstDevice) Release() error {
	return nil
}

// gstStream adapts gstcam.Stream to PullStream and CallbackStream
type gstStream struct {
	s *gstcam.Stream

	errOnce  sync.Once
	errCh    chan error
	done     chan struct{}
	doneOnce sync.Once
}

func (g *gstStream) Start() error {
	return g.s.Start()
}

func (g *gstStream) Release() error {
	g.doneOnce.Do(func() { close(g.done) })
	return g.s.Release()
}

func (g *gstStream) PullSample() (Sample, error) {
	smp, err := g.s.PullSample()
	if err != nil {
		return Sample{}, translateStreamErr(err)
	}
	return sampleFromGst(smp), nil
}

func (g *gstStream) SetSampleHandler(handler func(Sample)) {
	if handler == nil {
		g.s.SetHandler(nil)
		return
	}
	g.s.SetHandler(func(smp gstcam.Sample) {
		handler(sampleFromGst(smp))
	})
}

// Err translates bus faults into the package's error taxonomy
func (g *gstStream) Err() <-chan error {
	g.errOnce.Do(func() {
		g.errCh = make(chan error, 1)
		go func() {
			select {
			case err := <-g.s.Err():
				g.errCh <- translateStreamErr(err)
			case <-g.done:
			}
		}()
	})
	return g.errCh
}

func translateStreamErr(err error) error {
	if gstcam.IsEndOfStream(err) {
		return fmt.Errorf("%w: %w", ErrEndOfStream, err)
	}
	var busErr *gstcam.BusError
	if errors.As(err, &busErr) && busErr.Category == gstcam.ErrCategoryNegotiation {
		return fmt.Errorf("%w: %w", ErrBackendConfiguration, err)
	}
	return err
}

func sampleFromGst(smp gstcam.Sample) Sample {
	out := Sample{Data: smp.Data, Timestamp: smp.Timestamp}
	if smp.Format != nil {
		if nf, ok := nativeFromGst(*smp.Format); ok {
			out.Flags |= FlagFormatChanged
			out.Format = &nf
		} else {
			// Unknown encodings still signal the change so the session fails
			// loudly instead of misreading pixels
			out.Flags |= FlagFormatChanged
			out.Format = &NativeFormat{Width: smp.Format.Width, Height: smp.Format.Height, Raw: smp.Format.Caps}
		}
	}
	return out
}

// gstEncodings maps GStreamer raw format names to encodings
var gstEncodings = map[string]struct {
	enc   Encoding
	order ChannelOrder
}{
	"YUY2": {EncodingYUY2, OrderRGB},
	"YUYV": {EncodingYUY2, OrderRGB},
	"RGB":  {EncodingRGB24, OrderRGB},
	"BGR":  {EncodingRGB24, OrderBGR},
	"RGBA": {EncodingRGB32, OrderRGB},
	"RGBx": {EncodingRGB32, OrderRGB},
	"BGRA": {EncodingRGB32, OrderBGR},
	"BGRx": {EncodingRGB32, OrderBGR},
	"NV12": {EncodingNV12, OrderRGB},
}

func nativeFromGst(f gstcam.Format) (NativeFormat, bool) {
	m, ok := gstEncodings[f.Name]
	if !ok {
		return NativeFormat{}, false
	}
	ranges := make([]FPSRange, len(f.Rates))
	for i, r := range f.Rates {
		ranges[i] = FPSRange{Min: r.Min.Float(), Max: r.Max.Float()}
	}
	return NativeFormat{
		Width:     f.Width,
		Height:    f.Height,
		Encoding:  m.enc,
		Order:     m.order,
		FPSRanges: ranges,
		Raw:       f.Name,
	}, true
}

// gstFormatName recovers the exact GStreamer name (BGRx vs BGRA) from Raw,
// falling back to the canonical name for the encoding
func gstFormatName(raw string, enc Encoding, order ChannelOrder) (string, bool) {
	if m, ok := gstEncodings[raw]; ok && m.enc == enc && m.order == order {
		return raw, true
	}
	for name, m := range gstEncodings {
		if m.enc == enc && m.order == order && enc.Convertible() {
			switch name {
			case "YUYV", "RGBx", "BGRx":
				continue // prefer the alpha/canonical spelling
			}
			return name, true
		}
	}
	return "", false
}
