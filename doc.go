// Package webcamcapture provides local webcam frame acquisition using GStreamer.
//
// It opens a camera, negotiates one of its native formats against the
// caller's desired resolution and frame rate, converts every frame to 32-bit
// RGBA and resamples it (nearest neighbor) into a caller-owned buffer.
//
// # Quick Start
//
// The simplest way to capture frames from the first camera:
//
//	cfg := webcamcapture.Config{
//	    DeviceIndex: 0,
//	    Width:       640,
//	    Height:      480,
//	    FPSNum:      15,
//	    Mode:        webcamcapture.ModeSync,
//	}
//
//	s, err := webcamcapture.NewSession(webcamcapture.NewGStreamerBackend(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Stop()
//
//	if err := s.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	out := make([]byte, cfg.OutputSize())
//	_ = s.SetBuffer(out)
//	_ = s.Start()
//
//	for {
//	    ok, err := s.DoCapture()
//	    if err != nil {
//	        log.Fatal(err) // ErrStreamFault: re-Init a new session
//	    }
//	    if ok {
//	        processFrame(out) // RGBA, 640x480
//	    }
//	}
//
// # Lifecycle
//
//	Uninitialized --Init--> Negotiated --Start--> Streaming --Stop--> Stopped
//
// Init fails closed: if any step fails, the device and stream are released
// and the session stays Uninitialized. Stop is valid in every state and
// Stopped is terminal.
//
// # Format Negotiation
//
// Candidates come from the device in its preferred order:
//
//  1. An exact resolution match wins (first one)
//  2. Otherwise the smallest format at least as large as requested on both
//     axes, judged by its larger axis error; ties keep the earlier format
//  3. The first frame-rate range admitting the request wins, with range
//     bounds widened to floor(min)..ceil(max)
//  4. The encoding must have a converter (YUY2, RGB24, RGB32)
//
// Formats smaller than the request are never chosen. A failure reports the
// NegotiationStage that rejected the request.
//
// # Operating Modes
//
//   - ModeSync: DoCapture blocks until the backend delivers a sample, then
//     converts it on the caller's goroutine
//   - ModeAsync: samples arrive on the backend's goroutine; DoCapture
//     requests a frame and returns true once per converted frame
//   - ModeAuto: sync when the stream supports pulling, async otherwise
//
// In both modes a frame reported by a true DoCapture stays in the buffer
// untouched until the next DoCapture call. The async producer only writes
// after the caller asked again.
//
// # Frame Format
//
//   - Format: Interleaved RGBA (RGBARGBA...), alpha always 255
//   - Size: Width × Height × 4 bytes
//   - BGR sources are swapped to RGB after conversion
//
// # Backends
//
//   - NewGStreamerBackend: v4l2src (Linux), avfvideosrc (macOS), mfvideosrc (Windows)
//   - internal/mockcam: deterministic synthetic camera for tests and demos
//
// # Dependencies
//
// GStreamer 1.x must be installed on the system:
//
//	# Ubuntu/Debian
//	sudo apt-get install gstreamer1.0-tools gstreamer1.0-plugins-base gstreamer1.0-plugins-good
//
//	# Fedora/RHEL
//	sudo dnf install gstreamer1 gstreamer1-plugins-base gstreamer1-plugins-good
//
// Verify the camera is visible:
//
//	gst-device-monitor-1.0 Video/Source
//
// # Thread Safety
//
//   - Stats() is lock-free and safe from any goroutine
//   - Stop() is idempotent and waits for an in-flight callback
//   - DoCapture() must be called from a single goroutine
//
// # Testing
//
// A command-line tool is provided:
//
//	./bin/webcam-capture --list-devices
//	./bin/webcam-capture --device 0 --width 640 --height 480 --fps 15 --output ./frames
//
// Repository: https://github.com/e7canasta/orion-care-sensor
package webcamcapture
