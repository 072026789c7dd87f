package snapshot

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Saver writes RGBA frames to disk as PNG or JPEG.
//
// Thread-safe: can be called from multiple goroutines concurrently.
type Saver struct {
	outputDir     string
	format        string
	jpegQuality   int
	framesSaved   atomic.Uint64
	framesDropped atomic.Uint64
}

// NewSaver creates a saver writing into outputDir, creating it if needed.
//
// Format: "png" or "jpeg"
// JPEGQuality: 1-100 (only used for JPEG)
func NewSaver(outputDir, format string, jpegQuality int) (*Saver, error) {
	if format != "png" && format != "jpeg" {
		return nil, fmt.Errorf("snapshot: unsupported format: %s (must be png or jpeg)", format)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("snapshot: failed to create output directory: %w", err)
	}

	return &Saver{
		outputDir:   outputDir,
		format:      format,
		jpegQuality: jpegQuality,
	}, nil
}

// SaveFrame encodes frame and returns the written path.
//
// Filename format: frame_{seq:06d}_{timestamp}.{ext}
// Example: frame_000042_20251105_234517.123.png
func (s *Saver) SaveFrame(frame *Frame) (string, error) {
	img, err := toImage(frame)
	if err != nil {
		s.framesDropped.Add(1)
		return "", err
	}

	name := fmt.Sprintf("frame_%06d_%s.%s",
		frame.Seq,
		frame.Timestamp.Format("20060102_150405.000"),
		s.format)
	path := filepath.Join(s.outputDir, name)

	file, err := os.Create(path)
	if err != nil {
		s.framesDropped.Add(1)
		return "", fmt.Errorf("snapshot: failed to create file: %w", err)
	}
	defer file.Close()

	switch s.format {
	case "png":
		err = png.Encode(file, img)
	case "jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: s.jpegQuality})
	}
	if err != nil {
		s.framesDropped.Add(1)
		return "", fmt.Errorf("snapshot: %s encode failed: %w", s.format, err)
	}

	s.framesSaved.Add(1)
	return path, nil
}

// Stats returns current save statistics
func (s *Saver) Stats() (saved, dropped uint64) {
	return s.framesSaved.Load(), s.framesDropped.Load()
}

// toImage wraps the frame's RGBA bytes without copying
func toImage(frame *Frame) (*image.RGBA, error) {
	want := frame.Width * frame.Height * 4
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) != want {
		return nil, fmt.Errorf("snapshot: invalid RGBA data size: got %d, expected %d", len(frame.Data), want)
	}
	return &image.RGBA{
		Pix:    frame.Data,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}, nil
}
