package gstcam

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// PipelineConfig contains configuration for capture pipeline creation
type PipelineConfig struct {
	Device Device
	Format string // GStreamer raw format name, e.g. YUY2
	Width  int
	Height int
	Rate   Fraction
}

// PipelineElements holds references to GStreamer pipeline elements
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	Source     *gst.Element
	CapsFilter *gst.Element
	AppSink    *app.Sink
}

// CreatePipeline creates a capture pipeline for one camera
//
// Pipeline structure:
//
//	source → capsfilter → appsink
//
// No videoconvert or videoscale: the capsfilter pins the negotiated raw
// format and samples reach the appsink in the camera's native encoding.
//
// The pipeline is configured but NOT started (state remains NULL).
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create pipeline: %w", err)
	}

	src, err := cfg.Device.NewSource()
	if err != nil {
		return nil, err
	}
	if cfg.Device.Element == "v4l2src" {
		// Timestamps from the driver, not the pipeline clock
		src.SetProperty("do-timestamp", true)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstcam: create capsfilter: %w", err)
	}
	capsStr := BuildCaps(cfg.Format, cfg.Width, cfg.Height, cfg.Rate)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("gstcam: create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	pipeline.AddMany(src, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(src, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("gstcam: link %s → capsfilter → appsink: %w", cfg.Device.Element, err)
	}

	slog.Debug("gstcam: pipeline created",
		"device", cfg.Device.Name,
		"element", cfg.Device.Element,
		"caps", capsStr,
	)

	return &PipelineElements{
		Pipeline:   pipeline,
		Source:     src,
		CapsFilter: capsfilter,
		AppSink:    appsink,
	}, nil
}

// DestroyPipeline sets the pipeline to NULL, releasing the device.
// Safe to call with nil.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("gstcam: set pipeline to NULL: %w", err)
	}
	return nil
}
