package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/mockcam"
)

// Version information
const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	listDevices := flag.Bool("list-devices", false, "List capture devices and exit")
	backendName := flag.String("backend", "gstreamer", "Capture backend: gstreamer, mock")
	device := flag.Int("device", 0, "Device index (see --list-devices)")
	width := flag.Int("width", 640, "Output width in pixels")
	height := flag.Int("height", 480, "Output height in pixels")
	fps := flag.Int("fps", 15, "Desired frame rate")
	mode := flag.String("mode", "auto", "Capture mode: auto, sync, async")
	outputDir := flag.String("output", "", "Directory to save captured frames (optional)")
	outputFormat := flag.String("format", "png", "Output format: png, jpeg")
	jpegQuality := flag.Int("jpeg-quality", 90, "JPEG quality (1-100, only for jpeg format)")
	saveEvery := flag.Int("every", 1, "Save every Nth captured frame")
	maxFrames := flag.Int("max-frames", 0, "Maximum frames to capture (0 = unlimited)")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	skipWarmup := flag.Bool("skip-warmup", false, "Skip FPS stability warmup")
	broker := flag.String("mqtt", "", "MQTT broker URL; enables telemetry publishing")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("webcam-capture %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Capture.Backend = *backendName
		case "device":
			cfg.Capture.Device = *device
		case "width":
			cfg.Capture.Width = *width
		case "height":
			cfg.Capture.Height = *height
		case "fps":
			cfg.Capture.FPS = *fps
			cfg.Capture.FPSDen = 1
		case "mode":
			cfg.Capture.Mode = *mode
		case "output":
			cfg.Output.Dir = *outputDir
		case "format":
			cfg.Output.Format = *outputFormat
		case "jpeg-quality":
			cfg.Output.JPEGQuality = *jpegQuality
		case "every":
			cfg.Output.Every = *saveEvery
		case "max-frames":
			cfg.Output.MaxFrames = *maxFrames
		case "stats-interval":
			cfg.Output.StatsInterval = time.Duration(*statsInterval) * time.Second
		case "skip-warmup":
			if *skipWarmup {
				cfg.Capture.Warmup = 0
			}
		case "mqtt":
			cfg.MQTT.Enabled = *broker != ""
			cfg.MQTT.Broker = *broker
		}
	})
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	backend := newBackend(cfg.Capture.Backend)

	if *listDevices {
		if err := printDevices(backend); err != nil {
			log.Fatalf("Failed to enumerate devices: %v", err)
		}
		return
	}

	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(cfg, backend)
	if err := app.run(ctx); err != nil {
		app.printFinalStats()
		log.Fatalf("Capture failed: %v", err)
	}
	app.printFinalStats()

	slog.Info("Webcam capture completed successfully")
}

func newBackend(name string) webcamcapture.Backend {
	if name == "mock" {
		return mockcam.New(mockcam.Options{Paced: true})
	}
	return webcamcapture.NewGStreamerBackend()
}

func printDevices(backend webcamcapture.Backend) error {
	devices, err := backend.EnumerateDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found")
		return nil
	}
	fmt.Printf("Capture devices (%d):\n", len(devices))
	for _, d := range devices {
		if d.Path != "" {
			fmt.Printf("  [%d] %s (%s)\n", d.Index, d.Name, d.Path)
		} else {
			fmt.Printf("  [%d] %s\n", d.Index, d.Name)
		}
	}
	return nil
}
