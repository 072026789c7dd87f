package main

import (
	"fmt"
	"time"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/config"
)

func printBanner(cfg *config.Config) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║          Webcam Capture - Orion 2.0 Module               ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Backend:       %s\n", cfg.Capture.Backend)
	fmt.Printf("  Device:        %d\n", cfg.Capture.Device)
	fmt.Printf("  Output Size:   %dx%d\n", cfg.Capture.Width, cfg.Capture.Height)
	fmt.Printf("  Desired FPS:   %d/%d\n", cfg.Capture.FPS, cfg.Capture.FPSDen)
	fmt.Printf("  Mode:          %s\n", cfg.Capture.Mode)
	if cfg.Output.Dir != "" {
		fmt.Printf("  Output Dir:    %s (every %d frames)\n", cfg.Output.Dir, cfg.Output.Every)
	} else {
		fmt.Printf("  Output Dir:    (none - frames not saved)\n")
	}
	if cfg.Output.MaxFrames > 0 {
		fmt.Printf("  Max Frames:    %d\n", cfg.Output.MaxFrames)
	} else {
		fmt.Printf("  Max Frames:    unlimited\n")
	}
	if cfg.MQTT.Enabled {
		fmt.Printf("  MQTT Broker:   %s\n", cfg.MQTT.Broker)
	}
	fmt.Printf("\n")
}

func printNegotiated(s *webcamcapture.Session) {
	f := s.Format()
	fmt.Printf("Negotiated native format: %s %s @ %.2f fps (%s mode, session %s)\n",
		f.Encoding, f.Resolution(), f.FPS(), s.Mode(), s.ID())
}

func printWarmup(stats *webcamcapture.WarmupStats) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Warmup Complete\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Received:    %6d frames\n", stats.FramesReceived)
	fmt.Printf("│ Duration:           %6.1f seconds\n", stats.Duration.Seconds())
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", stats.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", stats.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", stats.FPSMin, stats.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", stats.JitterMean)
	fmt.Printf("│ Jitter Max:         %6.3f s\n", stats.JitterMax)
	fmt.Printf("│ Stable:             %6v\n", stats.IsStable)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func (a *app) printStats(stats webcamcapture.SessionStats) {
	uptime := time.Since(a.startTime)

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Capture Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Session:            %s (%s)\n", stats.SessionID, stats.State)
	fmt.Printf("│ Native:             %s %s\n", stats.Encoding, stats.NativeResolution)
	fmt.Printf("│ Frames Captured:    %6d frames\n", stats.FramesCaptured)
	if stats.FramesSkipped > 0 {
		fmt.Printf("│ Frames Skipped:     %6d frames\n", stats.FramesSkipped)
	}
	if stats.StreamTicks > 0 {
		fmt.Printf("│ Stream Ticks:       %6d\n", stats.StreamTicks)
	}
	if stats.FormatChanges > 0 {
		fmt.Printf("│ Format Changes:     %6d\n", stats.FormatChanges)
	}
	if a.saver != nil {
		saved, dropped := a.saver.Stats()
		_, overwritten := a.mailbox.Stats()
		fmt.Printf("│ Frames Saved:       %6d frames (%d failed, %d overwritten)\n", saved, dropped, overwritten)
	}
	fmt.Printf("│ Target FPS:         %6.2f fps\n", stats.FPSTarget)
	fmt.Printf("│ Real FPS:           %6.2f fps\n", stats.FPSReal)
	fmt.Printf("│ Latency:            %6d ms\n", stats.LatencyMS)
	fmt.Printf("│ Bytes Read:         %6.2f MB\n", float64(stats.BytesRead)/1024/1024)
	fmt.Printf("│ Session Rebuilds:   %6d\n", a.retryState.Rebuilds.Load())
	if a.emitter != nil {
		es := a.emitter.Stats()
		fmt.Printf("│ MQTT Connected:     %6v (%d errors)\n", es.Connected, es.Errors)
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func (a *app) printFinalStats() {
	uptime := time.Since(a.startTime)
	total := a.frameCount.Load()

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Second))
	fmt.Printf("  Frames Captured:    %d frames\n", total)
	if a.saver != nil {
		saved, dropped := a.saver.Stats()
		fmt.Printf("  Frames Saved:       %d frames\n", saved)
		fmt.Printf("  Frames Dropped:     %d frames\n", dropped)
	}
	if secs := uptime.Seconds(); secs > 0 {
		fmt.Printf("  Average FPS:        %.2f fps\n", float64(total)/secs)
	}
	if s := a.session.Load(); s != nil {
		stats := s.Stats()
		fmt.Printf("  Last Session:       %s (%s)\n", stats.SessionID, stats.State)
		fmt.Printf("  Stream Faults:      %d\n", stats.Faults)
	}
	fmt.Printf("  Session Rebuilds:   %d\n", a.retryState.Rebuilds.Load())
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
