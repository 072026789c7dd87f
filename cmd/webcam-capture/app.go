package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/retry"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/snapshot"
)

// app owns the capture session and everything fed from its output buffer
type app struct {
	cfg     *config.Config
	backend webcamcapture.Backend

	session atomic.Pointer[webcamcapture.Session]
	out     []byte

	mailbox *snapshot.Mailbox
	saver   *snapshot.Saver
	emitter *emitter.MQTTEmitter

	retryState   retry.State
	pollInterval time.Duration
	startTime    time.Time
	frameCount   atomic.Uint64

	wg sync.WaitGroup
}

func newApp(cfg *config.Config, backend webcamcapture.Backend) *app {
	return &app{
		cfg:     cfg,
		backend: backend,
		out:     make([]byte, cfg.Capture.Width*cfg.Capture.Height*4),
	}
}

func (a *app) run(ctx context.Context) error {
	a.startTime = time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.closeSession()
		if a.mailbox != nil {
			a.mailbox.Close()
		}
		a.wg.Wait()
		if a.emitter != nil {
			a.emitter.Disconnect()
		}
	}()

	if a.cfg.Output.Dir != "" {
		saver, err := snapshot.NewSaver(a.cfg.Output.Dir, a.cfg.Output.Format, a.cfg.Output.JPEGQuality)
		if err != nil {
			return err
		}
		a.saver = saver
		a.mailbox = snapshot.NewMailbox()
		slog.Info("Frame saving enabled",
			"directory", a.cfg.Output.Dir,
			"format", a.cfg.Output.Format,
			"every", a.cfg.Output.Every,
		)
	}

	if a.cfg.MQTT.Enabled {
		em := emitter.NewMQTTEmitter(a.cfg.MQTT)
		if err := em.Connect(ctx); err != nil {
			slog.Warn("Telemetry disabled, broker unreachable", "broker", a.cfg.MQTT.Broker, "error", err)
		} else {
			a.emitter = em
		}
	}

	if err := a.openWithRetry(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	// A blocked sync pull only returns once its stream is released
	stopOnCancel := context.AfterFunc(ctx, a.closeSession)
	defer stopOnCancel()

	if a.mailbox != nil {
		a.wg.Add(1)
		go a.writeSnapshots()
	}
	if a.cfg.Output.StatsInterval > 0 {
		a.wg.Add(1)
		go a.reportStats(ctx)
	}

	fmt.Printf("Starting frame capture...\n")
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	return a.captureLoop(ctx)
}

func (a *app) captureLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		s := a.session.Load()
		ok, err := s.DoCapture()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, webcamcapture.ErrStreamFault) || a.cfg.Retry.MaxAttempts == 0 {
				return err
			}

			slog.Warn("Stream fault, rebuilding session", "session_id", s.ID(), "error", err)
			a.closeSession()
			if err := a.openWithRetry(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}

		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.pollInterval):
			}
			continue
		}

		n := a.frameCount.Add(1)
		a.onFrame(s, n)

		if limit := a.cfg.Output.MaxFrames; limit > 0 && n >= uint64(limit) {
			fmt.Printf("\nReached maximum frames (%d), stopping...\n", limit)
			return nil
		}
	}
}

func (a *app) onFrame(s *webcamcapture.Session, n uint64) {
	now := time.Now()
	w, h := a.cfg.Capture.Width, a.cfg.Capture.Height

	fmt.Printf("[%s] Frame #%-6d | Native: %-9s | Output: %dx%d | Mode: %s\n",
		now.Format("15:04:05.000"),
		n,
		s.Format().Resolution(),
		w, h,
		s.Mode(),
	)

	if a.mailbox != nil && n%uint64(a.cfg.Output.Every) == 0 {
		a.mailbox.Publish(snapshot.CopyFrame(n, now, w, h, a.out))
		return
	}
	if a.emitter != nil {
		if err := a.emitter.PublishFrame(emitter.NewFrameEvent(s.ID(), n, w, h, now)); err != nil {
			slog.Debug("Frame event not published", "seq", n, "error", err)
		}
	}
}

// openWithRetry brings a session up, rebuilding with backoff on transient
// failures when retries are configured
func (a *app) openWithRetry(ctx context.Context) error {
	if a.cfg.Retry.MaxAttempts == 0 {
		return a.openSession(ctx)
	}
	rcfg := retry.Config{
		MaxAttempts:  a.cfg.Retry.MaxAttempts,
		InitialDelay: a.cfg.Retry.InitialDelay,
		MaxDelay:     a.cfg.Retry.MaxDelay,
		Retryable:    isTransient,
	}
	return retry.RunWithRetry(ctx, a.openSession, rcfg, &a.retryState)
}

// isTransient rejects failures a rebuild cannot fix
func isTransient(err error) bool {
	return !errors.Is(err, webcamcapture.ErrInvalidParameters) &&
		!errors.Is(err, webcamcapture.ErrNegotiationFailed) &&
		!errors.Is(err, webcamcapture.ErrUnsupportedEncoding)
}

func (a *app) openSession(ctx context.Context) error {
	mode, err := webcamcapture.ParseMode(a.cfg.Capture.Mode)
	if err != nil {
		return err
	}

	s, err := webcamcapture.NewSession(a.backend, webcamcapture.Config{
		DeviceIndex: a.cfg.Capture.Device,
		Width:       a.cfg.Capture.Width,
		Height:      a.cfg.Capture.Height,
		FPSNum:      a.cfg.Capture.FPS,
		FPSDen:      a.cfg.Capture.FPSDen,
		Mode:        mode,
	})
	if err != nil {
		return err
	}

	if err := a.startSession(ctx, s); err != nil {
		if stopErr := s.Stop(); stopErr != nil {
			slog.Warn("Failed to release session", "error", stopErr)
		}
		return err
	}

	a.session.Store(s)
	return nil
}

func (a *app) startSession(ctx context.Context, s *webcamcapture.Session) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if err := s.SetBuffer(a.out); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	printNegotiated(s)

	fps := s.Format().FPS()
	a.pollInterval = 0
	if s.Mode() == webcamcapture.ModeAsync {
		a.pollInterval = pollInterval(fps)
	}

	if a.cfg.Capture.Warmup <= 0 {
		return nil
	}

	fmt.Printf("Running warmup (%s) to measure capture stability...\n", a.cfg.Capture.Warmup)
	stats, err := s.Warmup(ctx, a.cfg.Capture.Warmup)
	if stats == nil {
		return fmt.Errorf("warmup failed: %w", err)
	}
	printWarmup(stats)
	if err != nil {
		fmt.Printf("\n⚠️  WARNING: %v\n\n", err)
	}
	if s.Mode() == webcamcapture.ModeAsync {
		a.pollInterval = pollInterval(webcamcapture.OptimalPollRate(stats, fps))
	}
	return nil
}

// pollInterval polls at twice the frame rate so no frame waits a full period
func pollInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 5 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / (2 * fps))
}

func (a *app) closeSession() {
	if s := a.session.Load(); s != nil {
		if err := s.Stop(); err != nil {
			slog.Error("Error stopping session", "session_id", s.ID(), "error", err)
		}
	}
}

func (a *app) writeSnapshots() {
	defer a.wg.Done()

	for f := a.mailbox.Next(); f != nil; f = a.mailbox.Next() {
		path, err := a.saver.SaveFrame(f)
		if err != nil {
			slog.Error("Failed to save frame", "error", err, "seq", f.Seq)
			continue
		}
		if a.emitter == nil {
			continue
		}
		ev := emitter.NewFrameEvent(a.session.Load().ID(), f.Seq, f.Width, f.Height, f.Timestamp)
		ev.Snapshot = path
		if err := a.emitter.PublishFrame(ev); err != nil {
			slog.Debug("Frame event not published", "seq", f.Seq, "error", err)
		}
	}
}

func (a *app) reportStats(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Output.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := a.session.Load()
			if s == nil {
				continue
			}
			stats := s.Stats()
			a.printStats(stats)

			if a.emitter != nil {
				if err := a.emitter.PublishStats(emitter.NewStatsPayload(a.cfg.InstanceID, stats, time.Now())); err != nil {
					slog.Warn("Stats not published", "error", err)
				}
			}
		}
	}
}
