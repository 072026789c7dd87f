package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills derived defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if err := validateCapture(&cfg.Capture); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := validateOutput(&cfg.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.InstanceID
	}
	if cfg.MQTT.Topics.Stats == "" {
		cfg.MQTT.Topics.Stats = fmt.Sprintf("care/capture/%s/stats", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Frames == "" {
		cfg.MQTT.Topics.Frames = fmt.Sprintf("care/capture/%s/frames", cfg.InstanceID)
	}

	if cfg.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be >= 0")
	}
	if cfg.Retry.MaxAttempts > 0 && (cfg.Retry.InitialDelay <= 0 || cfg.Retry.MaxDelay < cfg.Retry.InitialDelay) {
		return fmt.Errorf("retry delays must satisfy 0 < initial_delay <= max_delay")
	}

	return nil
}

func validateCapture(c *CaptureConfig) error {
	switch c.Backend {
	case "gstreamer", "mock":
	default:
		return fmt.Errorf("backend must be gstreamer or mock, got %q", c.Backend)
	}
	if c.Device < 0 {
		return fmt.Errorf("device must be >= 0")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("resolution must be > 0, got %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be > 0")
	}
	if c.FPSDen == 0 {
		c.FPSDen = 1
	}
	if c.FPSDen < 0 {
		return fmt.Errorf("fps_den must be > 0")
	}
	switch c.Mode {
	case "":
		c.Mode = "auto"
	case "auto", "sync", "async":
	default:
		return fmt.Errorf("mode must be auto, sync or async, got %q", c.Mode)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup must be >= 0")
	}
	return nil
}

func validateOutput(o *OutputConfig) error {
	switch o.Format {
	case "":
		o.Format = "png"
	case "png", "jpeg":
	default:
		return fmt.Errorf("format must be png or jpeg, got %q", o.Format)
	}
	if o.JPEGQuality == 0 {
		o.JPEGQuality = 90
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be 1-100, got %d", o.JPEGQuality)
	}
	if o.Every <= 0 {
		o.Every = 1
	}
	if o.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be >= 0")
	}
	return nil
}
