package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete webcam-capture CLI configuration
type Config struct {
	InstanceID string        `yaml:"instance_id"`
	Capture    CaptureConfig `yaml:"capture"`
	Output     OutputConfig  `yaml:"output"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
	Retry      RetryConfig   `yaml:"retry"`
}

// CaptureConfig contains camera and session settings
type CaptureConfig struct {
	Backend string        `yaml:"backend"` // gstreamer, mock
	Device  int           `yaml:"device"`  // index in the enumeration order
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	FPS     int           `yaml:"fps"`     // numerator
	FPSDen  int           `yaml:"fps_den"` // 1 unless NTSC rates (30000/1001)
	Mode    string        `yaml:"mode"`    // auto, sync, async
	Warmup  time.Duration `yaml:"warmup"`  // 0 disables warm-up
}

// OutputConfig contains snapshot and stats settings
type OutputConfig struct {
	Dir           string        `yaml:"dir"`            // empty disables snapshots
	Format        string        `yaml:"format"`         // png, jpeg
	JPEGQuality   int           `yaml:"jpeg_quality"`   // 1-100
	Every         int           `yaml:"every"`          // save every Nth frame
	MaxFrames     int           `yaml:"max_frames"`     // 0 = unlimited
	StatsInterval time.Duration `yaml:"stats_interval"` // periodic stats log
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Broker   string     `yaml:"broker"`
	ClientID string     `yaml:"client_id"`
	Topics   MQTTTopics `yaml:"topics"`
	QoS      byte       `yaml:"qos"`
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Stats  string `yaml:"stats"`
	Frames string `yaml:"frames"`
}

// RetryConfig controls session rebuilds after a stream fault
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"` // 0 disables rebuilds
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		InstanceID: "webcam-capture",
		Capture: CaptureConfig{
			Backend: "gstreamer",
			Width:   640,
			Height:  480,
			FPS:     15,
			FPSDen:  1,
			Mode:    "auto",
			Warmup:  3 * time.Second,
		},
		Output: OutputConfig{
			Format:        "png",
			JPEGQuality:   90,
			Every:         1,
			StatsInterval: 10 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
		},
	}
}

// Load reads a YAML configuration file over the defaults.
//
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
