// ABOUTME: Configuration file loading and validation
// ABOUTME: YAML configuration with defaults for capture, metering, relay and logging
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/capture"
	"github.com/voicerec/recmeter/pkg/meter"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Meter   MeterConfig   `yaml:"meter"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`
}

// CaptureConfig selects and configures the capture source
type CaptureConfig struct {
	Source        string  `yaml:"source"`  // "tone", "mic" or "file"
	Backend       string  `yaml:"backend"` // "malgo" or "portaudio", for mic
	File          string  `yaml:"file"`
	Format        string  `yaml:"format"` // e.g. "s16le", "u8", "f32le"
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	BufferFrames  int     `yaml:"buffer_frames"`
	Loop          bool    `yaml:"loop"`
	Monitor       bool    `yaml:"monitor"` // play captured audio while metering
	ToneFrequency float64 `yaml:"tone_frequency"`
	ToneAmplitude float64 `yaml:"tone_amplitude"`
}

// MeterConfig contains level metering parameters
type MeterConfig struct {
	QueueCapacity int     `yaml:"queue_capacity"`
	Volume        float64 `yaml:"volume"` // initial volume, 0..1
}

// RelayConfig contains websocket relay configuration
type RelayConfig struct {
	Port      int    `yaml:"port"`
	Address   string `yaml:"address"`
	Name      string `yaml:"name"`
	Discovery bool   `yaml:"discovery"` // advertise via mDNS
	Metrics   bool   `yaml:"metrics"`   // serve /metrics
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// Default returns the built-in configuration
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "recmeter"
	}

	return &Config{
		Capture: CaptureConfig{
			Source:        "tone",
			Backend:       "malgo",
			Format:        "s16le",
			SampleRate:    48000,
			Channels:      2,
			BufferFrames:  capture.DefaultBufferFrames,
			Loop:          true,
			ToneFrequency: 440,
			ToneAmplitude: 0.5,
		},
		Meter: MeterConfig{
			QueueCapacity: meter.DefaultQueueCapacity,
			Volume:        1.0,
		},
		Relay: RelayConfig{
			Port:      8928,
			Address:   "0.0.0.0",
			Name:      hostname + "-recmeter",
			Discovery: true,
			Metrics:   true,
		},
		Logging: LoggingConfig{
			File: "recmeter.log",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the whole configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Meter.Validate(); err != nil {
		return fmt.Errorf("meter config: %w", err)
	}

	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	switch c.Source {
	case "tone", "mic":
	case "file":
		if c.File == "" {
			return fmt.Errorf("file cannot be empty when source is 'file'")
		}
	default:
		return fmt.Errorf("source must be one of [tone, mic, file], got '%s'", c.Source)
	}

	if c.Source == "mic" && c.Backend != "malgo" && c.Backend != "portaudio" {
		return fmt.Errorf("backend must be 'malgo' or 'portaudio', got '%s'", c.Backend)
	}

	if c.BufferFrames < 1 {
		return fmt.Errorf("buffer_frames must be at least 1, got %d", c.BufferFrames)
	}

	// File sources report their own format
	if c.Source == "file" {
		return nil
	}

	if _, err := c.AudioFormat(); err != nil {
		return err
	}

	if c.Source == "tone" {
		if c.ToneFrequency <= 0 || c.ToneFrequency >= float64(c.SampleRate)/2 {
			return fmt.Errorf("tone_frequency must be between 0 and %d Hz (exclusive), got %f", c.SampleRate/2, c.ToneFrequency)
		}
		if c.ToneAmplitude <= 0 || c.ToneAmplitude > 1 {
			return fmt.Errorf("tone_amplitude must be in (0, 1], got %f", c.ToneAmplitude)
		}
	}

	return nil
}

// AudioFormat returns the PCM format requested for tone and mic sources
func (c *CaptureConfig) AudioFormat() (audio.Format, error) {
	if c.SampleRate < 1 {
		return audio.Format{}, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels < 1 {
		return audio.Format{}, fmt.Errorf("channels must be at least 1, got %d", c.Channels)
	}

	format, err := audio.ParseFormat(c.Format, c.SampleRate, c.Channels)
	if err != nil {
		return audio.Format{}, fmt.Errorf("format: %w", err)
	}
	return format, nil
}

// BufferDuration returns the capture time covered by one buffer
func (c *CaptureConfig) BufferDuration() time.Duration {
	if c.SampleRate < 1 {
		return 0
	}
	return time.Duration(c.BufferFrames) * time.Second / time.Duration(c.SampleRate)
}

// Validate validates meter configuration
func (m *MeterConfig) Validate() error {
	if m.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", m.QueueCapacity)
	}

	if m.Volume < 0 || m.Volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1, got %f", m.Volume)
	}

	return nil
}

// Validate validates relay configuration
func (r *RelayConfig) Validate() error {
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", r.Port)
	}

	if r.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	return nil
}
