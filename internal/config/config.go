// Package config loads the test-decode tool configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	streamdecode "github.com/e7canasta/orion-care-sensor/modules/stream-decode"
)

// Config represents the complete test-decode configuration
type Config struct {
	Decoder       DecoderConfig `yaml:"decoder"`
	Input         InputConfig   `yaml:"input"`
	Output        OutputConfig  `yaml:"output"`
	StatsInterval time.Duration `yaml:"stats_interval"` // Periodic stats report (default: 10s)
	Log           LogConfig     `yaml:"log"`
}

// DecoderConfig contains decoder settings
type DecoderConfig struct {
	Codec          string        `yaml:"codec"`           // mjpeg, vp8, h264, vp9, h265, auto (default: from input)
	OutputFormat   string        `yaml:"output_format"`   // BGRx, RGBx, RGBA, BGRA, RGB
	StallTimeout   time.Duration `yaml:"stall_timeout"`   // 0 = wait forever
	SourceStream   string        `yaml:"source_stream"`   // Stream label copied into frames
	GstAuto        string        `yaml:"gst_auto"`        // Same as STREAM_DECODE_GST_AUTO
	ForceDecodebin *bool         `yaml:"force_decodebin"` // Same as STREAM_DECODE_GST_DECODEBIN (nil = from env)
}

// InputConfig contains frame source settings
type InputConfig struct {
	Path      string  `yaml:"path"`       // File or directory of frames
	MaxFrames int     `yaml:"max_frames"` // 0 = all
	Loop      bool    `yaml:"loop"`       // Restart the input at EOF until MaxFrames
	RateFPS   float64 `yaml:"rate_fps"`   // Feed pacing, 0 = as fast as possible
}

// OutputConfig contains decoded frame output settings
type OutputConfig struct {
	Dir       string `yaml:"dir"`        // Empty = don't save
	Format    string `yaml:"format"`     // png, jpeg, bmp
	SaveEvery int    `yaml:"save_every"` // Save one frame out of N (default: 1)
	Quality   int    `yaml:"quality"`    // JPEG quality 1-100 (default: 90)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with defaults applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Decoder.OutputFormat == "" {
		cfg.Decoder.OutputFormat = "BGRx"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "png"
	}
	if cfg.Output.SaveEvery <= 0 {
		cfg.Output.SaveEvery = 1
	}
	if cfg.Output.Quality == 0 {
		cfg.Output.Quality = 90
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// DecoderConfig builds the decoder configuration. fallbackCodec is used
// when decoder.codec is empty (typically the codec the input carries).
func (c *Config) DecoderConfig(fallbackCodec string) (streamdecode.Config, error) {
	name := c.Decoder.Codec
	if name == "" {
		name = fallbackCodec
	}
	codec, err := streamdecode.ParseCodec(name)
	if err != nil {
		return streamdecode.Config{}, err
	}

	ov := streamdecode.OverridesFromEnv()
	if c.Decoder.GstAuto != "" {
		ov.AutoSelect = c.Decoder.GstAuto
	}
	if c.Decoder.ForceDecodebin != nil {
		ov.ForceDecodebin = *c.Decoder.ForceDecodebin
	}

	return streamdecode.Config{
		Codec:        codec,
		OutputFormat: c.Decoder.OutputFormat,
		Overrides:    &ov,
		StallTimeout: c.Decoder.StallTimeout,
		SourceStream: c.Decoder.SourceStream,
	}, nil
}
