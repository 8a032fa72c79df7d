package config

import (
	"fmt"
	"strings"

	streamdecode "github.com/e7canasta/orion-care-sensor/modules/stream-decode"
)

var (
	outputFormats = []string{"png", "jpeg", "jpg", "bmp"}
	logLevels     = []string{"debug", "info", "warn", "error"}
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	// Validate input
	if cfg.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	if cfg.Input.MaxFrames < 0 {
		return fmt.Errorf("input.max_frames must be >= 0")
	}
	if cfg.Input.RateFPS < 0 || cfg.Input.RateFPS > 240 {
		return fmt.Errorf("input.rate_fps must be between 0 and 240")
	}
	if cfg.Input.Loop && cfg.Input.MaxFrames == 0 {
		return fmt.Errorf("input.loop requires input.max_frames")
	}

	// Validate decoder
	if cfg.Decoder.Codec != "" {
		if _, err := streamdecode.ParseCodec(cfg.Decoder.Codec); err != nil {
			return fmt.Errorf("decoder.codec: %w", err)
		}
	}
	if cfg.Decoder.StallTimeout < 0 {
		return fmt.Errorf("decoder.stall_timeout must be >= 0")
	}

	// Validate output
	if !contains(outputFormats, strings.ToLower(cfg.Output.Format)) {
		return fmt.Errorf("output.format must be one of %s", strings.Join(outputFormats, ", "))
	}
	if cfg.Output.Quality < 1 || cfg.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if cfg.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must be >= 0")
	}
	if !contains(logLevels, strings.ToLower(cfg.Log.Level)) {
		return fmt.Errorf("log.level must be one of %s", strings.Join(logLevels, ", "))
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
