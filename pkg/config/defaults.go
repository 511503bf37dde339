package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultLookaheadLines        = 200
	DefaultMaxPendingEvaluations = 64
	DefaultMaxLineBytes          = 1024 * 1024
	DefaultDiagnosticsLimit      = 20
	DefaultSkippedWarnRatio      = 0.5
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultWebhookTimeout        = 10 * time.Second
)

// Environment variable names.
const (
	EnvLogLevel     = "GCLOG_LOG_LEVEL"
	EnvOutputFormat = "GCLOG_OUTPUT_FORMAT"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Parser: ParserConfig{
			LookaheadLines:        DefaultLookaheadLines,
			MaxPendingEvaluations: DefaultMaxPendingEvaluations,
			MaxLineBytes:          DefaultMaxLineBytes,
			DiagnosticsLimit:      DefaultDiagnosticsLimit,
		},
		Output: OutputConfig{
			SkippedWarnRatio: DefaultSkippedWarnRatio,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv(EnvOutputFormat); format != "" {
		c.Output.Format = format
	}
}
