// Package config provides configuration loading and validation for gclog.
package config

import (
	"log/slog"
	"time"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Parser   ParserConfig    `yaml:"parser"`
	Output   OutputConfig    `yaml:"output"`
	Logging  LoggingConfig   `yaml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// ParserConfig tunes the single-pass parser.
type ParserConfig struct {
	// LookaheadLines is how many non-blank lines format detection inspects.
	LookaheadLines int `yaml:"lookahead_lines"`

	// MaxPendingEvaluations bounds the evaluations waiting for an uncommit.
	// The oldest is dropped on overflow.
	MaxPendingEvaluations int `yaml:"max_pending_evaluations"`

	// MaxLineBytes is the longest line parsed; longer lines are skipped.
	MaxLineBytes int `yaml:"max_line_bytes"`

	// DiagnosticsLimit is how many skipped lines are sampled per document.
	// Zero disables the sample.
	DiagnosticsLimit int `yaml:"diagnostics_limit"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	// Format is text, json or yaml. Empty picks text on a terminal and json
	// otherwise.
	Format string `yaml:"format"`

	// SkippedWarnRatio is the share of skipped lines above which parse exits
	// with status 1. Zero disables the check.
	SkippedWarnRatio float64 `yaml:"skipped_warn_ratio"`
}

// LoggingConfig controls the diagnostic log written to stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SlogLevel returns the configured level. Validate rejects unknown names.
func (l LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when a document has skipped lines or
	// malformed events (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every parse.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint that receives exported documents.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
