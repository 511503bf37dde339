// Package detector decides which unified-logging line grammar a GC log uses.
package detector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultLookahead is the number of non-blank lines inspected before giving up.
const DefaultLookahead = 200

// ErrUnrecognizedFormat reports that no grammar matched within the lookahead.
var ErrUnrecognizedFormat = errors.New("unrecognized log format")

// DetectionResult holds the result of analyzing the head of a log.
type DetectionResult struct {
	Format       Format   // Detected format, FormatUnknown if inconclusive
	Grammar      *Grammar // Grammar for Format, nil if unknown
	SampledLines int      // Number of non-blank lines inspected
	MatchLine    int      // 1-based index among the inspected lines of the deciding line, 0 if none
	SampleLine   string   // The deciding line
}

// Detector inspects log lines to identify the line grammar.
type Detector struct {
	grammars  []*Grammar
	lookahead int
}

// Option configures the Detector.
type Option func(*Detector)

// WithLookahead sets the number of non-blank lines to inspect (default 200).
func WithLookahead(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.lookahead = n
		}
	}
}

// New creates a new Detector with the default grammars.
func New(opts ...Option) *Detector {
	d := &Detector{
		grammars:  DefaultGrammars(),
		lookahead: DefaultLookahead,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lookahead returns the configured lookahead bound.
func (d *Detector) Lookahead() int {
	return d.lookahead
}

// DetectFromLines scans lines in order and returns the format of the first line
// that matches exactly one grammar.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{Format: FormatUnknown}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if result.SampledLines >= d.lookahead {
			break
		}
		result.SampledLines++

		if g := d.unambiguous(line); g != nil {
			result.Format = g.Format
			result.Grammar = g
			result.MatchLine = result.SampledLines
			result.SampleLine = line
			return result
		}
	}

	return result
}

// unambiguous returns the single grammar matching line, or nil when zero or
// several grammars match.
func (d *Detector) unambiguous(line string) *Grammar {
	var found *Grammar
	for _, g := range d.grammars {
		if !g.Match(line) {
			continue
		}
		if found != nil {
			return nil
		}
		found = g
	}
	return found
}

// DetectFromReader samples up to the lookahead from r and detects the format.
func (d *Detector) DetectFromReader(ctx context.Context, r io.Reader) (*DetectionResult, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for len(lines) < d.lookahead && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sampling log: %w", err)
	}

	return d.DetectFromLines(lines), nil
}

// HasMatch returns true if a grammar was detected.
func (r *DetectionResult) HasMatch() bool {
	return r.Format != FormatUnknown
}

// Err returns ErrUnrecognizedFormat when detection was inconclusive.
func (r *DetectionResult) Err() error {
	if r.HasMatch() {
		return nil
	}
	return fmt.Errorf("%w after %d lines", ErrUnrecognizedFormat, r.SampledLines)
}
