package detector

import (
	"regexp"
	"strings"
)

// Format identifies the line grammar used by a GC log.
type Format string

const (
	// FormatTraditional lines start with a bracketed uptime such as [12.345s].
	FormatTraditional Format = "TRADITIONAL"

	// FormatModern lines start with [iso-timestamp][pid][tid] followed by level and tags.
	FormatModern Format = "MODERN"

	// FormatUnknown means no grammar matched within the detection lookahead.
	FormatUnknown Format = "UNKNOWN"
)

// Grammar describes one of the supported line grammars.
type Grammar struct {
	Format     Format
	Name       string         // Human-readable name
	Pattern    *regexp.Regexp // Compiled regex (set during init)
	PatternStr string         // Pattern string for diagnostics output
	Examples   []string       // Example lines

	// Capture group indexes within Pattern. Zero means the grammar lacks the field.
	tsGroup   int
	pidGroup  int
	tidGroup  int
	decoGroup int
	msgGroup  int
}

// Decorated is a line split into its unified-logging decorations and message.
type Decorated struct {
	Timestamp string
	PID       string
	TID       string
	Level     string
	Tags      []string
	Message   string
}

// DefaultGrammars returns the built-in grammars, most specific first.
func DefaultGrammars() []*Grammar {
	grammars := []*Grammar{
		{
			Format:     FormatModern,
			Name:       "Unified logging with time, pid and tid",
			PatternStr: `^\[(\d{4}-\d{2}-\d{2}T[0-9:.,]+(?:Z|[+-]\d{2}:?\d{2})?)\]` +
				`\[(\d+)\]\[(\d+)\]((?:\[[^\]]*\])+)\s*(.*)$`,
			Examples: []string{
				"[2025-07-01T10:00:00.123+0000][4242][4243][info][gc,heap] GC(0) Eden regions: 12->0(10)",
			},
			tsGroup:   1,
			pidGroup:  2,
			tidGroup:  3,
			decoGroup: 4,
			msgGroup:  5,
		},
		{
			Format:     FormatTraditional,
			Name:       "Unified logging with uptime",
			PatternStr: `^\[(\d+(?:[.,]\d+)?)s\]((?:\[[^\]]*\])*)\s*(.*)$`,
			Examples: []string{
				"[0.155s][info][gc,heap] GC(0) Eden regions: 12->0(10)",
			},
			tsGroup:   1,
			decoGroup: 2,
			msgGroup:  3,
		},
	}

	for _, g := range grammars {
		g.Pattern = regexp.MustCompile(g.PatternStr)
	}

	return grammars
}

// GrammarFor returns the default grammar for a format, or nil for FormatUnknown.
func GrammarFor(format Format) *Grammar {
	for _, g := range DefaultGrammars() {
		if g.Format == format {
			return g
		}
	}
	return nil
}

// Match reports whether the line conforms to the grammar.
func (g *Grammar) Match(line string) bool {
	return g.Pattern.MatchString(line)
}

// Split breaks a line into decorations and message.
// Returns false if the line does not conform to the grammar.
func (g *Grammar) Split(line string) (Decorated, bool) {
	m := g.Pattern.FindStringSubmatch(line)
	if m == nil {
		return Decorated{}, false
	}

	d := Decorated{
		Timestamp: m[g.tsGroup],
		Message:   strings.TrimSpace(m[g.msgGroup]),
	}
	if g.pidGroup > 0 {
		d.PID = m[g.pidGroup]
	}
	if g.tidGroup > 0 {
		d.TID = m[g.tidGroup]
	}

	// Decorations are [level][tag,tag   ]; uptime variants may carry extra fields
	// such as [12ms] which are ignored.
	for _, field := range splitBrackets(m[g.decoGroup]) {
		field = strings.TrimSpace(field)
		switch {
		case d.Level == "" && isLevel(field):
			d.Level = field
		case d.Tags == nil && d.Level != "":
			for _, tag := range strings.Split(field, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					d.Tags = append(d.Tags, tag)
				}
			}
		}
	}

	return d, true
}

func splitBrackets(s string) []string {
	var fields []string
	for _, part := range strings.Split(s, "]") {
		part = strings.TrimPrefix(part, "[")
		if part != "" {
			fields = append(fields, part)
		}
	}
	return fields
}

func isLevel(s string) bool {
	switch s {
	case "trace", "debug", "info", "warning", "error":
		return true
	}
	return false
}
