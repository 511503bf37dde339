// Package output exports parsed documents and renders them for people and
// downstream tools.
package output

import (
	"time"

	"github.com/ccollicutt/gclog/pkg/events"
)

// Source is one parsed log.
type Source struct {
	// Path is the file the document was parsed from, or "-" for stdin.
	Path string

	Document *events.Document

	// Duration is how long the parse took.
	Duration time.Duration
}

// Report is the complete parse output for one invocation.
type Report struct {
	Sources  []Source
	Summary  Summary
	Metadata Metadata
}

// Summary provides aggregate statistics across all sources.
type Summary struct {
	Documents     int
	TotalLines    int
	SkippedLines  int
	IgnoredLines  int
	Transitions   int
	SizingEntries int
	Correlations  int
}

// Metadata provides context about the run.
type Metadata struct {
	ConfigFile string
	AnalyzedAt time.Time
	Duration   time.Duration
}

// NewReport aggregates parsed sources into a report.
func NewReport(sources []Source, configFile string, analyzedAt time.Time, duration time.Duration) *Report {
	report := &Report{
		Sources: sources,
		Metadata: Metadata{
			ConfigFile: configFile,
			AnalyzedAt: analyzedAt,
			Duration:   duration,
		},
	}

	for _, src := range sources {
		if src.Document == nil {
			continue
		}
		md := src.Document.Metadata
		report.Summary.Documents++
		report.Summary.TotalLines += md.TotalLines
		report.Summary.SkippedLines += md.SkippedLines
		report.Summary.IgnoredLines += md.IgnoredLines
		report.Summary.Transitions += len(src.Document.RegionTransitions)
		report.Summary.SizingEntries += len(src.Document.SizingEntries)
		report.Summary.Correlations += md.Correlations
	}
	return report
}

// SkippedRatio is the share of counted lines that were skipped.
func (r *Report) SkippedRatio() float64 {
	if r.Summary.TotalLines == 0 {
		return 0
	}
	return float64(r.Summary.SkippedLines) / float64(r.Summary.TotalLines)
}

// Exports returns the exported mapping of every source, tagged with its path.
func (r *Report) Exports() []map[string]any {
	out := make([]map[string]any, 0, len(r.Sources))
	for _, src := range r.Sources {
		if src.Document == nil {
			continue
		}
		m := Export(src.Document)
		m["source"] = src.Path
		out = append(out, m)
	}
	return out
}

func (s Summary) export() map[string]any {
	return map[string]any{
		"documents":          int64(s.Documents),
		"total_line_count":   int64(s.TotalLines),
		"skipped_line_count": int64(s.SkippedLines),
		"ignored_line_count": int64(s.IgnoredLines),
		"region_transitions": int64(s.Transitions),
		"sizing_entries":     int64(s.SizingEntries),
		"correlation_count":  int64(s.Correlations),
	}
}
