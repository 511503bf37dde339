package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ccollicutt/gclog/pkg/events"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	s := report.Summary
	fmt.Fprintf(w, "gclog: %d documents, %d lines, %d skipped, %d transitions, %d sizing entries\n",
		s.Documents, s.TotalLines, s.SkippedLines, s.Transitions, s.SizingEntries)
	return nil
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "=== gclog Parse Report ===")
	fmt.Fprintln(w)

	for _, src := range report.Sources {
		if src.Document == nil {
			continue
		}
		f.formatSource(src, w)
	}

	s := report.Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d documents, %d lines, %d skipped, %d transitions, %d sizing entries\n",
		s.Documents, s.TotalLines, s.SkippedLines, s.Transitions, s.SizingEntries)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(time.Millisecond))
	}
	return nil
}

func (f *TextFormatter) formatSource(src Source, w io.Writer) {
	doc := src.Document
	md := doc.Metadata

	fmt.Fprintf(w, "[%s] %s\n", md.Format, src.Path)

	tw := newTable(w)
	tw.AppendRows([]table.Row{
		{"Lines", md.TotalLines},
		{"Ignored", md.IgnoredLines},
		{"Skipped", md.SkippedLines},
		{"Region transitions", len(doc.RegionTransitions)},
		{"Sizing entries", len(doc.SizingEntries)},
		{"Correlations", md.Correlations},
		{"Sizing data", yesNo(md.HasSizingData)},
		{"Uncommit only", yesNo(md.IsUncommitOnly)},
	})
	if md.RegionSizeBytes > 0 {
		tw.AppendRow(table.Row{"Region size", humanize.IBytes(uint64(md.RegionSizeBytes))})
	}
	if !md.StartTime.IsZero() {
		tw.AppendRow(table.Row{"Start time", md.StartTime.UTC().Format(time.RFC3339)})
	}
	tw.Render()

	if md.SkippedLines > 0 {
		color.New(color.FgYellow).Fprintf(w, "  %d line(s) skipped: %s\n", md.SkippedLines, categories(md.SkippedByCategory))
	}

	if f.opts.Verbose {
		if len(doc.RegionTransitions) > 0 {
			fmt.Fprintln(w, "Region transitions:")
			f.formatTransitions(doc.RegionTransitions, w)
		}
		if len(doc.SizingEntries) > 0 {
			fmt.Fprintln(w, "Sizing entries:")
			f.formatSizing(doc.SizingEntries, w)
		}
		if len(md.Diagnostics) > 0 {
			fmt.Fprintln(w, "Skipped lines:")
			FormatDiagnostics(md.Diagnostics, w)
		}
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatTransitions(transitions []events.RegionTransition, w io.Writer) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"GC", "Time (s)", "Kind", "Cause", "Heap", "Committed", "Pause"})
	for i := range transitions {
		t := &transitions[i]
		tw.AppendRow(table.Row{
			t.GCID,
			fmt.Sprintf("%.3f", t.Timestamp),
			t.Kind,
			t.Cause,
			fmt.Sprintf("%s -> %s", formatBytes(t.HeapBefore), formatBytes(t.HeapAfter)),
			fmt.Sprintf("%s -> %s", formatBytes(t.CommittedBefore), formatBytes(t.CommittedAfter)),
			fmt.Sprintf("%.3fms", t.DurationMs),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	tw.Render()
}

func (f *TextFormatter) formatSizing(entries []events.SizingEntry, w io.Writer) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Time (s)", "Kind", "Decision", "Memory", "Regions", "Key"})
	for i := range entries {
		e := &entries[i]
		key := ""
		if e.CorrelationKey > 0 {
			key = fmt.Sprintf("#%d", e.CorrelationKey)
		}
		tw.AppendRow(table.Row{
			fmt.Sprintf("%.3f", e.Timestamp),
			e.Kind,
			e.Decision,
			signedBytes(e.MemoryDelta),
			e.RegionDelta,
			key,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	tw.Render()
}

// FormatDiagnostics writes the skipped-line sample as a table.
func FormatDiagnostics(diags []events.Diagnostic, w io.Writer) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Line", "Category", "Reason", "Text"})
	for _, d := range diags {
		tw.AppendRow(table.Row{d.LineNum, d.Category, d.Reason, d.Text})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, WidthMax: 80},
	})
	tw.Render()
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	return tw
}

func formatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

func signedBytes(n int64) string {
	if n > 0 {
		return "+" + formatBytes(n)
	}
	return formatBytes(n)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// categories renders skip counts in a fixed order.
func categories(counts map[string]int) string {
	order := []string{
		events.SkipOversize, events.SkipUnknownFormat, events.SkipGrammar, events.SkipTimestamp,
		events.SkipUnrecognized, events.SkipMalformed, events.SkipTruncated,
	}
	parts := make([]string, 0, len(counts))
	for _, c := range order {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	return strings.Join(parts, ", ")
}
