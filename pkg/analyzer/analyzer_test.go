package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/gclog/pkg/detector"
	"github.com/ccollicutt/gclog/pkg/events"
	"github.com/ccollicutt/gclog/pkg/metrics"
)

const mib = 1024 * 1024

func newTestAnalyzer(opts ...Option) *Analyzer {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(opts...)
}

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

// failingReader returns data and then an I/O error.
type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("disk on fire")
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestParse_SinglePause(t *testing.T) {
	log := lines(
		"[0.004s][info][gc,init] Heap Region Size: 1M",
		"[0.155s][info][gc,start    ] GC(0) Pause Young (Normal) (G1 Evacuation Pause)",
		"[0.156s][info][gc,heap     ] GC(0) Eden regions: 12->0(10)",
		"[0.156s][info][gc,heap     ] GC(0) Survivor regions: 0->2(2)",
		"[0.156s][info][gc,heap     ] GC(0) Old regions: 3->3",
		"[0.156s][info][gc,heap     ] GC(0) Humongous regions: 0->0",
		"[0.160s][info][gc          ] GC(0) Pause Young (Normal) (G1 Evacuation Pause) 24M->4M(256M) 5.123ms",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.Equal(t, detector.FormatTraditional, doc.Metadata.Format)
	assert.False(t, doc.Metadata.HasSizingData)
	assert.False(t, doc.Metadata.IsUncommitOnly)
	assert.Empty(t, doc.SizingEntries)
	assert.Zero(t, doc.Metadata.SkippedLines)
	assert.Equal(t, int64(mib), doc.Metadata.RegionSizeBytes)

	require.Len(t, doc.RegionTransitions, 1)
	tr := doc.RegionTransitions[0]
	assert.Equal(t, 0, tr.GCID)
	assert.Equal(t, "young", tr.Kind)
	assert.Equal(t, "G1 Evacuation Pause", tr.Cause)
	assert.Equal(t, 0.155, tr.Timestamp)
	assert.Len(t, tr.Regions, 4)
	assert.Equal(t, 12, tr.Regions[events.RegionEden].RegionsBefore)
	assert.Equal(t, int64(10*mib), tr.Regions[events.RegionEden].BytesCommitted)
	assert.Equal(t, 3, tr.Regions[events.RegionOld].RegionsCommitted)
	assert.Equal(t, int64(24*mib), tr.HeapBefore)
	assert.Equal(t, int64(4*mib), tr.HeapAfter)
	assert.Equal(t, int64(256*mib), tr.CommittedAfter)
	assert.InDelta(t, 5.123, tr.DurationMs, 1e-9)
	assert.Equal(t, 6, tr.Lines)
}

func TestParse_ModernCorrelatedUncommit(t *testing.T) {
	log := lines(
		"[2025-07-01T10:00:00.000+0000][4242][4243][info][gc,init] Heap Region Size: 1M",
		"[2025-07-01T10:05:00.000+0000][4242][4250][info][gc,heap] Uncommit evaluation: found 20 inactive regions, uncommitting 16 regions (16MB)",
		"[2025-07-01T10:05:00.010+0000][4242][4250][info][gc,heap] Heap shrink details: uncommitted 16 regions (16MB), heap size now 240MB",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.Equal(t, detector.FormatModern, doc.Metadata.Format)
	assert.False(t, doc.Metadata.StartTime.IsZero())
	require.Len(t, doc.SizingEntries, 2)

	eval, unc := doc.SizingEntries[0], doc.SizingEntries[1]
	assert.Equal(t, events.SizingEvaluation, eval.Kind)
	assert.Equal(t, events.DecisionUncommit, eval.Decision)
	assert.Equal(t, events.SizingUncommit, unc.Kind)
	assert.Equal(t, 1, eval.CorrelationKey)
	assert.Equal(t, eval.CorrelationKey, unc.CorrelationKey)
	assert.InDelta(t, 300.0, eval.Timestamp, 1e-9)
	assert.InDelta(t, 300.01, unc.Timestamp, 1e-9)
	assert.Equal(t, int64(-16*mib), unc.MemoryDelta)

	assert.True(t, doc.Metadata.HasSizingData)
	assert.True(t, doc.Metadata.IsUncommitOnly)
	assert.Equal(t, 1, doc.Metadata.Correlations)
}

func TestParse_UncommitWithoutEvaluation(t *testing.T) {
	log := lines("[12.000s][info][gc,heap] Time-based shrink: uncommitted 8 oldest regions (8MB), heap size now 248MB")

	doc := newTestAnalyzer().ParseString(log)

	require.Len(t, doc.SizingEntries, 1)
	assert.Zero(t, doc.SizingEntries[0].CorrelationKey)
	assert.Equal(t, int64(-8*mib), doc.SizingEntries[0].MemoryDelta)
	assert.False(t, doc.Metadata.IsUncommitOnly)
	assert.Zero(t, doc.Metadata.SkippedLines)
}

func TestParse_GarbledLines(t *testing.T) {
	log := lines(
		"[3.000s][info][gc,heap] Time-based evaluation: no uncommit needed",
		"@@@@ garbled @@@@",
		"[1.000s][info][gc,init] Heap sizing initialized (mode: uncommit-only)",
		"[2.0",
		"[2.000s][info][gc,heap] Heap sizing parameters: evaluation_interval_ms=60000, uncommit_delay_ms=300000",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.Equal(t, 2, doc.Metadata.SkippedLines)
	assert.Equal(t, 5, doc.Metadata.TotalLines)
	assert.Equal(t, 2, doc.Metadata.SkippedByCategory[events.SkipGrammar])
	require.Len(t, doc.Metadata.Diagnostics, 2)
	assert.Equal(t, 2, doc.Metadata.Diagnostics[0].LineNum)
	assert.Equal(t, "@@@@ garbled @@@@", doc.Metadata.Diagnostics[0].Text)

	require.Len(t, doc.SizingEntries, 3)
	assert.Equal(t, events.SizingInit, doc.SizingEntries[0].Kind)
	assert.Equal(t, events.SizingParameter, doc.SizingEntries[1].Kind)
	assert.Equal(t, events.SizingEvaluation, doc.SizingEntries[2].Kind)
	assert.True(t, doc.Metadata.IsUncommitOnly, "declared by init line")
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "\n\n  \n"} {
		doc := newTestAnalyzer().ParseString(input)

		assert.Equal(t, detector.FormatUnknown, doc.Metadata.Format)
		assert.NotNil(t, doc.RegionTransitions)
		assert.NotNil(t, doc.SizingEntries)
		assert.Empty(t, doc.RegionTransitions)
		assert.Empty(t, doc.SizingEntries)
		assert.Zero(t, doc.Metadata.TotalLines)
		assert.Zero(t, doc.Metadata.SkippedLines)
		assert.False(t, doc.Metadata.HasSizingData)
	}
}

func TestParse_UnknownFormatSkipsEverything(t *testing.T) {
	doc := newTestAnalyzer().ParseString(lines("hello", "", "world"))

	assert.Equal(t, detector.FormatUnknown, doc.Metadata.Format)
	assert.Equal(t, 2, doc.Metadata.TotalLines)
	assert.Equal(t, 2, doc.Metadata.SkippedLines)
	assert.Equal(t, 2, doc.Metadata.SkippedByCategory[events.SkipUnknownFormat])
}

func TestParse_MixedGrammarLinesAreSkipped(t *testing.T) {
	log := lines(
		"[1.000s][info][gc,heap] Time-based evaluation: no uncommit needed",
		"[2025-07-01T10:00:00.000+0000][1][2][info][gc,heap] Time-based evaluation: no uncommit needed",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.Equal(t, detector.FormatTraditional, doc.Metadata.Format)
	assert.Len(t, doc.SizingEntries, 1)
	assert.Equal(t, 1, doc.Metadata.SkippedLines)
}

func TestParse_IgnoredAndPartialLines(t *testing.T) {
	log := lines(
		"[0.001s][info][gc] Using G1",
		"[0.002s][info][gc,heap] Time-based shrink: deactivated many oldest empty regions",
		"[0.003s][info][gc,cpu] GC(0) User=0.01s Sys=0.00s Real=0.00s",
		"[0.004s][info][gc,heap,coops] Heap address: 0x0000000700000000, size: 4096 MB, Compressed Oops mode: Zero based, Oop shift amount: 3",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.Equal(t, 4, doc.Metadata.TotalLines)
	assert.Equal(t, 3, doc.Metadata.IgnoredLines)
	assert.Equal(t, 1, doc.Metadata.SkippedLines)
	assert.Equal(t, 1, doc.Metadata.SkippedByCategory[events.SkipUnrecognized])
}

func TestParse_MalformedBlockDropped(t *testing.T) {
	log := lines(
		"[0.155s][info][gc,start] GC(0) Pause Young (Normal) (G1 Evacuation Pause)",
		"[0.156s][info][gc,heap] GC(0) Eden regions: 12->11(10)",
		"[0.156s][info][gc,heap] GC(0) Survivor regions: 0->2(2)",
		"[0.160s][info][gc] GC(0) Pause Young (Normal) (G1 Evacuation Pause) 24M->4M(256M) 5.123ms",
		"[0.300s][info][gc,start] GC(1) Pause Young (Normal) (G1 Evacuation Pause)",
		"[0.301s][info][gc,heap] GC(1) Eden regions: 10->0(10)",
		"[0.305s][info][gc] GC(1) Pause Young (Normal) (G1 Evacuation Pause) 20M->4M(256M) 3.000ms",
	)

	doc := newTestAnalyzer().ParseString(log)

	// GC(0) is dropped at its bad row; its remaining lines open and close a
	// new block for GC(0) that lacks the header.
	assert.Equal(t, 1, doc.Metadata.MalformedEvents)
	assert.Equal(t, 2, doc.Metadata.SkippedLines)
	require.Len(t, doc.RegionTransitions, 2)
	assert.Equal(t, 0, doc.RegionTransitions[0].GCID)
	assert.Equal(t, 2, doc.RegionTransitions[0].Lines)
	assert.Equal(t, 1, doc.RegionTransitions[1].GCID)
	assert.Equal(t, int64(256*mib), doc.RegionTransitions[1].CommittedBefore)

	assert.LessOrEqual(t, doc.Metadata.SkippedLines+doc.ContributingLines(), doc.Metadata.TotalLines)
}

func TestParse_TruncatedBlock(t *testing.T) {
	log := lines(
		"[0.155s][info][gc,start] GC(0) Pause Young (Normal) (G1 Evacuation Pause)",
		"[0.156s][info][gc,heap] GC(0) Eden regions: 12->0(10)",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.Empty(t, doc.RegionTransitions)
	assert.Equal(t, 2, doc.Metadata.SkippedLines)
	assert.Equal(t, 2, doc.Metadata.SkippedByCategory[events.SkipTruncated])
	assert.Zero(t, doc.Metadata.MalformedEvents)
	require.Len(t, doc.Metadata.Diagnostics, 2)
	assert.Contains(t, doc.Metadata.Diagnostics[0].Text, "Pause Young")
}

func TestParse_EvaluationAmendments(t *testing.T) {
	log := lines(
		"[0.004s][info][gc,init] Heap Region Size: 1M",
		"[60.000s][info][gc,heap] Starting uncommit evaluation",
		"[60.001s][info][gc,heap] Time-based uncommit evaluation: found 20 inactive regions (requested 16)",
		"[60.002s][info][gc,heap] Uncommit evaluation: shrinking heap by 16MB using time-based selection",
		"[60.003s][info][gc,heap] Time-based shrink: requesting 16MB based on 16 time-based candidates",
		"[60.004s][info][gc,heap] Time-based shrink: deactivated 16 oldest empty regions",
		"[60.005s][info][gc,heap] Heap shrink completed: uncommitted 16 regions, heap: 240M",
	)

	doc := newTestAnalyzer().ParseString(log)

	kinds := make([]events.SizingKind, 0, len(doc.SizingEntries))
	for _, e := range doc.SizingEntries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []events.SizingKind{
		events.SizingEvaluationStart,
		events.SizingEvaluation,
		events.SizingRequest,
		events.SizingUncommit,
		events.SizingShrinkCompleted,
	}, kinds)

	eval, unc := doc.SizingEntries[1], doc.SizingEntries[3]
	assert.Equal(t, int64(-16*mib), eval.MemoryDelta, "shrink size taken from the summary line")
	assert.Equal(t, -16, eval.RegionDelta)
	assert.Equal(t, int64(16), eval.Extra["shrink_mb"])
	assert.Equal(t, 1, eval.CorrelationKey)
	assert.Equal(t, 1, unc.CorrelationKey)
	assert.Equal(t, int64(-16*mib), unc.MemoryDelta)
	assert.Equal(t, -16, unc.RegionDelta)
}

func TestParse_DeactivatedUsesRegionSize(t *testing.T) {
	log := lines(
		"[0.004s][info][gc,init] Heap Region Size: 2M",
		"[60.004s][info][gc,heap] Time-based shrink: deactivated 4 oldest empty regions",
	)

	doc := newTestAnalyzer().ParseString(log)

	require.Len(t, doc.SizingEntries, 1)
	assert.Equal(t, int64(-8*mib), doc.SizingEntries[0].MemoryDelta)
	assert.Zero(t, doc.SizingEntries[0].CorrelationKey)
}

func TestParse_FIFOCorrelation(t *testing.T) {
	log := lines(
		"[1.000s][info][gc,heap] Time-based evaluation: shrink by 1MB",
		"[2.000s][info][gc,heap] Time-based evaluation: shrink by 2MB",
		"[3.000s][info][gc,heap] Time-based evaluation: no uncommit needed",
		"[4.000s][info][gc,heap] Time-based uncommit: 1 regions (1.0MB) uncommitted (inactive: 1, total: 10 regions)",
		"[5.000s][info][gc,heap] Time-based uncommit: 2 regions (2.0MB) uncommitted (inactive: 2, total: 10 regions)",
	)

	doc := newTestAnalyzer().ParseString(log)

	require.Len(t, doc.SizingEntries, 5)
	assert.Equal(t, 1, doc.SizingEntries[0].CorrelationKey)
	assert.Equal(t, 2, doc.SizingEntries[1].CorrelationKey)
	assert.Zero(t, doc.SizingEntries[2].CorrelationKey, "no-uncommit evaluations never pair")
	assert.Equal(t, 1, doc.SizingEntries[3].CorrelationKey)
	assert.Equal(t, 2, doc.SizingEntries[4].CorrelationKey)

	assertPairsOrdered(t, doc)
}

func TestParse_CorrelatorOverflow(t *testing.T) {
	log := lines(
		"[1.000s][info][gc,heap] Time-based evaluation: shrink by 1MB",
		"[2.000s][info][gc,heap] Time-based evaluation: shrink by 2MB",
		"[3.000s][info][gc,heap] Time-based evaluation: shrink by 3MB",
		"[4.000s][info][gc,heap] Time-based shrink: uncommitted 2 oldest regions (2MB), heap size now 10MB",
		"[5.000s][info][gc,heap] Time-based shrink: uncommitted 3 oldest regions (3MB), heap size now 7MB",
		"[6.000s][info][gc,heap] Time-based shrink: uncommitted 1 oldest regions (1MB), heap size now 6MB",
	)

	doc := newTestAnalyzer(WithMaxPending(2)).ParseString(log)

	require.Len(t, doc.SizingEntries, 6)
	assert.Zero(t, doc.SizingEntries[0].CorrelationKey, "oldest evaluation evicted")
	assert.Equal(t, 1, doc.SizingEntries[1].CorrelationKey)
	assert.Equal(t, 2, doc.SizingEntries[2].CorrelationKey)
	assert.Equal(t, 1, doc.SizingEntries[3].CorrelationKey)
	assert.Equal(t, 2, doc.SizingEntries[4].CorrelationKey)
	assert.Zero(t, doc.SizingEntries[5].CorrelationKey)
}

func TestParse_EvaluationAfterUncommitNotPaired(t *testing.T) {
	log := lines(
		"[5.000s][info][gc,heap] Time-based evaluation: shrink by 1MB",
		"[4.000s][info][gc,heap] Time-based shrink: uncommitted 1 oldest regions (1MB), heap size now 6MB",
	)

	doc := newTestAnalyzer().ParseString(log)

	require.Len(t, doc.SizingEntries, 2)
	assert.Equal(t, events.SizingUncommit, doc.SizingEntries[0].Kind, "sorted by timestamp")
	assert.Zero(t, doc.SizingEntries[0].CorrelationKey)
	assert.Zero(t, doc.SizingEntries[1].CorrelationKey)
}

func TestParse_ExpandDisablesUncommitOnly(t *testing.T) {
	log := lines(
		"[1.000s][info][gc,heap] Time-based evaluation: shrink by 1MB",
		"[2.000s][info][gc,heap] Time-based shrink: uncommitted 1 oldest regions (1MB), heap size now 6MB",
		"[3.000s][info][gc,ergo,heap] GC(4) Expand the heap. requested expansion amount: 2097152B expansion amount: 2097152B",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.True(t, doc.Metadata.HasSizingData)
	assert.False(t, doc.Metadata.IsUncommitOnly)
}

func TestParse_OversizeLine(t *testing.T) {
	log := lines(
		"[1.000s][info][gc,heap] Time-based evaluation: no uncommit needed",
		"[1.500s][info][gc,heap] "+strings.Repeat("x", 200),
	)

	doc := newTestAnalyzer(WithMaxLineBytes(128)).ParseString(log)

	assert.Len(t, doc.SizingEntries, 1)
	assert.Equal(t, 1, doc.Metadata.SkippedByCategory[events.SkipOversize])
}

func TestParse_DiagnosticsLimit(t *testing.T) {
	log := lines("[1.000s][info][gc] ok", "bad", "bad", "bad")

	doc := newTestAnalyzer(WithDiagnosticsLimit(1)).ParseString(log)

	assert.Equal(t, 3, doc.Metadata.SkippedLines)
	assert.Len(t, doc.Metadata.Diagnostics, 1)
}

func TestParse_Deterministic(t *testing.T) {
	log := lines(
		"[0.004s][info][gc,init] Heap Region Size: 1M",
		"[0.155s][info][gc,start] GC(0) Pause Young (Normal) (G1 Evacuation Pause)",
		"[0.156s][info][gc,heap] GC(0) Eden regions: 12->0(10)",
		"[0.160s][info][gc] GC(0) Pause Young (Normal) (G1 Evacuation Pause) 24M->4M(256M) 5.123ms",
		"[60.001s][info][gc,heap] Time-based uncommit evaluation: found 20 inactive regions (requested 16)",
		"[60.004s][info][gc,heap] Time-based shrink: deactivated 16 oldest empty regions",
	)

	a := newTestAnalyzer()
	assert.Equal(t, a.ParseString(log), a.ParseString(log))
}

func TestParse_ReaderError(t *testing.T) {
	r := &failingReader{data: []byte("[1.000s][info][gc,heap] Time-based evaluation: no uncommit needed\n")}

	doc, err := newTestAnalyzer().Parse(context.Background(), r)

	require.Error(t, err)
	require.NotNil(t, doc)
	assert.Len(t, doc.SizingEntries, 1, "partial document is returned")
}

func TestParse_Metrics(t *testing.T) {
	rec := metrics.NewRecorder()
	a := newTestAnalyzer(WithMetrics(rec))

	a.ParseString(lines("[1.000s][info][gc,heap] Time-based evaluation: no uncommit needed", "junk"))

	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gclog_documents_total"])
	assert.True(t, names["gclog_skipped_lines_total"])
	assert.True(t, names["gclog_events_total"])
}

func TestParse_DecimalCommaLocale(t *testing.T) {
	log := lines(
		"[0,004s][info][gc,init] Heap Region Size: 1M",
		"[0,155s][info][gc,start    ] GC(0) Pause Young (Normal) (G1 Evacuation Pause)",
		"[0,156s][info][gc,heap     ] GC(0) Eden regions: 12->0(10)",
		"[0,160s][info][gc          ] GC(0) Pause Young (Normal) (G1 Evacuation Pause) 24M->4M(256M) 5,123ms",
	)

	doc := newTestAnalyzer().ParseString(log)

	assert.Zero(t, doc.Metadata.SkippedLines)
	require.Len(t, doc.RegionTransitions, 1)
	assert.InDelta(t, 0.155, doc.RegionTransitions[0].Timestamp, 1e-9)
	assert.InDelta(t, 5.123, doc.RegionTransitions[0].DurationMs, 1e-9)
}

func TestParse_DiagnosticTextKeepsRunes(t *testing.T) {
	long := "[0.002s][info][gc,heap] Time-based shrink: deactivated many oldest empty regions " + strings.Repeat("é", 150)
	require.Greater(t, len(long), maxDiagnosticText)

	doc := newTestAnalyzer().ParseString(lines("[0.001s][info][gc] Using G1", long))

	require.Len(t, doc.Metadata.Diagnostics, 1)
	text := doc.Metadata.Diagnostics[0].Text
	assert.True(t, utf8.ValidString(text))
	assert.LessOrEqual(t, len(text), maxDiagnosticText)
	assert.True(t, strings.HasPrefix(long, text))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "ab", truncateText("abc", 2))
	assert.Equal(t, "a", truncateText("aé", 2))
	assert.Equal(t, "", truncateText("é", 1))
}

func TestParse_DetectionBufferCapped(t *testing.T) {
	gc := "[1.000s][info][gc,heap] Time-based evaluation: no uncommit needed"

	doc := newTestAnalyzer().ParseString(strings.Repeat("\n", 100) + gc + "\n")
	assert.Equal(t, detector.FormatTraditional, doc.Metadata.Format)
	assert.Len(t, doc.SizingEntries, 1)

	doc = newTestAnalyzer(WithLookahead(2)).ParseString(strings.Repeat("\n", minDetectionBuffer) + gc + "\n")
	assert.Equal(t, detector.FormatUnknown, doc.Metadata.Format, "sample is cut off before the first non-blank line")
	assert.Equal(t, 1, doc.Metadata.TotalLines, "held back lines are still replayed")
	assert.Equal(t, 1, doc.Metadata.SkippedByCategory[events.SkipUnknownFormat])
}

func assertPairsOrdered(t *testing.T, doc *events.Document) {
	t.Helper()
	evalTs := map[int]float64{}
	for _, e := range doc.SizingEntries {
		if e.Kind == events.SizingEvaluation && e.CorrelationKey > 0 {
			evalTs[e.CorrelationKey] = e.Timestamp
		}
	}
	for _, e := range doc.SizingEntries {
		if e.Kind == events.SizingUncommit && e.CorrelationKey > 0 {
			ts, ok := evalTs[e.CorrelationKey]
			require.True(t, ok)
			assert.LessOrEqual(t, ts, e.Timestamp)
		}
	}
}
