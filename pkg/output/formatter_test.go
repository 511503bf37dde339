package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testTime = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func singleReport(t *testing.T) *Report {
	t.Helper()
	return NewReport([]Source{{Path: "gc.log", Document: parse(t, sampleLog)}}, "gclog.yaml", testTime, 42*time.Millisecond)
}

func TestNewReport_Summary(t *testing.T) {
	report := NewReport([]Source{
		{Path: "a.log", Document: parse(t, sampleLog)},
		{Path: "b.log", Document: parse(t, modernLog)},
		{Path: "missing.log"},
	}, "", testTime, 0)

	s := report.Summary
	assert.Equal(t, 2, s.Documents)
	assert.Equal(t, 14, s.TotalLines)
	assert.Equal(t, 2, s.SkippedLines)
	assert.Equal(t, 1, s.Transitions)
	assert.Equal(t, 5, s.SizingEntries)
	assert.Equal(t, 2, s.Correlations)
	assert.InDelta(t, 2.0/14.0, report.SkippedRatio(), 1e-9)
	assert.Len(t, report.Exports(), 2)
}

func TestReport_SkippedRatioEmpty(t *testing.T) {
	assert.Zero(t, NewReport(nil, "", testTime, 0).SkippedRatio())
}

func TestNewFormatter(t *testing.T) {
	for _, name := range Formats {
		f, err := NewFormatter(name, FormatOptions{})
		require.NoError(t, err)
		assert.Equal(t, name, f.Name())
	}

	f, err := NewFormatter("", FormatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "text", f.Name())

	_, err = NewFormatter("xml", FormatOptions{})
	assert.ErrorContains(t, err, "unknown output format")
}

func TestTextFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(FormatOptions{}).Format(context.Background(), singleReport(t), &buf))

	out := buf.String()
	assert.Contains(t, out, "gclog Parse Report")
	assert.Contains(t, out, "[TRADITIONAL] gc.log")
	assert.Contains(t, out, "Region size")
	assert.Contains(t, out, "1.0 MiB")
	assert.Contains(t, out, "2 line(s) skipped: grammar=1, unrecognized=1")
	assert.Contains(t, out, "Summary: 1 documents, 11 lines, 2 skipped, 1 transitions, 3 sizing entries")
	assert.NotContains(t, out, "Region transitions:")
	assert.NotContains(t, out, "Duration:")
}

func TestTextFormatter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(FormatOptions{Verbose: true}).Format(context.Background(), singleReport(t), &buf))

	out := buf.String()
	assert.Contains(t, out, "Region transitions:")
	assert.Contains(t, out, "24 MiB -> 4.0 MiB")
	assert.Contains(t, out, "G1 Evacuation Pause")
	assert.Contains(t, out, "Sizing entries:")
	assert.Contains(t, out, "-16 MiB")
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "Skipped lines:")
	assert.Contains(t, out, "not a gc line at all")
	assert.Contains(t, out, "Duration: 42ms")
}

func TestTextFormatter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(FormatOptions{Quiet: true}).Format(context.Background(), singleReport(t), &buf))

	assert.Equal(t, "gclog: 1 documents, 11 lines, 2 skipped, 1 transitions, 3 sizing entries\n", buf.String())
}

func TestJSONFormatter_Single(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(FormatOptions{}).Format(context.Background(), singleReport(t), &buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "gc.log", decoded["source"])
	assert.Equal(t, "TRADITIONAL", decoded["detected_format"])
	assert.Len(t, decoded["region_transitions"], 1)
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \""))
}

func TestJSONFormatter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(FormatOptions{Quiet: true}).Format(context.Background(), singleReport(t), &buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 1, decoded["documents"])
	assert.EqualValues(t, 11, decoded["total_line_count"])
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter(FormatOptions{}).Format(context.Background(), singleReport(t), &buf))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "gc.log", decoded["source"])
	assert.Equal(t, true, decoded["is_uncommit_only"])
	assert.Contains(t, buf.String(), "schema_version: \"1\"")
}
