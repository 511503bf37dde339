package output

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ccollicutt/gclog/pkg/events"
)

// SchemaVersion identifies the layout of exported documents.
const SchemaVersion = "1"

// floatKeys are exported as float64 even when integral.
var floatKeys = map[string]bool{
	"timestamp":   true,
	"duration_ms": true,
}

// Export converts a document into a plain mapping built only from string,
// bool, int64, float64, []any, map[string]any and nil, suitable for any
// serializer.
func Export(doc *events.Document) map[string]any {
	md := doc.Metadata

	transitions := make([]any, 0, len(doc.RegionTransitions))
	for i := range doc.RegionTransitions {
		transitions = append(transitions, exportTransition(&doc.RegionTransitions[i]))
	}

	entries := make([]any, 0, len(doc.SizingEntries))
	for i := range doc.SizingEntries {
		entries = append(entries, exportSizing(&doc.SizingEntries[i]))
	}

	diagnostics := make([]any, 0, len(md.Diagnostics))
	for _, d := range md.Diagnostics {
		diagnostics = append(diagnostics, map[string]any{
			"line":     int64(d.LineNum),
			"offset":   d.Offset,
			"category": d.Category,
			"reason":   d.Reason,
			"text":     d.Text,
		})
	}

	byCategory := make(map[string]any, len(md.SkippedByCategory))
	for category, n := range md.SkippedByCategory {
		byCategory[category] = int64(n)
	}

	var startTime any
	if !md.StartTime.IsZero() {
		startTime = md.StartTime.UTC().Format(time.RFC3339Nano)
	}

	return map[string]any{
		"schema_version":        SchemaVersion,
		"detected_format":       string(md.Format),
		"start_time":            startTime,
		"region_size_bytes":     md.RegionSizeBytes,
		"has_sizing_data":       md.HasSizingData,
		"is_uncommit_only":      md.IsUncommitOnly,
		"total_line_count":      int64(md.TotalLines),
		"skipped_line_count":    int64(md.SkippedLines),
		"ignored_line_count":    int64(md.IgnoredLines),
		"malformed_event_count": int64(md.MalformedEvents),
		"correlation_count":     int64(md.Correlations),
		"skipped_by_category":   byCategory,
		"diagnostics":           diagnostics,
		"region_transitions":    transitions,
		"sizing_entries":        entries,
	}
}

func exportTransition(t *events.RegionTransition) map[string]any {
	regions := make(map[string]any, len(t.Regions))
	for _, rt := range events.RegionTypes {
		occ, ok := t.Regions[rt]
		if !ok {
			continue
		}
		regions[string(rt)] = map[string]any{
			"regions_before":    int64(occ.RegionsBefore),
			"regions_after":     int64(occ.RegionsAfter),
			"regions_committed": int64(occ.RegionsCommitted),
			"bytes_before":      occ.BytesBefore,
			"bytes_after":       occ.BytesAfter,
			"bytes_committed":   occ.BytesCommitted,
		}
	}

	return map[string]any{
		"gc_id":            int64(t.GCID),
		"timestamp":        t.Timestamp,
		"kind":             t.Kind,
		"cause":            t.Cause,
		"regions":          regions,
		"heap_before":      t.HeapBefore,
		"heap_after":       t.HeapAfter,
		"committed_before": t.CommittedBefore,
		"committed_after":  t.CommittedAfter,
		"duration_ms":      t.DurationMs,
		"line":             int64(t.LineNum),
		"line_count":       int64(t.Lines),
	}
}

func exportSizing(e *events.SizingEntry) map[string]any {
	m := map[string]any{
		"timestamp":       e.Timestamp,
		"kind":            string(e.Kind),
		"memory_delta":    e.MemoryDelta,
		"region_delta":    int64(e.RegionDelta),
		"decision":        nil,
		"correlation_key": nil,
		"mode":            nil,
		"line":            int64(e.LineNum),
	}
	if e.Decision != "" {
		m["decision"] = e.Decision
	}
	if e.CorrelationKey > 0 {
		m["correlation_key"] = int64(e.CorrelationKey)
	}
	if e.Mode != "" {
		m["mode"] = e.Mode
	}

	extra := make(map[string]any, len(e.Extra))
	for k, v := range e.Extra {
		extra[k] = v
	}
	// Normalizing builder values cannot fail: they are ints and strings.
	if norm, err := canonicalValue("extra", extra); err == nil {
		m["extra"] = norm
	} else {
		m["extra"] = map[string]any{}
	}
	return m
}

// Canonical re-exports a mapping produced by Export or decoded from JSON or
// YAML. Numbers come back as int64 unless they are fractional or belong to a
// float field. Canonical(Export(doc)) equals Export(doc), and Canonical is
// idempotent.
func Canonical(m map[string]any) (map[string]any, error) {
	v, err := canonicalValue("", m)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func canonicalValue(key string, v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool:
		return val, nil

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			c, err := canonicalValue(k, item)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil

	case map[any]any:
		out := make(map[string]any, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("field %q: non-string key %v", key, k)
			}
			keys = append(keys, ks)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c, err := canonicalValue(k, val[k])
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil

	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			c, err := canonicalValue(key, item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil

	case json.Number:
		if n, err := val.Int64(); err == nil {
			return number(key, float64(n), n, true), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		return number(key, f, 0, false), nil

	case int:
		return number(key, float64(val), int64(val), true), nil
	case int32:
		return number(key, float64(val), int64(val), true), nil
	case int64:
		return number(key, float64(val), val, true), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("field %q: %d overflows int64", key, val)
		}
		return number(key, float64(val), int64(val), true), nil
	case float32:
		return number(key, float64(val), 0, false), nil
	case float64:
		return number(key, val, 0, false), nil

	default:
		return nil, fmt.Errorf("field %q: unsupported type %T", key, v)
	}
}

// number picks int64 or float64 for a numeric value.
func number(key string, f float64, i int64, isInt bool) any {
	if floatKeys[key] {
		return f
	}
	if isInt {
		return i
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
