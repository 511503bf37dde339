package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ccollicutt/gclog/pkg/classifier"
)

var (
	// ErrMalformedEvent reports a classified line whose fields cannot form a
	// valid event. Only that event is dropped.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrTruncatedBlock reports a pause block that never completed.
	ErrTruncatedBlock = errors.New("incomplete pause block")

	// ErrNotSizing reports a kind that has no sizing builder.
	ErrNotSizing = errors.New("not a sizing kind")
)

// BuildSizing builds the sizing entry for a classified line. Entries whose
// meaning depends on neighbouring lines (evaluation summaries, requests,
// deactivations) are returned in their standalone form; the caller merges
// them with the pending evaluation.
func BuildSizing(kind classifier.Kind, groups []string, ts float64) (SizingEntry, error) {
	p := fieldParser{kind: kind, groups: groups}
	e := SizingEntry{Timestamp: ts, Extra: map[string]any{}}

	switch kind {
	case classifier.KindSizingStatus:
		e.Kind = SizingInit
		e.Mode = normalizeMode(p.str(0))
		if e.Mode == "enabled" && p.str(1) != "" {
			e.Mode = normalizeMode(p.str(1))
		}
		e.Extra["status"] = strings.ToLower(p.str(0))

	case classifier.KindSizingInit:
		e.Kind = SizingInit
		e.Mode = normalizeMode(p.str(0))

	case classifier.KindSizingParams:
		e.Kind = SizingParameter
		e.Extra["evaluation_interval_ms"] = p.int64(0)
		e.Extra["uncommit_delay_ms"] = p.int64(1)

	case classifier.KindSizingParamsSeconds:
		e.Kind = SizingParameter
		e.Extra["evaluation_interval_ms"] = p.int64(0) * 1000
		e.Extra["uncommit_delay_ms"] = p.int64(1) * 1000
		e.Extra["min_regions_to_uncommit"] = p.int64(2)

	case classifier.KindShrinkEvaluation:
		e.Kind = SizingEvaluation
		e.Decision = DecisionUncommit
		e.MemoryDelta = -p.mib(0)
		e.Extra["shrink_mb"] = p.int64(0)

	case classifier.KindLegacyNoUncommit:
		e.Kind = SizingEvaluation
		e.Decision = DecisionNoUncommit

	case classifier.KindEvaluationFound:
		e.Kind = SizingEvaluation
		inactive, requested := p.int64(0), p.int64(1)
		e.Extra["inactive_regions"] = inactive
		e.Extra["requested_regions"] = requested
		e.Decision = DecisionNoUncommit
		if inactive > 0 && requested > 0 {
			e.Decision = DecisionUncommit
			e.RegionDelta = -int(requested)
		}

	case classifier.KindEvaluationFoundMin:
		e.Kind = SizingEvaluation
		inactive, required := p.int64(0), p.int64(1)
		e.Extra["inactive_regions"] = inactive
		e.Extra["min_required"] = required
		e.Decision = DecisionNoUncommit
		if inactive > 0 && inactive >= required {
			e.Decision = DecisionUncommit
			e.RegionDelta = -int(inactive)
		}

	case classifier.KindEvaluationFoundUncommitting:
		e.Kind = SizingEvaluation
		e.Decision = DecisionUncommit
		e.Extra["inactive_regions"] = p.int64(0)
		e.RegionDelta = -p.int(1)
		e.MemoryDelta = -p.mib(2)

	case classifier.KindHeapEvaluationShrink:
		e.Kind = SizingEvaluation
		e.Decision = DecisionUncommit
		e.MemoryDelta = -p.mib(0)
		e.Extra["inactive_regions"] = p.int64(1)
		e.Extra["min_required"] = p.int64(2)
		e.Extra["heap_bytes"] = p.int64(3)
		e.Extra["min_heap_bytes"] = p.int64(4)

	case classifier.KindHeapEvaluationNoAction, classifier.KindEvaluationNoAction:
		e.Kind = SizingEvaluation
		e.Decision = DecisionNoUncommit
		e.Extra["inactive_regions"] = p.int64(0)
		e.Extra["min_required"] = p.int64(1)
		e.Extra["heap_bytes"] = p.int64(2)
		e.Extra["min_heap_bytes"] = p.int64(3)

	case classifier.KindEvaluationNoActionSimple:
		e.Kind = SizingEvaluation
		e.Decision = DecisionNoUncommit
		e.Extra["evaluation_number"] = p.int64(0)

	case classifier.KindEvaluationSummary:
		e.Kind = SizingEvaluation
		e.Decision = DecisionUncommit
		e.MemoryDelta = -p.mib(0)
		e.Extra["shrink_mb"] = p.int64(0)

	case classifier.KindLegacyUncommit:
		e.Kind = SizingUncommit
		e.RegionDelta = -p.int(0)
		e.MemoryDelta = -p.mib(1)
		e.Extra["inactive_regions"] = p.int64(2)
		e.Extra["total_regions"] = p.int64(3)

	case classifier.KindShrinkDetails, classifier.KindTimeBasedUncommitted:
		e.Kind = SizingUncommit
		e.RegionDelta = -p.int(0)
		e.MemoryDelta = -p.mib(1)
		e.Extra["heap_size_mb"] = p.int64(2)

	case classifier.KindDeactivated:
		e.Kind = SizingUncommit
		e.RegionDelta = -p.int(0)

	case classifier.KindShrinkCompleted:
		e.Kind = SizingShrinkCompleted
		e.Extra["heap_size_mb"] = p.int64(0)

	case classifier.KindExpand:
		e.Kind = SizingExpand
		e.Extra["requested_bytes"] = p.int64(0)
		e.MemoryDelta = p.int64(1)

	case classifier.KindEvaluationStart:
		e.Kind = SizingEvaluationStart

	case classifier.KindScan:
		e.Kind = SizingScan

	case classifier.KindScanResult:
		e.Kind = SizingScanResult
		e.Extra["inactive_regions"] = p.int64(0)
		e.Extra["total_regions"] = p.int64(1)

	case classifier.KindRequest:
		e.Kind = SizingRequest
		e.Extra["requested_mb"] = p.int64(0)
		e.Extra["candidates"] = p.int64(1)
		e.MemoryDelta = -p.mib(0)
		e.RegionDelta = -p.int(1)

	case classifier.KindProcessing:
		e.Kind = SizingProcessing
		e.Extra["uncommit_regions"] = p.int64(0)
		e.Extra["total_empty_regions"] = p.int64(1)

	case classifier.KindCandidate:
		e.Kind = SizingCandidate
		e.Extra["region_id"] = p.int64(0)
		e.Extra["last_access_ms"] = p.int64(1)

	case classifier.KindDeactivatingRegion:
		e.Kind = SizingRegionDeactivate
		e.Extra["region_id"] = p.int64(0)
		e.Extra["last_access_ms"] = p.int64(1)

	case classifier.KindRegionState:
		e.Kind = SizingRegionState
		e.Extra["region_id"] = p.int64(0)
		e.Extra["from_state"] = p.str(1)
		e.Extra["to_state"] = p.str(2)
		e.Extra["idle_ms"] = p.int64(3)

	default:
		return SizingEntry{}, fmt.Errorf("%w: %s", ErrNotSizing, kind)
	}

	if p.err != nil {
		return SizingEntry{}, p.err
	}
	if e.Kind == SizingUncommit && (e.MemoryDelta > 0 || e.RegionDelta > 0) {
		return SizingEntry{}, fmt.Errorf("%w: %s with positive delta", ErrMalformedEvent, kind)
	}
	if len(e.Extra) == 0 {
		e.Extra = nil
	}
	return e, nil
}

// normalizeMode lower-cases a policy name and joins its words with dashes,
// so "Uncommit Only" and "uncommit_only" both read "uncommit-only".
func normalizeMode(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")
}

// PauseStart is a parsed pause header line.
type PauseStart struct {
	GCID  int
	Kind  string
	Cause string
}

// RegionRow is a parsed region row.
type RegionRow struct {
	GCID         int
	Type         RegionType
	Before       int
	After        int
	Committed    int
	HasCommitted bool
}

// PauseSummary is a parsed pause summary line.
type PauseSummary struct {
	GCID           int
	Kind           string
	Cause          string
	HeapBefore     int64
	HeapAfter      int64
	CommittedAfter int64
	DurationMs     float64
}

// ParsePauseStart parses the groups of a pause-start line.
func ParsePauseStart(groups []string) (PauseStart, error) {
	p := fieldParser{kind: classifier.KindPauseStart, groups: groups}
	ps := PauseStart{GCID: p.int(0)}
	ps.Kind, ps.Cause = PauseKind(p.str(1))
	return ps, p.err
}

// ParseRegionRow parses the groups of a region row.
func ParseRegionRow(groups []string) (RegionRow, error) {
	p := fieldParser{kind: classifier.KindRegionRow, groups: groups}
	row := RegionRow{
		GCID:   p.int(0),
		Type:   RegionType(p.str(1)),
		Before: p.int(2),
		After:  p.int(3),
	}
	if c := p.str(4); c != "" {
		row.Committed = p.int(4)
		row.HasCommitted = true
	} else {
		row.Committed = row.After
	}
	if p.err != nil {
		return RegionRow{}, p.err
	}
	if row.After > row.Committed {
		return RegionRow{}, fmt.Errorf("%w: GC(%d) %s regions after %d exceeds committed %d",
			ErrMalformedEvent, row.GCID, row.Type, row.After, row.Committed)
	}
	return row, nil
}

// ParsePauseSummary parses the groups of a pause summary line.
func ParsePauseSummary(groups []string) (PauseSummary, error) {
	p := fieldParser{kind: classifier.KindPauseSummary, groups: groups}
	s := PauseSummary{
		GCID:           p.int(0),
		HeapBefore:     p.size(2),
		HeapAfter:      p.size(3),
		CommittedAfter: p.size(4),
		DurationMs:     p.float(5),
	}
	s.Kind, s.Cause = PauseKind(p.str(1))
	if p.err != nil {
		return PauseSummary{}, p.err
	}
	if s.HeapAfter > s.CommittedAfter {
		return PauseSummary{}, fmt.Errorf("%w: GC(%d) heap after %d exceeds committed %d",
			ErrMalformedEvent, s.GCID, s.HeapAfter, s.CommittedAfter)
	}
	return s, nil
}

// youngSubtypes are the parenthesized qualifiers of a young pause that are
// not causes.
var youngSubtypes = map[string]string{
	"Normal":           "young",
	"Mixed":            "mixed",
	"Prepare Mixed":    "young",
	"Concurrent Start": "concurrent-start",
	"Initial Mark":     "concurrent-start",
	"Concurrent End":   "young",
}

// PauseKind splits a pause description such as
// "Young (Normal) (G1 Evacuation Pause)" into a pause kind and cause.
func PauseKind(desc string) (kind, cause string) {
	name, groups := splitParens(desc)

	switch strings.ToLower(name) {
	case "young":
		kind = "young"
		if len(groups) > 0 {
			if k, ok := youngSubtypes[groups[0]]; ok {
				kind = k
				groups = groups[1:]
			}
		}
	case "mixed":
		kind = "mixed"
	case "full":
		kind = "full"
	case "remark":
		kind = "remark"
	case "cleanup":
		kind = "cleanup"
	case "initial mark":
		kind = "concurrent-start"
	default:
		kind = "other"
	}

	if len(groups) > 0 {
		cause = groups[len(groups)-1]
	}
	return kind, cause
}

// splitParens returns the text before the first parenthesis and the
// top-level parenthesized groups.
func splitParens(s string) (string, []string) {
	var groups []string
	depth, start := 0, -1
	head := s

	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				if start == -1 && len(groups) == 0 {
					head = s[:i]
				}
				start = i + 1
			}
			depth++
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				groups = append(groups, strings.TrimSpace(s[start:i]))
				start = -1
			}
		}
	}
	return strings.TrimSpace(head), groups
}

// fieldParser converts capture groups, remembering the first failure.
type fieldParser struct {
	kind   classifier.Kind
	groups []string
	err    error
}

func (p *fieldParser) str(i int) string {
	if i >= len(p.groups) {
		return ""
	}
	return p.groups[i]
}

func (p *fieldParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s field %d %q: %v", ErrMalformedEvent, p.kind, i, p.str(i), err)
	}
}

func (p *fieldParser) int64(i int) int64 {
	n, err := strconv.ParseInt(p.str(i), 10, 64)
	if err != nil {
		p.fail(i, err)
		return 0
	}
	return n
}

func (p *fieldParser) int(i int) int {
	n, err := strconv.ParseInt(p.str(i), 10, 32)
	if err != nil {
		p.fail(i, err)
		return 0
	}
	return int(n)
}

// float accepts a decimal comma, as printed under some JVM locales.
func (p *fieldParser) float(i int) float64 {
	f, err := strconv.ParseFloat(strings.Replace(p.str(i), ",", ".", 1), 64)
	if err != nil {
		p.fail(i, err)
		return 0
	}
	return f
}

func (p *fieldParser) size(i int) int64 {
	n, err := ParseSize(p.str(i))
	if err != nil {
		p.fail(i, err)
		return 0
	}
	return n
}

func (p *fieldParser) mib(i int) int64 {
	n, err := mebibytes(p.str(i))
	if err != nil {
		p.fail(i, err)
		return 0
	}
	return n
}

// GCID returns the GC id carried in the first group of a pause or region
// line, or -1 when it cannot be read.
func GCID(groups []string) int {
	if len(groups) == 0 {
		return -1
	}
	n, err := strconv.ParseInt(groups[0], 10, 32)
	if err != nil || n < 0 {
		return -1
	}
	return int(n)
}
