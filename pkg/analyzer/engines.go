package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ccollicutt/gclog/pkg/classifier"
	"github.com/ccollicutt/gclog/pkg/events"
)

var (
	_ EventEngine = (*RegionEngine)(nil)
	_ EventEngine = (*SizingEngine)(nil)
)

// RegionEngine builds region transitions from pause blocks.
type RegionEngine struct {
	blocks *events.RegionBlocks
}

// NewRegionEngine creates a region engine reporting blocks to sink.
func NewRegionEngine(sink events.BlockSink) *RegionEngine {
	return &RegionEngine{blocks: events.NewRegionBlocks(sink)}
}

// Family returns the region family.
func (e *RegionEngine) Family() classifier.Family {
	return classifier.FamilyRegion
}

// SetRegionSize sets bytes per region for later transitions.
func (e *RegionEngine) SetRegionSize(n int64) {
	e.blocks.SetRegionSize(n)
}

// RegionSize returns bytes per region, zero when unknown.
func (e *RegionEngine) RegionSize() int64 {
	return e.blocks.RegionSize()
}

// Process handles a pause header, region row or pause summary. Malformed
// lines drop the block they belong to through the sink.
func (e *RegionEngine) Process(_ context.Context, line *ClassifiedLine) error {
	groups := line.Match.Groups
	ts, num := line.Timestamp, line.Raw.LineNum

	switch line.Match.Kind {
	case classifier.KindPauseStart:
		h, err := events.ParsePauseStart(groups)
		if err != nil {
			e.blocks.Fail(events.GCID(groups), num, err)
			return nil
		}
		e.blocks.Header(h, ts, num)

	case classifier.KindRegionRow:
		row, err := events.ParseRegionRow(groups)
		if err != nil {
			e.blocks.Fail(events.GCID(groups), num, err)
			return nil
		}
		e.blocks.Row(row, ts, num)

	case classifier.KindPauseSummary:
		s, err := events.ParsePauseSummary(groups)
		if err != nil {
			e.blocks.Fail(events.GCID(groups), num, err)
			return nil
		}
		e.blocks.Summary(s, ts, num)

	default:
		return fmt.Errorf("region engine: unexpected kind %s", line.Match.Kind)
	}
	return nil
}

// Finalize discards a block still open at end of input.
func (e *RegionEngine) Finalize(_ context.Context) error {
	e.blocks.Flush()
	return nil
}

// SizingEngine builds sizing entries and correlates evaluations with
// uncommits.
type SizingEngine struct {
	corr       *Correlator
	entries    []events.SizingEntry
	regionSize func() int64
	logger     *slog.Logger

	// lastUncommit indexes the uncommit added since the latest evaluation,
	// -1 when there is none. lastUncommitKind is the line kind it came from.
	lastUncommit     int
	lastUncommitKind classifier.Kind
}

// NewSizingEngine creates a sizing engine. regionSize reports the current
// bytes per region and may return zero.
func NewSizingEngine(maxPending int, regionSize func() int64, logger *slog.Logger) *SizingEngine {
	if regionSize == nil {
		regionSize = func() int64 { return 0 }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SizingEngine{
		corr:       NewCorrelator(maxPending),
		regionSize:   regionSize,
		logger:       logger,
		lastUncommit: -1,
	}
}

// Family returns the sizing family.
func (e *SizingEngine) Family() classifier.Family {
	return classifier.FamilySizing
}

// Process handles one sizing line.
func (e *SizingEngine) Process(_ context.Context, line *ClassifiedLine) error {
	entry, err := events.BuildSizing(line.Match.Kind, line.Match.Groups, line.Timestamp)
	if err != nil {
		return err
	}
	entry.LineNum = line.Raw.LineNum

	switch line.Match.Kind {
	case classifier.KindEvaluationSummary:
		// The summary restates the newest evaluation; it only fills in the
		// shrink size when that evaluation did not carry one.
		if eval := e.newestPending(entry.Timestamp); eval != nil {
			if eval.MemoryDelta == 0 {
				eval.MemoryDelta = entry.MemoryDelta
				setExtra(eval, "shrink_mb", entry.Extra["shrink_mb"])
			}
			return nil
		}

	case classifier.KindRequest:
		if eval := e.newestPending(entry.Timestamp); eval != nil {
			if eval.MemoryDelta == 0 {
				eval.MemoryDelta = entry.MemoryDelta
			}
			if eval.RegionDelta == 0 {
				eval.RegionDelta = entry.RegionDelta
			}
			setExtra(eval, "requested_mb", entry.Extra["requested_mb"])
		} else {
			// A request with nothing pending opens its own evaluation so the
			// deactivation that follows still correlates.
			e.add(requestEvaluation(entry), line.Match.Kind)
		}

	case classifier.KindShrinkDetails, classifier.KindTimeBasedUncommitted:
		if prev := e.releasedBy(line.Match.Kind, entry.RegionDelta); prev != nil {
			if prev.RegionDelta == 0 {
				prev.RegionDelta = entry.RegionDelta
			}
			if entry.MemoryDelta != 0 {
				prev.MemoryDelta = entry.MemoryDelta
			}
			setExtra(prev, "heap_size_mb", entry.Extra["heap_size_mb"])
			return nil
		}
	}

	e.add(entry, line.Match.Kind)
	return nil
}

// releasedBy returns the uncommit a details line restates: one added since
// the latest evaluation from a different line kind, releasing the same
// number of regions. It returns nil when the line reports a new release.
func (e *SizingEngine) releasedBy(kind classifier.Kind, regionDelta int) *events.SizingEntry {
	if e.lastUncommit < 0 || e.lastUncommitKind == kind {
		return nil
	}
	prev := &e.entries[e.lastUncommit]
	if prev.RegionDelta != 0 && regionDelta != 0 && prev.RegionDelta != regionDelta {
		return nil
	}
	return prev
}

// requestEvaluation builds the uncommit evaluation implied by a shrink
// request.
func requestEvaluation(req events.SizingEntry) events.SizingEntry {
	eval := events.SizingEntry{
		Timestamp:   req.Timestamp,
		Kind:        events.SizingEvaluation,
		Decision:    events.DecisionUncommit,
		MemoryDelta: req.MemoryDelta,
		RegionDelta: req.RegionDelta,
		LineNum:     req.LineNum,
	}
	setExtra(&eval, "requested_mb", req.Extra["requested_mb"])
	setExtra(&eval, "candidates", req.Extra["candidates"])
	return eval
}

// Finalize logs evaluations left without an uncommit.
func (e *SizingEngine) Finalize(_ context.Context) error {
	if n := e.corr.Pending(); n > 0 {
		e.logger.Debug("evaluations without uncommit", "pending", n)
	}
	if n := e.corr.Evicted(); n > 0 {
		e.logger.Debug("pending evaluations evicted", "evicted", n)
	}
	return nil
}

// Entries returns the entries in input order.
func (e *SizingEngine) Entries() []events.SizingEntry {
	return e.entries
}

// Correlations returns the number of correlated pairs.
func (e *SizingEngine) Correlations() int {
	return e.corr.Pairs()
}

func (e *SizingEngine) add(entry events.SizingEntry, kind classifier.Kind) {
	idx := len(e.entries)

	switch entry.Kind {
	case events.SizingEvaluation:
		e.lastUncommit = -1
		if entry.Decision == events.DecisionUncommit {
			e.corr.Push(idx, entry.Timestamp)
		}

	case events.SizingUncommit:
		if evalIdx, key, ok := e.corr.Pop(entry.Timestamp); ok {
			entry.CorrelationKey = key
			e.entries[evalIdx].CorrelationKey = key
			if entry.MemoryDelta == 0 {
				entry.MemoryDelta = e.entries[evalIdx].MemoryDelta
			}
		}
		if entry.MemoryDelta == 0 && entry.RegionDelta < 0 {
			entry.MemoryDelta = int64(entry.RegionDelta) * e.regionSize()
		}
		e.lastUncommit, e.lastUncommitKind = idx, kind
	}

	e.entries = append(e.entries, entry)
}

// newestPending returns the newest pending evaluation not later than ts.
func (e *SizingEngine) newestPending(ts float64) *events.SizingEntry {
	idx, ok := e.corr.Newest()
	if !ok || e.entries[idx].Timestamp > ts {
		return nil
	}
	return &e.entries[idx]
}

func setExtra(entry *events.SizingEntry, key string, value any) {
	if value == nil {
		return
	}
	if entry.Extra == nil {
		entry.Extra = make(map[string]any)
	}
	entry.Extra[key] = value
}
