package events

import (
	"fmt"
	"math"
)

// BlockSink receives the outcome of pause blocks.
type BlockSink interface {
	// Transition is called for every completed block.
	Transition(RegionTransition)

	// Discard is called with the source lines of a block that was dropped.
	Discard(lines []int, err error)
}

// block is an open pause block.
type block struct {
	gcID  int
	ts    float64
	kind  string
	cause string
	rows  map[RegionType]RegionRow
	lines []int
}

// RegionBlocks assembles multi-line pause blocks into region transitions.
// G1 pauses do not overlap, so at most one block is open at a time.
type RegionBlocks struct {
	sink       BlockSink
	regionSize int64

	open          *block
	lastCommitted int64
}

// NewRegionBlocks creates an accumulator reporting to sink.
func NewRegionBlocks(sink BlockSink) *RegionBlocks {
	return &RegionBlocks{sink: sink}
}

// SetRegionSize sets the bytes per region used for byte conversions.
func (b *RegionBlocks) SetRegionSize(n int64) {
	b.regionSize = n
}

// RegionSize returns the bytes per region, zero when unknown.
func (b *RegionBlocks) RegionSize() int64 {
	return b.regionSize
}

// Open reports whether a block is pending.
func (b *RegionBlocks) Open() bool {
	return b.open != nil
}

// Header handles a pause-start line.
func (b *RegionBlocks) Header(h PauseStart, ts float64, lineNum int) {
	if b.open != nil && b.open.gcID == h.GCID {
		b.open.lines = append(b.open.lines, lineNum)
		if b.open.kind == "" {
			b.open.kind, b.open.cause = h.Kind, h.Cause
		}
		return
	}

	b.closeOpen()
	b.open = &block{
		gcID:  h.GCID,
		ts:    ts,
		kind:  h.Kind,
		cause: h.Cause,
		lines: []int{lineNum},
	}
}

// Row handles a region row. A row for a GC id without an open block opens one.
func (b *RegionBlocks) Row(row RegionRow, ts float64, lineNum int) {
	if b.open == nil || b.open.gcID != row.GCID {
		b.closeOpen()
		b.open = &block{gcID: row.GCID, ts: ts}
	}

	blk := b.open
	if blk.rows == nil {
		blk.rows = make(map[RegionType]RegionRow, len(RegionTypes))
	}
	blk.lines = append(blk.lines, lineNum)

	if _, dup := blk.rows[row.Type]; dup {
		b.discard(fmt.Errorf("%w: GC(%d) duplicate %s regions row", ErrMalformedEvent, row.GCID, row.Type))
		return
	}
	blk.rows[row.Type] = row
}

// Summary handles a pause summary line and completes the matching block.
// A summary without a matching block yields a transition without rows.
func (b *RegionBlocks) Summary(s PauseSummary, ts float64, lineNum int) {
	if b.open == nil || b.open.gcID != s.GCID {
		b.closeOpen()
		b.open = &block{gcID: s.GCID, ts: ts}
	}

	blk := b.open
	blk.lines = append(blk.lines, lineNum)
	if blk.kind == "" || blk.kind == "other" {
		blk.kind, blk.cause = s.Kind, s.Cause
	}

	t, err := b.build(blk, &s)
	if err != nil {
		b.discard(err)
		return
	}
	b.open = nil
	b.emit(t)
}

// Fail drops the block for gcID, if open, together with the failing line.
// A negative gcID drops only the line.
func (b *RegionBlocks) Fail(gcID int, lineNum int, err error) {
	if gcID >= 0 && b.open != nil && b.open.gcID == gcID {
		b.open.lines = append(b.open.lines, lineNum)
		b.discard(err)
		return
	}
	b.sink.Discard([]int{lineNum}, err)
}

// Flush discards a block left open at end of input.
func (b *RegionBlocks) Flush() {
	if b.open == nil {
		return
	}
	b.discard(fmt.Errorf("%w: GC(%d) truncated at end of log", ErrTruncatedBlock, b.open.gcID))
}

// closeOpen completes the open block when it has rows and drops it otherwise.
func (b *RegionBlocks) closeOpen() {
	blk := b.open
	if blk == nil {
		return
	}
	if len(blk.rows) == 0 {
		b.discard(fmt.Errorf("%w: GC(%d) has no region rows", ErrTruncatedBlock, blk.gcID))
		return
	}

	t, err := b.build(blk, nil)
	if err != nil {
		b.discard(err)
		return
	}
	b.open = nil
	b.emit(t)
}

func (b *RegionBlocks) discard(err error) {
	lines := b.open.lines
	b.open = nil
	b.sink.Discard(lines, err)
}

func (b *RegionBlocks) emit(t RegionTransition) {
	if t.CommittedAfter > 0 {
		b.lastCommitted = t.CommittedAfter
	}
	b.sink.Transition(t)
}

// build turns a block into a transition. s may be nil for blocks closed
// without a summary line.
func (b *RegionBlocks) build(blk *block, s *PauseSummary) (RegionTransition, error) {
	t := RegionTransition{
		GCID:      blk.gcID,
		Timestamp: blk.ts,
		Kind:      blk.kind,
		Cause:     blk.cause,
		LineNum:   blk.lines[0],
		Lines:     len(blk.lines),
	}
	if t.Kind == "" {
		t.Kind = "other"
	}

	if len(blk.rows) > 0 {
		t.Regions = make(map[RegionType]RegionOccupancy, len(blk.rows))
	}
	var sumBefore, sumAfter, sumCommitted int64
	for rt, row := range blk.rows {
		occ := RegionOccupancy{
			RegionsBefore:    row.Before,
			RegionsAfter:     row.After,
			RegionsCommitted: row.Committed,
		}
		var err error
		if occ.BytesBefore, err = b.bytes(row.Before); err != nil {
			return RegionTransition{}, err
		}
		if occ.BytesAfter, err = b.bytes(row.After); err != nil {
			return RegionTransition{}, err
		}
		if occ.BytesCommitted, err = b.bytes(row.Committed); err != nil {
			return RegionTransition{}, err
		}
		sumBefore += occ.BytesBefore
		sumAfter += occ.BytesAfter
		sumCommitted += occ.BytesCommitted
		t.Regions[rt] = occ
	}

	if s != nil {
		t.HeapBefore = s.HeapBefore
		t.HeapAfter = s.HeapAfter
		t.CommittedAfter = s.CommittedAfter
		t.DurationMs = s.DurationMs
	} else {
		t.HeapBefore = sumBefore
		t.HeapAfter = sumAfter
		t.CommittedAfter = sumCommitted
	}

	t.CommittedBefore = b.lastCommitted
	if t.CommittedBefore == 0 {
		t.CommittedBefore = t.CommittedAfter
	}

	if t.DurationMs < 0 {
		return RegionTransition{}, fmt.Errorf("%w: GC(%d) negative duration", ErrMalformedEvent, t.GCID)
	}
	if t.CommittedAfter > 0 && t.HeapAfter > t.CommittedAfter {
		return RegionTransition{}, fmt.Errorf("%w: GC(%d) heap after exceeds committed", ErrMalformedEvent, t.GCID)
	}
	return t, nil
}

func (b *RegionBlocks) bytes(regions int) (int64, error) {
	if b.regionSize == 0 || regions == 0 {
		return 0, nil
	}
	if int64(regions) > math.MaxInt64/b.regionSize {
		return 0, fmt.Errorf("%w: %d regions overflow byte size", ErrMalformedEvent, regions)
	}
	return int64(regions) * b.regionSize, nil
}
