// Package events defines the normalized GC events and the builders that
// produce them from classified lines.
package events

import (
	"time"

	"github.com/ccollicutt/gclog/pkg/detector"
)

// RegionType names a G1 region class.
type RegionType string

const (
	RegionEden      RegionType = "Eden"
	RegionSurvivor  RegionType = "Survivor"
	RegionOld       RegionType = "Old"
	RegionHumongous RegionType = "Humongous"
	RegionArchive   RegionType = "Archive"
)

// RegionTypes lists region classes in export order.
var RegionTypes = []RegionType{RegionEden, RegionSurvivor, RegionOld, RegionHumongous, RegionArchive}

// RegionOccupancy is the before/after/committed state of one region class
// across a pause.
type RegionOccupancy struct {
	RegionsBefore    int
	RegionsAfter     int
	RegionsCommitted int

	// Byte values are zero when the region size is unknown.
	BytesBefore    int64
	BytesAfter     int64
	BytesCommitted int64
}

// RegionTransition is the heap region change caused by one GC pause.
type RegionTransition struct {
	GCID      int
	Timestamp float64

	// Kind is the pause kind: young, mixed, full, remark, cleanup,
	// concurrent-start or other.
	Kind  string
	Cause string

	Regions map[RegionType]RegionOccupancy

	HeapBefore      int64
	HeapAfter       int64
	CommittedBefore int64
	CommittedAfter  int64
	DurationMs      float64

	// LineNum is the first source line of the block; Lines is the number of
	// source lines that contributed to it.
	LineNum int
	Lines   int
}

// SizingKind classifies a time-based sizing entry. The set is open: kinds
// not listed below are carried through with their fields in Extra.
type SizingKind string

const (
	SizingInit            SizingKind = "init"
	SizingParameter       SizingKind = "parameter"
	SizingEvaluation      SizingKind = "evaluation"
	SizingUncommit        SizingKind = "uncommit"
	SizingShrinkCompleted SizingKind = "shrink-completed"
	SizingExpand          SizingKind = "expand"

	// Detail kinds.
	SizingEvaluationStart  SizingKind = "evaluation-start"
	SizingScan             SizingKind = "scan"
	SizingScanResult       SizingKind = "scan-result"
	SizingRequest          SizingKind = "request"
	SizingProcessing       SizingKind = "processing"
	SizingCandidate        SizingKind = "candidate"
	SizingRegionDeactivate SizingKind = "region-deactivate"
	SizingRegionState      SizingKind = "region-state"
)

// Known reports whether k is one of the primary sizing kinds.
func (k SizingKind) Known() bool {
	switch k {
	case SizingInit, SizingParameter, SizingEvaluation, SizingUncommit, SizingShrinkCompleted, SizingExpand:
		return true
	}
	return false
}

// Evaluation decisions.
const (
	DecisionUncommit   = "uncommit"
	DecisionNoUncommit = "no-uncommit"
)

// Sizing policy modes as declared by init and parameter lines.
const (
	ModeUncommitOnly = "uncommit-only"
	ModeDisabled     = "disabled"
)

// SizingEntry is one time-based heap sizing event.
type SizingEntry struct {
	Timestamp   float64
	Kind        SizingKind
	MemoryDelta int64 // bytes, negative for uncommits
	RegionDelta int
	Decision    string

	// CorrelationKey links an evaluation to the uncommit it caused. Zero
	// means uncorrelated.
	CorrelationKey int

	Mode    string
	Extra   map[string]any
	LineNum int
}

// Skip categories.
const (
	SkipOversize      = "oversize"
	SkipUnknownFormat = "unknown-format"
	SkipGrammar       = "grammar"
	SkipTimestamp     = "timestamp"
	SkipUnrecognized  = "unrecognized"
	SkipMalformed     = "malformed"
	SkipTruncated     = "truncated"
)

// Diagnostic describes one skipped line.
type Diagnostic struct {
	LineNum  int
	Offset   int64
	Category string
	Reason   string
	Text     string
}

// Metadata describes a parsed document.
type Metadata struct {
	Format          detector.Format
	StartTime       time.Time // zero unless the format carries wall-clock time
	RegionSizeBytes int64

	HasSizingData  bool
	IsUncommitOnly bool

	TotalLines      int
	SkippedLines    int
	IgnoredLines    int
	MalformedEvents int
	Correlations    int

	SkippedByCategory map[string]int
	Diagnostics       []Diagnostic
}

// Document is the result of parsing one GC log.
type Document struct {
	RegionTransitions []RegionTransition
	SizingEntries     []SizingEntry
	Metadata          Metadata
}

// ContributingLines returns the number of source lines that produced events.
func (d *Document) ContributingLines() int {
	n := 0
	for i := range d.RegionTransitions {
		n += d.RegionTransitions[i].Lines
	}
	seen := make(map[int]bool, len(d.SizingEntries))
	for i := range d.SizingEntries {
		if ln := d.SizingEntries[i].LineNum; !seen[ln] {
			seen[ln] = true
			n++
		}
	}
	return n
}
