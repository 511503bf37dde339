// Package classifier maps the message part of a GC log line to an event kind.
package classifier

import (
	"regexp"
	"strings"
)

// Kind identifies the shape of a classified line.
type Kind string

const (
	KindNone Kind = ""

	// Region and pause shapes.
	KindRegionSize   Kind = "region-size"
	KindPauseSummary Kind = "pause-summary"
	KindPauseStart   Kind = "pause-start"
	KindRegionRow    Kind = "region-row"

	// Sizing configuration.
	KindSizingStatus        Kind = "sizing-status"
	KindSizingInit          Kind = "sizing-init"
	KindSizingParams        Kind = "sizing-params"
	KindSizingParamsSeconds Kind = "sizing-params-seconds"

	// Evaluations.
	KindEvaluationStart             Kind = "evaluation-start"
	KindScan                        Kind = "scan"
	KindScanResult                  Kind = "scan-result"
	KindShrinkEvaluation            Kind = "shrink-evaluation"
	KindLegacyNoUncommit            Kind = "legacy-no-uncommit"
	KindEvaluationFound             Kind = "evaluation-found"
	KindEvaluationFoundMin          Kind = "evaluation-found-min"
	KindEvaluationFoundUncommitting Kind = "evaluation-found-uncommitting"
	KindHeapEvaluationShrink        Kind = "heap-evaluation-shrink"
	KindHeapEvaluationNoAction      Kind = "heap-evaluation-no-action"
	KindEvaluationSummary           Kind = "evaluation-summary"
	KindEvaluationNoAction          Kind = "evaluation-no-action"
	KindEvaluationNoActionSimple    Kind = "evaluation-no-action-simple"

	// Uncommit operations and shrink results.
	KindLegacyUncommit       Kind = "legacy-uncommit"
	KindShrinkDetails        Kind = "shrink-details"
	KindTimeBasedUncommitted Kind = "time-based-uncommitted"
	KindDeactivated          Kind = "deactivated"
	KindShrinkCompleted      Kind = "shrink-completed"

	// Time-based shrink details.
	KindRequest            Kind = "request"
	KindProcessing         Kind = "processing"
	KindCandidate          Kind = "candidate"
	KindDeactivatingRegion Kind = "deactivating-region"
	KindRegionState        Kind = "region-state"

	// Commit increase.
	KindExpand Kind = "expand"
)

// Family groups kinds by the builder that consumes them.
type Family string

const (
	FamilyNone   Family = ""
	FamilyMeta   Family = "meta"
	FamilyRegion Family = "region"
	FamilySizing Family = "sizing"
)

// Family returns the family a kind belongs to.
func (k Kind) Family() Family {
	switch k {
	case KindNone:
		return FamilyNone
	case KindRegionSize:
		return FamilyMeta
	case KindPauseSummary, KindPauseStart, KindRegionRow:
		return FamilyRegion
	default:
		return FamilySizing
	}
}

// Rule is one line shape. A rule matches when every marker is present and the
// pattern matches.
type Rule struct {
	Kind       Kind
	Markers    []string       // Required substrings, checked before the pattern
	Pattern    *regexp.Regexp // Compiled regex (set during init)
	PatternStr string
}

const (
	num  = `(\d+)`
	size = `(\d+(?:\.\d+)?[BKMG])`
)

// DefaultRules returns the built-in rule table. Order matters: sizing shapes
// come before the generic pause shapes, and within a marker group the more
// detailed wording comes first.
func DefaultRules() []*Rule {
	rules := []*Rule{
		{
			Kind:       KindRegionSize,
			Markers:    []string{"egion ", "ize:"},
			PatternStr: `(?i)Heap Region Size: (\d+(?:\.\d+)?[BKMG]?)\b`,
		},
		{
			Kind:       KindSizingStatus,
			Markers:    []string{"Time-Based Heap Sizing"},
			PatternStr: `G1 Time-Based Heap Sizing (enabled|disabled)(?: \(([^)]+)\))?`,
		},
		{
			Kind:       KindSizingInit,
			Markers:    []string{"Heap sizing initialized"},
			PatternStr: `Heap sizing initialized \(mode: ([^)]+)\)`,
		},
		{
			Kind:       KindSizingParams,
			Markers:    []string{"Heap sizing parameters:"},
			PatternStr: `Heap sizing parameters: evaluation_interval_ms=` + num + `, uncommit_delay_ms=` + num,
		},
		{
			Kind:       KindSizingParamsSeconds,
			Markers:    []string{"Evaluation Interval:", "Uncommit Delay:"},
			PatternStr: `Evaluation Interval: ` + num + `s, Uncommit Delay: ` + num + `s, Min Regions To Uncommit: ` + num,
		},
		{
			Kind:       KindLegacyUncommit,
			Markers:    []string{"Time-based uncommit:"},
			PatternStr: `Time-based uncommit: ` + num + ` regions \((\d+(?:\.\d+)?)MB\) uncommitted \(inactive: ` + num + `, total: ` + num + ` regions\)`,
		},
		{
			Kind:       KindShrinkEvaluation,
			Markers:    []string{"Time-based evaluation: shrink by"},
			PatternStr: `Time-based evaluation: shrink by ` + num + `MB`,
		},
		{
			Kind:       KindLegacyNoUncommit,
			Markers:    []string{"Time-based evaluation: no uncommit needed"},
			PatternStr: `Time-based evaluation: no uncommit needed`,
		},
		{
			Kind:       KindShrinkCompleted,
			Markers:    []string{"Heap shrink completed"},
			PatternStr: `Heap shrink completed.*heap: ` + num + `M`,
		},
		{
			Kind:       KindShrinkDetails,
			Markers:    []string{"Heap shrink details:"},
			PatternStr: `Heap shrink details: uncommitted ` + num + ` regions \(` + num + `MB\), heap size now ` + num + `MB`,
		},
		{
			Kind:       KindTimeBasedUncommitted,
			Markers:    []string{"Time-based shrink: uncommitted"},
			PatternStr: `Time-based shrink: uncommitted ` + num + ` oldest regions \(` + num + `MB\), heap size now ` + num + `MB`,
		},
		{
			Kind:       KindEvaluationStart,
			Markers:    []string{"Starting ", " evaluation"},
			PatternStr: `Starting (?:uncommit|heap) evaluation`,
		},
		{
			Kind:       KindScan,
			Markers:    []string{"Full region scan: counting"},
			PatternStr: `Full region scan: counting uncommit candidates`,
		},
		{
			Kind:       KindScanResult,
			Markers:    []string{"Full region scan: found"},
			PatternStr: `Full region scan: found ` + num + ` inactive regions out of ` + num + ` total regions`,
		},
		{
			Kind:       KindEvaluationFound,
			Markers:    []string{"Time-based uncommit evaluation: found"},
			PatternStr: `Time-based uncommit evaluation: found ` + num + ` inactive regions \(requested ` + num + `\)`,
		},
		{
			Kind:       KindEvaluationFoundUncommitting,
			Markers:    []string{"Uncommit evaluation: found", "uncommitting"},
			PatternStr: `Uncommit evaluation: found ` + num + ` inactive regions, uncommitting ` + num + ` regions \(` + num + `MB\)`,
		},
		{
			Kind:       KindEvaluationFoundMin,
			Markers:    []string{"Uncommit evaluation: found", "min required"},
			PatternStr: `Uncommit evaluation: found ` + num + ` inactive candidates \(min required: ` + num + `\)`,
		},
		{
			Kind:       KindHeapEvaluationShrink,
			Markers:    []string{"Time-based heap evaluation: shrinking heap by"},
			PatternStr: `Time-based heap evaluation: shrinking heap by ` + num + `MB \(inactive=` + num + ` min_required=` + num + ` heap=` + num + `B min=` + num + `B\)`,
		},
		{
			Kind:       KindHeapEvaluationNoAction,
			Markers:    []string{"Time-based heap evaluation: no uncommit needed"},
			PatternStr: `Time-based heap evaluation: no uncommit needed \(inactive=` + num + ` min_required=` + num + ` heap=` + num + `B min=` + num + `B\)`,
		},
		{
			Kind:       KindEvaluationSummary,
			Markers:    []string{"Uncommit evaluation: shrinking heap by"},
			PatternStr: `Uncommit evaluation: shrinking heap by ` + num + `MB using time-based selection`,
		},
		{
			Kind:       KindEvaluationNoAction,
			Markers:    []string{"Uncommit evaluation: no heap uncommit needed", "inactive="},
			PatternStr: `Uncommit evaluation: no heap uncommit needed \(inactive=` + num + ` min_required=` + num + ` heap=` + num + `B min=` + num + `B\)`,
		},
		{
			Kind:       KindEvaluationNoActionSimple,
			Markers:    []string{"Uncommit evaluation: no heap uncommit needed"},
			PatternStr: `Uncommit evaluation: no heap uncommit needed \(evaluation #` + num + `\)`,
		},
		{
			Kind:       KindRequest,
			Markers:    []string{"Time-based shrink: requesting"},
			PatternStr: `Time-based shrink: requesting ` + num + `MB based on ` + num + ` time-based candidates`,
		},
		{
			Kind:       KindProcessing,
			Markers:    []string{"Time-based shrink: processing"},
			PatternStr: `Time-based shrink: processing ` + num + ` oldest regions out of ` + num + ` empty regions`,
		},
		{
			Kind:       KindDeactivated,
			Markers:    []string{"Time-based shrink: deactivated"},
			PatternStr: `Time-based shrink: deactivated ` + num + ` oldest empty regions`,
		},
		{
			Kind:       KindCandidate,
			Markers:    []string{"Time-based shrink: identified region"},
			PatternStr: `Time-based shrink: identified region ` + num + ` as candidate \(last_access=` + num + `ms ago\)`,
		},
		{
			Kind:       KindDeactivatingRegion,
			Markers:    []string{"Time-based shrink: deactivating region"},
			PatternStr: `Time-based shrink: deactivating region ` + num + ` \(last_access=` + num + `ms ago\)`,
		},
		{
			Kind:       KindRegionState,
			Markers:    []string{"Region state transition:"},
			PatternStr: `Region state transition: Region ` + num + ` transitioning from (\w+) to (\w+) after ` + num + `ms idle`,
		},
		{
			Kind:       KindExpand,
			Markers:    []string{"expansion amount"},
			PatternStr: `(?:Expand the heap\.|Heap expansion:?|Attempt heap expansion[^.]*\.?) requested expansion amount: ?` + num + `B expansion amount: ?` + num + `B`,
		},
		{
			Kind:       KindPauseSummary,
			Markers:    []string{"GC(", " Pause ", "->", "ms"},
			PatternStr: `^GC\(` + num + `\) Pause (.+?) ` + size + `->` + size + `\(` + size + `\) (\d+(?:[.,]\d+)?)ms\s*$`,
		},
		{
			Kind:       KindRegionRow,
			Markers:    []string{"GC(", " regions: "},
			PatternStr: `^GC\(` + num + `\) (Eden|Survivor|Old|Humongous|Archive) regions: ` + num + `->` + num + `(?:\(` + num + `\))?\s*$`,
		},
		{
			Kind:       KindPauseStart,
			Markers:    []string{"GC(", " Pause "},
			PatternStr: `^GC\(` + num + `\) Pause ([A-Za-z][\w ]*(?: \([^()]*(?:\([^()]*\))?[^()]*\))*)\s*$`,
		},
	}

	for _, r := range rules {
		r.Pattern = regexp.MustCompile(r.PatternStr)
	}

	return rules
}

// markersPresent reports whether every marker occurs in message.
func (r *Rule) markersPresent(message string) bool {
	for _, m := range r.Markers {
		if !strings.Contains(message, m) {
			return false
		}
	}
	return true
}
