package analyzer

import (
	"github.com/ccollicutt/gclog/pkg/events"
)

// Mode is the document-level sizing classification.
type Mode struct {
	HasSizingData  bool
	IsUncommitOnly bool
}

// DetectMode classifies a sizing entry stream. A log is uncommit-only when
// it has sizing data, never grows the heap through time-based sizing, does
// not declare another policy, and either declares uncommit-only or shows at
// least one correlated evaluation and uncommit. Anything less is false.
func DetectMode(entries []events.SizingEntry) Mode {
	m := Mode{HasSizingData: len(entries) > 0}
	if !m.HasSizingData {
		return m
	}

	declared := false
	correlated := false

	for i := range entries {
		e := &entries[i]
		switch e.Kind {
		case events.SizingExpand:
			return m
		case events.SizingInit, events.SizingParameter:
			switch e.Mode {
			case "":
			case events.ModeUncommitOnly:
				declared = true
			case "enabled":
				// enabled without a policy qualifier says nothing either way
			default:
				return m
			}
		}
		if e.CorrelationKey > 0 {
			correlated = true
		}
	}

	m.IsUncommitOnly = declared || correlated
	return m
}
