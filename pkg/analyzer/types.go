// Package analyzer runs the single-pass GC log engine: format detection,
// classification, event building, correlation and mode detection.
package analyzer

import (
	"github.com/ccollicutt/gclog/pkg/classifier"
	"github.com/ccollicutt/gclog/pkg/detector"
	"github.com/ccollicutt/gclog/pkg/parser"
)

// ClassifiedLine is a log line after grammar split, timestamp normalization
// and classification.
type ClassifiedLine struct {
	// Raw is the line as read.
	Raw parser.RawLine

	// Decorated holds the unified-logging decorations and message.
	Decorated detector.Decorated

	// Timestamp is in elapsed seconds.
	Timestamp float64

	// Match is the classifier result.
	Match classifier.Match
}
