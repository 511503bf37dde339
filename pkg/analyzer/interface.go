package analyzer

import (
	"context"

	"github.com/ccollicutt/gclog/pkg/classifier"
)

// EventEngine turns classified lines of one family into events.
// The region and sizing builders each implement this interface.
type EventEngine interface {
	// Family returns the classifier family the engine consumes.
	Family() classifier.Family

	// Process handles a single classified line, updating internal state.
	// A returned error drops that line only.
	Process(ctx context.Context, line *ClassifiedLine) error

	// Finalize completes the pass. Called after all lines have been processed.
	Finalize(ctx context.Context) error
}
