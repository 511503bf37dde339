// Package metrics records parse statistics as Prometheus metrics that can be
// written to a node_exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccollicutt/gclog/pkg/events"
)

// Recorder accumulates per-document parse statistics. Each Recorder owns its
// registry so several can coexist in one process. Safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	documents    *prometheus.CounterVec
	lines        *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	events       *prometheus.CounterVec
	malformed    prometheus.Counter
	correlations prometheus.Counter
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gclog",
			Name:      "documents_total",
			Help:      "GC logs parsed, by detected format.",
		}, []string{"format"}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gclog",
			Name:      "lines_total",
			Help:      "Non-blank lines read, by outcome.",
		}, []string{"outcome"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gclog",
			Name:      "skipped_lines_total",
			Help:      "Skipped lines, by category.",
		}, []string{"category"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gclog",
			Name:      "events_total",
			Help:      "Events produced, by kind.",
		}, []string{"kind"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gclog",
			Name:      "malformed_events_total",
			Help:      "Logical events dropped as malformed.",
		}),
		correlations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gclog",
			Name:      "correlations_total",
			Help:      "Evaluation and uncommit pairs correlated.",
		}),
	}

	r.registry.MustRegister(r.documents, r.lines, r.skipped, r.events, r.malformed, r.correlations)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveDocument adds the statistics of a parsed document.
func (r *Recorder) ObserveDocument(doc *events.Document) {
	md := doc.Metadata

	r.documents.WithLabelValues(string(md.Format)).Inc()
	r.lines.WithLabelValues("total").Add(float64(md.TotalLines))
	r.lines.WithLabelValues("skipped").Add(float64(md.SkippedLines))
	r.lines.WithLabelValues("ignored").Add(float64(md.IgnoredLines))

	for category, n := range md.SkippedByCategory {
		r.skipped.WithLabelValues(category).Add(float64(n))
	}

	if n := len(doc.RegionTransitions); n > 0 {
		r.events.WithLabelValues("region-transition").Add(float64(n))
	}
	for i := range doc.SizingEntries {
		r.events.WithLabelValues(string(doc.SizingEntries[i].Kind)).Inc()
	}

	r.malformed.Add(float64(md.MalformedEvents))
	r.correlations.Add(float64(md.Correlations))
}

// WriteTextfile writes the current values in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
