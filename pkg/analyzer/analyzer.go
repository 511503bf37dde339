package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ccollicutt/gclog/pkg/classifier"
	"github.com/ccollicutt/gclog/pkg/detector"
	"github.com/ccollicutt/gclog/pkg/events"
	"github.com/ccollicutt/gclog/pkg/metrics"
	"github.com/ccollicutt/gclog/pkg/parser"
)

// DefaultDiagnosticsLimit bounds the skipped-line sample kept per document.
const DefaultDiagnosticsLimit = 20

// maxDiagnosticText truncates the line text kept in a diagnostic.
const maxDiagnosticText = 200

// minDetectionBuffer is the least number of raw lines detection may hold
// back while filling its lookahead; the cap is four times the lookahead
// when that is larger.
const minDetectionBuffer = 4096

// Analyzer parses GC logs into documents. An Analyzer holds only
// configuration; every Parse call builds fresh state, so one Analyzer may
// be shared across goroutines.
type Analyzer struct {
	detector   *detector.Detector
	classifier *classifier.Classifier

	maxPending   int
	maxLineBytes int
	diagLimit    int

	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option configures analyzer behavior.
type Option func(*Analyzer)

// WithLookahead sets the number of non-blank lines inspected for format
// detection.
func WithLookahead(n int) Option {
	return func(a *Analyzer) {
		a.detector = detector.New(detector.WithLookahead(n))
	}
}

// WithMaxPending bounds the evaluations awaiting an uncommit.
func WithMaxPending(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxPending = n
		}
	}
}

// WithMaxLineBytes bounds the length of a single line. Longer lines are
// skipped.
func WithMaxLineBytes(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxLineBytes = n
		}
	}
}

// WithDiagnosticsLimit sets how many skipped lines are sampled into the
// document. Zero disables the sample.
func WithDiagnosticsLimit(n int) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.diagLimit = n
		}
	}
}

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records the statistics of every parsed document.
func WithMetrics(r *metrics.Recorder) Option {
	return func(a *Analyzer) {
		a.metrics = r
	}
}

// New creates an analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		detector:     detector.New(),
		classifier:   classifier.New(),
		maxPending:   DefaultMaxPending,
		maxLineBytes: parser.DefaultMaxLineBytes,
		diagLimit:    DefaultDiagnosticsLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ParseString parses an in-memory log.
func (a *Analyzer) ParseString(log string) *events.Document {
	// A strings.Reader never fails and the context is never cancelled.
	doc, _ := a.Parse(context.Background(), strings.NewReader(log))
	return doc
}

// Parse reads r to the end and returns the document. Malformed content
// never fails the parse; the returned error reports only read failures and
// cancellation, in which case the document built so far is returned too.
func (a *Analyzer) Parse(ctx context.Context, r io.Reader) (*events.Document, error) {
	src := parser.NewLineSource(r, a.maxLineBytes)

	format := a.detect(ctx, src)
	p := newPass(a, format)
	err := p.run(ctx, src)
	doc := p.finish(ctx)

	if a.metrics != nil {
		a.metrics.ObserveDocument(doc)
	}
	if err != nil {
		return doc, fmt.Errorf("parsing log: %w", err)
	}
	return doc, nil
}

// detect reads the lookahead, decides the format and pushes the lines back.
// Read errors end the sample early; the source reports them again to the
// main pass. Blank and oversize lines do not fill the sample, so the lines
// held back are capped as well.
func (a *Analyzer) detect(ctx context.Context, src *parser.LineSource) detector.Format {
	var (
		buffered []parser.RawLine
		sample   []string
	)
	limit := max(4*a.detector.Lookahead(), minDetectionBuffer)
	for len(sample) < a.detector.Lookahead() && len(buffered) < limit {
		line, err := src.Next(ctx)
		if err != nil {
			break
		}
		buffered = append(buffered, line)
		if !line.Blank() && !line.Oversize {
			sample = append(sample, line.Text)
		}
	}
	src.Unread(buffered...)

	result := a.detector.DetectFromLines(sample)
	if result.HasMatch() {
		a.logger.Info("detected log format", "format", result.Format, "line", result.MatchLine)
	} else if len(sample) > 0 {
		a.logger.Warn("log format not recognized", "error", result.Err())
	}
	return result.Format
}

// pass is the state of one Parse call.
type pass struct {
	a       *Analyzer
	doc     *events.Document
	grammar *detector.Grammar
	norm    *parser.Normalizer

	regions *RegionEngine
	sizing  *SizingEngine
	engines map[classifier.Family]EventEngine

	current     parser.RawLine
	regionLines map[int]parser.RawLine
}

func newPass(a *Analyzer, format detector.Format) *pass {
	p := &pass{
		a: a,
		doc: &events.Document{
			RegionTransitions: []events.RegionTransition{},
			SizingEntries:     []events.SizingEntry{},
			Metadata: events.Metadata{
				Format:            format,
				SkippedByCategory: map[string]int{},
			},
		},
		grammar:     detector.GrammarFor(format),
		norm:        parser.NewNormalizer(format),
		regionLines: make(map[int]parser.RawLine),
	}
	p.regions = NewRegionEngine(p)
	p.sizing = NewSizingEngine(a.maxPending, p.regions.RegionSize, a.logger)
	p.engines = map[classifier.Family]EventEngine{
		p.regions.Family(): p.regions,
		p.sizing.Family():  p.sizing,
	}
	return p
}

func (p *pass) run(ctx context.Context, src *parser.LineSource) error {
	for {
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		p.line(ctx, line)
	}
}

// line routes one raw line. Blank lines are not counted at all.
func (p *pass) line(ctx context.Context, raw parser.RawLine) {
	if raw.Blank() {
		return
	}
	p.doc.Metadata.TotalLines++
	p.current = raw

	if raw.Oversize {
		p.skip(raw, events.SkipOversize, "line exceeds maximum length")
		return
	}
	if p.grammar == nil {
		p.skip(raw, events.SkipUnknownFormat, detector.ErrUnrecognizedFormat.Error())
		return
	}

	dec, ok := p.grammar.Split(raw.Text)
	if !ok {
		p.skip(raw, events.SkipGrammar, fmt.Sprintf("line does not match %s grammar", p.grammar.Format))
		return
	}
	ts, err := p.norm.Normalize(dec.Timestamp)
	if err != nil {
		p.skip(raw, events.SkipTimestamp, err.Error())
		return
	}

	match := p.a.classifier.Classify(dec.Message)
	if match.Partial && match.Kind == classifier.KindNone {
		p.skip(raw, events.SkipUnrecognized, fmt.Sprintf("looks like %s but does not parse", match.Suspect))
		return
	}

	cl := &ClassifiedLine{Raw: raw, Decorated: dec, Timestamp: ts, Match: match}

	family := match.Kind.Family()
	switch family {
	case classifier.FamilyNone:
		p.doc.Metadata.IgnoredLines++
		return
	case classifier.FamilyMeta:
		p.regionSize(cl)
		return
	case classifier.FamilyRegion:
		p.regionLines[raw.LineNum] = raw
	}

	engine, ok := p.engines[family]
	if !ok {
		p.doc.Metadata.IgnoredLines++
		return
	}
	if err := engine.Process(ctx, cl); err != nil {
		p.malformed(raw, err)
	}
}

func (p *pass) regionSize(cl *ClassifiedLine) {
	n, err := events.ParseSize(firstGroup(cl.Match.Groups))
	if err != nil || n <= 0 {
		p.malformed(cl.Raw, fmt.Errorf("%w: region size %q", events.ErrMalformedEvent, firstGroup(cl.Match.Groups)))
		return
	}
	p.regions.SetRegionSize(n)
	p.doc.Metadata.RegionSizeBytes = n
	p.doc.Metadata.IgnoredLines++
}

// Transition implements events.BlockSink.
func (p *pass) Transition(t events.RegionTransition) {
	p.doc.RegionTransitions = append(p.doc.RegionTransitions, t)
	for num := range p.regionLines {
		if num != p.current.LineNum {
			delete(p.regionLines, num)
		}
	}
}

// Discard implements events.BlockSink.
func (p *pass) Discard(lines []int, err error) {
	category := events.SkipTruncated
	if errors.Is(err, events.ErrMalformedEvent) {
		category = events.SkipMalformed
		p.doc.Metadata.MalformedEvents++
	}
	p.a.logger.Debug("dropping pause block", "lines", len(lines), "error", err)

	for _, num := range lines {
		raw, ok := p.regionLines[num]
		if !ok {
			raw = parser.RawLine{LineNum: num}
		}
		delete(p.regionLines, num)
		p.skip(raw, category, err.Error())
	}
}

func (p *pass) malformed(raw parser.RawLine, err error) {
	p.doc.Metadata.MalformedEvents++
	p.a.logger.Debug("dropping malformed event", "line", raw.LineNum, "error", err)
	p.skip(raw, events.SkipMalformed, err.Error())
}

func (p *pass) skip(raw parser.RawLine, category, reason string) {
	md := &p.doc.Metadata
	md.SkippedLines++
	md.SkippedByCategory[category]++

	if len(md.Diagnostics) >= p.a.diagLimit {
		return
	}
	md.Diagnostics = append(md.Diagnostics, events.Diagnostic{
		LineNum:  raw.LineNum,
		Offset:   raw.Offset,
		Category: category,
		Reason:   reason,
		Text:     truncateText(raw.Text, maxDiagnosticText),
	})
}

// truncateText cuts s to at most n bytes without splitting a rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// engineOrder is the order engines are finalized in.
var engineOrder = []classifier.Family{classifier.FamilyRegion, classifier.FamilySizing}

func (p *pass) finalize(ctx context.Context) {
	for _, family := range engineOrder {
		engine, ok := p.engines[family]
		if !ok {
			continue
		}
		if err := engine.Finalize(ctx); err != nil {
			p.a.logger.Warn("finalizing engine", "family", family, "error", err)
		}
	}
}

// finish flushes the engines and fills in document metadata.
func (p *pass) finish(ctx context.Context) *events.Document {
	p.finalize(ctx)

	doc := p.doc
	doc.SizingEntries = append(doc.SizingEntries, p.sizing.Entries()...)

	sort.SliceStable(doc.RegionTransitions, func(i, j int) bool {
		return doc.RegionTransitions[i].Timestamp < doc.RegionTransitions[j].Timestamp
	})
	sort.SliceStable(doc.SizingEntries, func(i, j int) bool {
		return doc.SizingEntries[i].Timestamp < doc.SizingEntries[j].Timestamp
	})

	mode := DetectMode(doc.SizingEntries)
	doc.Metadata.HasSizingData = mode.HasSizingData
	doc.Metadata.IsUncommitOnly = mode.IsUncommitOnly
	doc.Metadata.Correlations = p.sizing.Correlations()
	if origin, ok := p.norm.Origin(); ok {
		doc.Metadata.StartTime = origin
	}
	if len(doc.Metadata.SkippedByCategory) == 0 {
		doc.Metadata.SkippedByCategory = nil
	}

	p.a.logger.Debug("parse complete",
		"lines", doc.Metadata.TotalLines,
		"skipped", doc.Metadata.SkippedLines,
		"transitions", len(doc.RegionTransitions),
		"sizing_entries", len(doc.SizingEntries))
	return doc
}

func firstGroup(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return groups[0]
}
