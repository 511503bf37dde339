package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/gclog/pkg/detector"
)

// ErrInconsistentTimestamp reports a timestamp token that cannot be parsed
// under the detected format.
var ErrInconsistentTimestamp = errors.New("inconsistent timestamp")

// modernLayouts are tried in order for MODERN timestamps.
var modernLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// Normalizer converts format-specific timestamp tokens into elapsed seconds.
// For MODERN logs the first successfully parsed timestamp defines t=0.
// A Normalizer belongs to a single document.
type Normalizer struct {
	format    detector.Format
	origin    time.Time
	hasOrigin bool
}

// NewNormalizer creates a Normalizer for the given format.
func NewNormalizer(format detector.Format) *Normalizer {
	return &Normalizer{format: format}
}

// Normalize returns the canonical elapsed seconds for a timestamp token.
func (n *Normalizer) Normalize(token string) (float64, error) {
	switch n.format {
	case detector.FormatTraditional:
		secs, err := strconv.ParseFloat(strings.Replace(token, ",", ".", 1), 64)
		if err != nil || secs < 0 {
			return 0, fmt.Errorf("%w: uptime %q", ErrInconsistentTimestamp, token)
		}
		return secs, nil

	case detector.FormatModern:
		ts, err := parseInstant(token)
		if err != nil {
			return 0, err
		}
		if !n.hasOrigin {
			n.origin = ts
			n.hasOrigin = true
		}
		return ts.Sub(n.origin).Seconds(), nil

	default:
		return 0, fmt.Errorf("%w: no grammar for format %s", ErrInconsistentTimestamp, n.format)
	}
}

// Origin returns the absolute instant of t=0 for MODERN logs.
// The second return is false until a timestamp has been parsed.
func (n *Normalizer) Origin() (time.Time, bool) {
	return n.origin, n.hasOrigin
}

func parseInstant(token string) (time.Time, error) {
	token = strings.Replace(token, ",", ".", 1)
	for _, layout := range modernLayouts {
		if ts, err := time.Parse(layout, token); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: instant %q", ErrInconsistentTimestamp, token)
}
