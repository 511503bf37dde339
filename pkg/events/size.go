package events

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize converts a JVM size token such as "24M", "1.5G", "512K" or "80B"
// into bytes. JVM units are binary.
func ParseSize(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("%w: empty size", ErrMalformedEvent)
	}

	normalized := token
	switch unit := token[len(token)-1]; unit {
	case 'K', 'M', 'G', 'T':
		normalized = token + "iB"
	case 'k', 'm', 'g', 't':
		normalized = token[:len(token)-1] + strings.ToUpper(string(unit)) + "iB"
	}

	n, err := humanize.ParseBytes(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q: %v", ErrMalformedEvent, token, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: size %q overflows", ErrMalformedEvent, token)
	}
	return int64(n), nil
}

// mebibytes converts a decimal megabyte count as printed by the sizing
// lines (which use binary megabytes) into bytes.
func mebibytes(token string) (int64, error) {
	return ParseSize(token + "M")
}
