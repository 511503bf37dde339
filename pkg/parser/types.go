// Package parser reads GC log input line by line and normalizes timestamps.
package parser

// RawLine is a single input line as read from the log.
type RawLine struct {
	// Text is the line content without the trailing newline.
	// Empty when Oversize is set.
	Text string

	// LineNum is the 1-based line number in the input.
	LineNum int

	// Offset is the byte offset of the first byte of the line.
	Offset int64

	// Oversize is set when the line exceeded the maximum line length and was discarded.
	Oversize bool
}

// Blank reports whether the line carries no content.
func (l RawLine) Blank() bool {
	for i := 0; i < len(l.Text); i++ {
		switch l.Text[i] {
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return !l.Oversize
}
