package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLineBytes bounds the memory held for a single line.
const DefaultMaxLineBytes = 1024 * 1024

// LineSource yields raw lines from a reader with bounded memory per line.
// Implementations are for sequential access only.
type LineSource struct {
	reader  *bufio.Reader
	maxLen  int
	lineNum int
	offset  int64

	pending []RawLine // lines pushed back for replay
	err     error     // sticky read error
}

// NewLineSource creates a LineSource over r. Lines longer than maxLineBytes
// are returned with Oversize set and their content dropped.
func NewLineSource(r io.Reader, maxLineBytes int) *LineSource {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	bufSize := 64 * 1024
	if maxLineBytes < bufSize {
		bufSize = maxLineBytes
	}
	return &LineSource{
		reader: bufio.NewReaderSize(r, bufSize),
		maxLen: maxLineBytes,
	}
}

// Next returns the next line. Returns io.EOF when the input is exhausted.
// A read error is returned again on every later call.
func (s *LineSource) Next(ctx context.Context) (RawLine, error) {
	if len(s.pending) > 0 {
		line := s.pending[0]
		s.pending = s.pending[1:]
		return line, nil
	}
	if s.err != nil {
		return RawLine{}, s.err
	}

	select {
	case <-ctx.Done():
		return RawLine{}, ctx.Err()
	default:
	}

	var sb strings.Builder
	start := s.offset
	oversize := false
	read := 0

	for {
		chunk, err := s.reader.ReadSlice('\n')
		read += len(chunk)
		s.offset += int64(len(chunk))

		if !oversize {
			if sb.Len()+len(chunk) > s.maxLen+1 {
				oversize = true
				sb.Reset()
			} else {
				sb.Write(chunk)
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("reading line %d: %w", s.lineNum+1, err)
			return RawLine{}, s.err
		}
		if read == 0 {
			return RawLine{}, io.EOF
		}
		break
	}

	s.lineNum++
	line := RawLine{
		LineNum:  s.lineNum,
		Offset:   start,
		Oversize: oversize,
	}
	if !oversize {
		line.Text = strings.TrimRight(sb.String(), "\r\n")
	}
	return line, nil
}

// Unread pushes lines back so that they are returned, in order, before any
// further input. Used to replay the detection lookahead.
func (s *LineSource) Unread(lines ...RawLine) {
	s.pending = append(append([]RawLine(nil), lines...), s.pending...)
}
