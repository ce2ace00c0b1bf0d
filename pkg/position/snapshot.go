package position

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"
)

var ErrOutOfBounds = errors.Base("position out of bounds")

// SnapshotID identifies one immutable text state of a document.
type SnapshotID struct {
	URI     string
	Version int32
}

// Snapshot is an immutable view of a document's text at one version. It knows
// where every line starts so byte offsets and LSP positions can be converted
// in both directions.
type Snapshot struct {
	ID   SnapshotID
	Text string

	// byte offset of the first character of every line
	lineStarts []int
}

func NewSnapshot(uri string, version int32, text string) *Snapshot {
	return &Snapshot{
		ID:         SnapshotID{URI: uri, Version: version},
		Text:       text,
		lineStarts: computeLineStarts(text),
	}
}

// computeLineStarts treats "\n", "\r\n" and "\r" as line breaks, like LSP.
func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			starts = append(starts, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (s *Snapshot) LineCount() int {
	return len(s.lineStarts)
}

// lineContentEnd is the byte offset where the line's content stops, before any
// line break.
func (s *Snapshot) lineContentEnd(line int) int {
	if line+1 >= len(s.lineStarts) {
		return len(s.Text)
	}
	end := s.lineStarts[line+1]
	if end > 0 && s.Text[end-1] == '\n' {
		end--
	}
	if end > 0 && s.Text[end-1] == '\r' {
		end--
	}
	return end
}

// LineText returns the content of a line without its line break.
func (s *Snapshot) LineText(line int) (string, error) {
	if line < 0 || line >= len(s.lineStarts) {
		return "", errors.Errorf("%w: line %d of %d", ErrOutOfBounds, line, len(s.lineStarts))
	}
	return s.Text[s.lineStarts[line]:s.lineContentEnd(line)], nil
}

// PositionOf converts a UTF-8 byte offset into a Position.
func (s *Snapshot) PositionOf(offset int) (Position, error) {
	if offset < 0 || offset > len(s.Text) {
		return Position{}, errors.Errorf("%w: offset %d, text length %d", ErrOutOfBounds, offset, len(s.Text))
	}
	if offset < len(s.Text) && !utf8.RuneStart(s.Text[offset]) {
		return Position{}, errors.Errorf("%w: offset %d is inside a multi-byte character", ErrOutOfBounds, offset)
	}

	line := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	}) - 1

	start := s.lineStarts[line]
	// an offset between "\r" and "\n" still belongs to the line end
	end := min(offset, s.lineContentEnd(line))

	return Position{Line: line, Character: UTF16Len(s.Text[start:end])}, nil
}

// OffsetOf converts a Position into a UTF-8 byte offset.
func (s *Snapshot) OffsetOf(p Position) (int, error) {
	if p.Line < 0 || p.Line >= len(s.lineStarts) || p.Character < 0 {
		return 0, errors.Errorf("%w: %s, line count %d", ErrOutOfBounds, p, len(s.lineStarts))
	}

	start := s.lineStarts[p.Line]
	end := s.lineContentEnd(p.Line)

	units := 0
	for i, r := range s.Text[start:end] {
		if units == p.Character {
			return start + i, nil
		}
		units += utf16.RuneLen(r)
		if units > p.Character {
			return 0, errors.Errorf("%w: %s splits a surrogate pair", ErrOutOfBounds, p)
		}
	}
	if units == p.Character {
		return end, nil
	}

	return 0, errors.Errorf("%w: %s, line length %d", ErrOutOfBounds, p, units)
}

// RangeOf converts a UTF-8 (offset, length) span into a Range.
func (s *Snapshot) RangeOf(offset, length int) (Range, error) {
	if length < 0 {
		return Range{}, errors.Errorf("%w: negative length %d", ErrOutOfBounds, length)
	}
	start, err := s.PositionOf(offset)
	if err != nil {
		return Range{}, err
	}
	end, err := s.PositionOf(offset + length)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: start, End: end}, nil
}

// TextIn returns the text covered by r.
func (s *Snapshot) TextIn(r Range) (string, error) {
	start, err := s.OffsetOf(r.Start)
	if err != nil {
		return "", errors.Errorf("resolving range start: %w", err)
	}
	end, err := s.OffsetOf(r.End)
	if err != nil {
		return "", errors.Errorf("resolving range end: %w", err)
	}
	if end < start {
		return "", errors.Errorf("%w: range %s ends before it starts", ErrOutOfBounds, r)
	}
	return s.Text[start:end], nil
}

// End returns the position just past the last character of the document.
func (s *Snapshot) End() Position {
	line := len(s.lineStarts) - 1
	return Position{Line: line, Character: UTF16Len(s.Text[s.lineStarts[line]:])}
}

// UTF16Len is the number of UTF-16 code units needed to encode text.
func UTF16Len(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}
