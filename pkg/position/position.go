package position

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Position is a zero based line plus a UTF-16 code unit offset within that line.
// This is the coordinate system spoken by LSP clients.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Compare orders positions lexicographically on (line, character).
func (p Position) Compare(other Position) int {
	switch {
	case p.Line < other.Line:
		return -1
	case p.Line > other.Line:
		return 1
	case p.Character < other.Character:
		return -1
	case p.Character > other.Character:
		return 1
	default:
		return 0
	}
}

func (p Position) Before(other Position) bool {
	return p.Compare(other) < 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is a half open span [Start, End).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

func (r Range) IsEmpty() bool {
	return r.Start.Compare(r.End) >= 0
}

func (r Range) IsSingleLine() bool {
	return r.Start.Line == r.End.Line
}

// Contains reports whether p lies inside r. The end is exclusive.
func (r Range) Contains(p Position) bool {
	return r.Start.Compare(p) <= 0 && p.Compare(r.End) < 0
}

// Overlaps reports whether the two ranges share at least one code unit. An
// empty range overlaps a range it falls within, including its boundaries.
func (r Range) Overlaps(other Range) bool {
	if r.IsEmpty() {
		return other.Start.Compare(r.Start) <= 0 && r.Start.Compare(other.End) <= 0
	}
	if other.IsEmpty() {
		return r.Start.Compare(other.Start) <= 0 && other.Start.Compare(r.End) <= 0
	}
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// ParseRange parses the "line:char-line:char" form produced by Range.String.
func ParseRange(s string) (Range, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, errors.Errorf("invalid range %q: expected line:char-line:char", s)
	}
	startPos, err := parsePosition(start)
	if err != nil {
		return Range{}, errors.Errorf("parsing range start: %w", err)
	}
	endPos, err := parsePosition(end)
	if err != nil {
		return Range{}, errors.Errorf("parsing range end: %w", err)
	}
	if endPos.Before(startPos) {
		return Range{}, errors.Errorf("invalid range %q: end before start", s)
	}
	return Range{Start: startPos, End: endPos}, nil
}

func parsePosition(s string) (Position, error) {
	line, char, ok := strings.Cut(s, ":")
	if !ok {
		return Position{}, errors.Errorf("invalid position %q", s)
	}
	l, err := strconv.Atoi(line)
	if err != nil {
		return Position{}, errors.Errorf("invalid line %q: %w", line, err)
	}
	c, err := strconv.Atoi(char)
	if err != nil {
		return Position{}, errors.Errorf("invalid character %q: %w", char, err)
	}
	if l < 0 || c < 0 {
		return Position{}, errors.Errorf("invalid position %q: negative", s)
	}
	return Position{Line: l, Character: c}, nil
}
