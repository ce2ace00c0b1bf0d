package position

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Edit replaces the text covered by Range with Text. A nil Range means Text
// replaces the whole document.
type Edit struct {
	Range *Range
	Text  string
}

func (e Edit) IsFullReplacement() bool {
	return e.Range == nil
}

// InsertedEnd is the position right after the inserted text once the edit has
// been applied. It panics for full replacements.
func (e Edit) InsertedEnd() Position {
	lines, _ := SplitLines(e.Text)
	last := UTF16Len(lines[len(lines)-1])
	if len(lines) == 1 {
		return Position{Line: e.Range.Start.Line, Character: e.Range.Start.Character + last}
	}
	return Position{Line: e.Range.Start.Line + len(lines) - 1, Character: last}
}

// Apply produces the snapshot for version after applying edits in order. Each
// edit is expressed against the text left by the previous one.
func (s *Snapshot) Apply(ctx context.Context, version int32, edits []Edit) (*Snapshot, error) {
	if version < s.ID.Version {
		return nil, errors.Errorf("applying edits to %s: version %d is older than %d", s.ID.URI, version, s.ID.Version)
	}

	current := s
	for i, edit := range edits {
		if edit.IsFullReplacement() {
			current = NewSnapshot(s.ID.URI, version, edit.Text)
			continue
		}

		start, err := current.OffsetOf(edit.Range.Start)
		if err != nil {
			return nil, errors.Errorf("edit %d start: %w", i, err)
		}
		end, err := current.OffsetOf(edit.Range.End)
		if err != nil {
			return nil, errors.Errorf("edit %d end: %w", i, err)
		}
		if end < start {
			return nil, errors.Errorf("edit %d: range %s ends before it starts", i, edit.Range)
		}

		zerolog.Ctx(ctx).Trace().
			Str("uri", s.ID.URI).
			Int("start", start).
			Int("end", end).
			Str("text", edit.Text).
			Msg("replacing content")

		current = NewSnapshot(s.ID.URI, version, current.Text[:start]+edit.Text+current.Text[end:])
	}

	if current == s {
		current = NewSnapshot(s.ID.URI, version, s.Text)
	}

	return current, nil
}

// SplitLines splits text on "\n", "\r\n" and "\r". All segments are kept,
// including empty leading and trailing ones, and breaks[i] is the separator
// that followed lines[i]. len(breaks) == len(lines)-1.
func SplitLines(text string) (lines []string, breaks []string) {
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			breaks = append(breaks, "\n")
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				breaks = append(breaks, "\r\n")
				i++
			} else {
				breaks = append(breaks, "\r")
			}
			start = i + 1
		}
	}
	lines = append(lines, text[start:])
	return lines, breaks
}
