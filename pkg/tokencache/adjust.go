package tokencache

import (
	"github.com/walteh/semtokd/pkg/position"
)

// Adjuster maps a range from before an edit to the range it occupies after the
// edit. ok is false when the range intersects the edited text and no longer
// means anything.
type Adjuster func(rng position.Range) (adjusted position.Range, ok bool)

// NewAdjuster builds the adjuster for one edit. It returns false for full
// document replacements, where nothing can be carried across.
//
// Ranges ending at or before the edit start are kept as is. Ranges starting at
// or after the edit end move by the edit's line delta, and those on the edit's
// last line also move by its column delta. Everything else is dropped.
func NewAdjuster(edit position.Edit) (Adjuster, bool) {
	if edit.IsFullReplacement() {
		return nil, false
	}

	start := edit.Range.Start
	end := edit.Range.End
	newEnd := edit.InsertedEnd()
	lineDelta := newEnd.Line - end.Line

	shift := func(p position.Position) position.Position {
		if p.Line == end.Line {
			return position.Position{Line: newEnd.Line, Character: newEnd.Character + p.Character - end.Character}
		}
		return position.Position{Line: p.Line + lineDelta, Character: p.Character}
	}

	return func(rng position.Range) (position.Range, bool) {
		switch {
		case rng.End.Compare(start) <= 0:
			return rng, true
		case rng.Start.Compare(end) >= 0:
			return position.Range{Start: shift(rng.Start), End: shift(rng.End)}, true
		default:
			return position.Range{}, false
		}
	}, true
}
