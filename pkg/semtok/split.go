package semtok

import (
	"github.com/walteh/semtokd/pkg/position"
	"gitlab.com/tozd/go/errors"
)

// SplitRange breaks a possibly multi-line range into single-line ranges that
// cover the same text. Empty pieces, which show up around line breaks, are
// dropped.
func SplitRange(snap *position.Snapshot, rng position.Range) ([]position.Range, error) {
	if rng.IsEmpty() {
		return nil, nil
	}
	if rng.IsSingleLine() {
		return []position.Range{rng}, nil
	}

	text, err := snap.TextIn(rng)
	if err != nil {
		return nil, errors.Errorf("splitting range %s: %w", rng, err)
	}

	lines, _ := position.SplitLines(text)
	out := make([]position.Range, 0, len(lines))
	for i, line := range lines {
		start := position.Position{Line: rng.Start.Line + i}
		if i == 0 {
			start.Character = rng.Start.Character
		}
		sub := position.Range{
			Start: start,
			End:   position.Position{Line: start.Line, Character: start.Character + position.UTF16Len(line)},
		}
		if sub.IsEmpty() {
			continue
		}
		out = append(out, sub)
	}

	return out, nil
}

// SplitTokens returns one token per line of rng, all sharing kind and mods.
func SplitTokens(snap *position.Snapshot, rng position.Range, kind Kind, mods Modifiers) ([]Token, error) {
	ranges, err := SplitRange(snap, rng)
	if err != nil {
		return nil, err
	}
	out := make([]Token, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, Token{Range: r, Kind: kind, Modifiers: mods})
	}
	return out, nil
}
