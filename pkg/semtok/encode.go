package semtok

import (
	"github.com/walteh/semtokd/pkg/position"
	"gitlab.com/tozd/go/errors"
)

var ErrUnsorted = errors.Base("tokens are not sorted by start position")

// Encode turns tokens sorted by start position into LSP's relative encoding:
// five integers per token, [deltaLine, deltaStartChar, length, kind, modifiers].
//
// Unsorted input is an upstream bug. It is reported as ErrUnsorted rather than
// encoded, since a negative delta would wrap around and corrupt the client's
// highlighting for the rest of the document.
func Encode(tokens []Token) ([]uint32, error) {
	data := make([]uint32, 0, len(tokens)*5)

	var prevLine, prevChar int
	for i, tok := range tokens {
		if !tok.Range.IsSingleLine() {
			return nil, errors.Errorf("token %d %s: %w", i, tok, ErrMultiLine)
		}
		if tok.Length() < 0 {
			return nil, errors.Errorf("token %d %s has a negative length", i, tok)
		}

		line := tok.Range.Start.Line
		char := tok.Range.Start.Character

		deltaLine := line - prevLine
		deltaChar := char
		if deltaLine == 0 {
			deltaChar = char - prevChar
		}
		if deltaLine < 0 || deltaChar < 0 {
			return nil, errors.Errorf("token %d %s follows %d:%d: %w", i, tok, prevLine, prevChar, ErrUnsorted)
		}

		data = append(data,
			uint32(deltaLine),
			uint32(deltaChar),
			uint32(tok.Length()),
			uint32(tok.Kind),
			uint32(tok.Modifiers),
		)

		prevLine = line
		prevChar = char
	}

	return data, nil
}

// MustEncode is Encode for callers that have already sorted their tokens.
func MustEncode(tokens []Token) []uint32 {
	data, err := Encode(tokens)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode reverses Encode. Tokens come back with absolute ranges.
func Decode(data []uint32) ([]Token, error) {
	if len(data)%5 != 0 {
		return nil, errors.Errorf("encoded token data has length %d, not a multiple of 5", len(data))
	}

	out := make([]Token, 0, len(data)/5)
	var line, char int
	for i := 0; i < len(data); i += 5 {
		if data[i] != 0 {
			char = 0
		}
		line += int(data[i])
		char += int(data[i+1])
		out = append(out, Token{
			Range:     rangeOnLine(line, char, int(data[i+2])),
			Kind:      Kind(data[i+3]),
			Modifiers: Modifiers(data[i+4]),
		})
	}
	return out, nil
}

func rangeOnLine(line, char, length int) position.Range {
	return position.NewRange(line, char, line, char+length)
}
