package semtok

import (
	"sort"

	"github.com/walteh/semtokd/pkg/position"
)

// Merge combines structural and semantic tokens. A semantic token wins over a
// structural token with exactly the same range; partially overlapping tokens
// are both kept. The result is not sorted.
func Merge(syntactic, semantic []Token) []Token {
	covered := make(map[position.Range]struct{}, len(semantic))
	for _, tok := range semantic {
		covered[tok.Range] = struct{}{}
	}

	out := make([]Token, 0, len(syntactic)+len(semantic))
	for _, tok := range syntactic {
		if _, ok := covered[tok.Range]; ok {
			continue
		}
		out = append(out, tok)
	}
	return append(out, semantic...)
}

// Sort orders tokens by start position, the order the encoder requires.
func Sort(tokens []Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Range.Start.Before(tokens[j].Range.Start)
	})
}

// Within returns the tokens that overlap rng, keeping their order.
func Within(tokens []Token, rng position.Range) []Token {
	out := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Range.Overlaps(rng) {
			out = append(out, tok)
		}
	}
	return out
}
