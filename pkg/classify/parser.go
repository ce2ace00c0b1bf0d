package classify

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
)

const DefaultMaxDepth = 64

// Parser flattens engine records into tokens.
type Parser struct {
	Table    map[string]Entry
	Ignored  map[string]struct{}
	MaxDepth int
}

func NewParser(maxDepth int) *Parser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Parser{
		Table:    DefaultTable,
		Ignored:  DefaultIgnored,
		MaxDepth: maxDepth,
	}
}

type frame struct {
	record Record
	depth  int
}

// Parse walks records depth first, parent before children, in the order the
// engine produced them. The output is not sorted.
//
// Records that cannot be translated are dropped one at a time: unknown kind
// identifiers, spans that fall outside the snapshot and records nested deeper
// than MaxDepth never abort the walk.
func (p *Parser) Parse(ctx context.Context, snap *position.Snapshot, records []Record) []semtok.Token {
	logger := zerolog.Ctx(ctx).With().Str("uri", snap.ID.URI).Int32("version", snap.ID.Version).Logger()

	var (
		out     []semtok.Token
		unknown = map[string]int{}
		stack   = make([]frame, 0, len(records))
	)

	for i := len(records) - 1; i >= 0; i-- {
		stack = append(stack, frame{record: records[i], depth: 1})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > p.MaxDepth {
			logger.Warn().Int("depth", f.depth).Int("offset", f.record.Offset).Msg("dropping classification record nested too deep")
			continue
		}

		for i := len(f.record.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{record: f.record.Children[i], depth: f.depth + 1})
		}

		entry, ok := p.Table[f.record.KindID]
		if !ok {
			if _, ignored := p.Ignored[f.record.KindID]; !ignored {
				unknown[f.record.KindID]++
			}
			continue
		}

		out = append(out, p.tokens(logger, snap, f.record, entry)...)
	}

	for id, n := range unknown {
		logger.Debug().Str("kind", id).Int("count", n).Msg("skipping unknown classification kind")
	}

	return out
}

func (p *Parser) tokens(logger zerolog.Logger, snap *position.Snapshot, rec Record, entry Entry) []semtok.Token {
	length := rec.Length
	mods := entry.Modifiers

	// `name` declarations are reported without their backticks
	if mods.Has(semtok.ModDeclaration) && rec.Offset >= 0 && rec.Offset < len(snap.Text) && snap.Text[rec.Offset] == '`' {
		length += 2
	}
	if rec.IsSystem {
		mods |= semtok.ModDefaultLibrary
	}

	rng, err := snap.RangeOf(rec.Offset, length)
	if err != nil {
		logger.Debug().Err(err).Str("kind", rec.KindID).Int("offset", rec.Offset).Int("length", length).Msg("skipping classification record outside the document")
		return nil
	}

	toks, err := semtok.SplitTokens(snap, rng, entry.Kind, mods)
	if err != nil {
		logger.Debug().Err(err).Str("kind", rec.KindID).Str("range", rng.String()).Msg("skipping unsplittable classification record")
		return nil
	}
	return toks
}
