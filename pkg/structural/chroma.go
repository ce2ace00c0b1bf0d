package structural

import (
	"context"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
	"gitlab.com/tozd/go/errors"
)

// Chroma classifies documents with a chroma lexer picked by file name. Lexers
// see the text byte for byte so token offsets line up with the snapshot.
type Chroma struct{}

func NewChroma() *Chroma {
	return &Chroma{}
}

func (c *Chroma) Lexer(uri, text string) chroma.Lexer {
	if l := lexers.Match(Filename(uri)); l != nil {
		return l
	}
	if l := lexers.Analyse(text); l != nil {
		return l
	}
	return nil
}

func (c *Chroma) Classify(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	lexer := c.Lexer(snap.ID.URI, snap.Text)
	if lexer == nil {
		zerolog.Ctx(ctx).Trace().Str("uri", snap.ID.URI).Msg("no lexer for document")
		return nil, nil
	}

	it, err := lexer.Tokenise(&chroma.TokeniseOptions{State: "root"}, snap.Text)
	if err != nil {
		return nil, errors.Errorf("tokenising %s with %s: %w", snap.ID.URI, lexer.Config().Name, err)
	}

	var out []semtok.Token
	offset := 0
	for t := it(); t != chroma.EOF; t = it() {
		start := offset
		offset += len(t.Value)

		kind, mods, ok := chromaKind(t.Type)
		if !ok {
			continue
		}
		end := min(offset, len(snap.Text))
		if end <= start {
			continue
		}
		toks, err := rangeTokens(snap, start, end, kind, mods)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("token", t.Type.String()).Int("offset", start).Msg("skipping lexer token")
			continue
		}
		out = append(out, toks...)
	}

	return out, nil
}

func chromaKind(t chroma.TokenType) (semtok.Kind, semtok.Modifiers, bool) {
	switch t {
	case chroma.KeywordType:
		return semtok.KindType, semtok.ModNone, true
	case chroma.NameClass, chroma.NameException:
		return semtok.KindClass, semtok.ModNone, true
	case chroma.NameNamespace:
		return semtok.KindNamespace, semtok.ModNone, true
	case chroma.NameConstant:
		return semtok.KindVariable, semtok.ModReadonly, true
	case chroma.NameProperty, chroma.NameAttribute:
		return semtok.KindProperty, semtok.ModNone, true
	case chroma.NameDecorator:
		return semtok.KindDecorator, semtok.ModNone, true
	case chroma.NameTag:
		return semtok.KindType, semtok.ModNone, true
	case chroma.NameKeyword, chroma.OperatorWord:
		return semtok.KindKeyword, semtok.ModNone, true
	case chroma.Name, chroma.NameOther:
		return semtok.KindVariable, semtok.ModNone, true
	case chroma.LiteralStringRegex:
		return semtok.KindRegexp, semtok.ModNone, true
	case chroma.CommentPreproc, chroma.CommentPreprocFile:
		return semtok.KindMacro, semtok.ModNone, true
	}

	switch {
	case t.InSubCategory(chroma.NameBuiltin):
		return semtok.KindFunction, semtok.ModDefaultLibrary, true
	case t.InSubCategory(chroma.NameFunction):
		return semtok.KindFunction, semtok.ModNone, true
	case t.InSubCategory(chroma.NameVariable):
		return semtok.KindVariable, semtok.ModNone, true
	case t.InCategory(chroma.Keyword):
		return semtok.KindKeyword, semtok.ModNone, true
	case t.InCategory(chroma.Comment):
		return semtok.KindComment, semtok.ModNone, true
	case t.InSubCategory(chroma.LiteralString):
		return semtok.KindString, semtok.ModNone, true
	case t.InSubCategory(chroma.LiteralNumber):
		return semtok.KindNumber, semtok.ModNone, true
	case t == chroma.Operator:
		return semtok.KindOperator, semtok.ModNone, true
	}
	return 0, 0, false
}
