// Package structural produces syntactic tokens from the document text alone.
// It never fails a request for lack of a grammar: documents in a language we
// cannot parse fall through to a chroma lexer, and from there to no tokens.
package structural

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
)

// Classifier produces syntactic tokens for a snapshot. Tokens are single line
// but not necessarily sorted.
type Classifier interface {
	Classify(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error)
}

var _ Classifier = (*Router)(nil)

// Router sends each document to the tree-sitter grammar for its extension, or
// to a chroma lexer when no grammar is bundled.
type Router struct {
	trees *TreeSitter
	lexer *Chroma
}

func NewRouter() *Router {
	return &Router{
		trees: NewTreeSitter(),
		lexer: NewChroma(),
	}
}

func (r *Router) Classify(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	if r.trees.Supports(snap.ID.URI) {
		return r.trees.Classify(ctx, snap)
	}
	return r.lexer.Classify(ctx, snap)
}

// Filename extracts the file name part of a document URI.
func Filename(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(uri)
}

func extension(uri string) string {
	return strings.ToLower(path.Ext(Filename(uri)))
}

// rangeTokens converts a byte span of snap into single line tokens.
func rangeTokens(snap *position.Snapshot, start, end int, kind semtok.Kind, mods semtok.Modifiers) ([]semtok.Token, error) {
	rng, err := snap.RangeOf(start, end-start)
	if err != nil {
		return nil, err
	}
	return semtok.SplitTokens(snap, rng, kind, mods)
}
