// Package highlight answers semantic token requests: it runs the structural and
// semantic classifiers side by side, merges their tokens, keeps the per
// document cache current and encodes the result for the wire.
package highlight

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/analysis"
	"github.com/walteh/semtokd/pkg/classify"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
	"github.com/walteh/semtokd/pkg/structural"
	"github.com/walteh/semtokd/pkg/tokencache"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDocumentNotFound = errors.Base("document not found")
	ErrDeltaUnsupported = errors.Base("semantic token deltas are not supported")
)

// Documents resolves a URI to its current snapshot.
type Documents interface {
	Snapshot(uri string) (*position.Snapshot, bool)
}

type Options struct {
	BuildFlags     []string
	MaxRecordDepth int

	// Selected reports whether a document should be highlighted at all. Nil
	// selects everything.
	Selected func(uri string) bool

	// SemanticRecovered is called when the engine answers for a document it
	// previously declined, so clients can be told to ask again.
	SemanticRecovered func(ctx context.Context, uri string)
}

// Result is one encoded token set.
type Result struct {
	ResultID string
	Data     []uint32
}

type Highlighter struct {
	docs       Documents
	structural structural.Classifier
	engine     analysis.Engine
	parser     *classify.Parser
	cache      *tokencache.Cache
	opts       Options

	// uri -> true while the engine is in fallback mode for it
	fallback sync.Map
}

func New(docs Documents, sc structural.Classifier, engine analysis.Engine, cache *tokencache.Cache, opts Options) *Highlighter {
	if engine == nil {
		engine = analysis.Disabled{}
	}
	if cache == nil {
		cache = tokencache.New()
	}
	return &Highlighter{
		docs:       docs,
		structural: sc,
		engine:     engine,
		parser:     classify.NewParser(opts.MaxRecordDepth),
		cache:      cache,
		opts:       opts,
	}
}

func (h *Highlighter) Cache() *tokencache.Cache {
	return h.cache
}

func (h *Highlighter) snapshot(uri string) (*position.Snapshot, error) {
	if h.docs == nil {
		return nil, errors.Errorf("%s: %w", uri, ErrDocumentNotFound)
	}
	snap, ok := h.docs.Snapshot(uri)
	if !ok {
		return nil, errors.Errorf("%s: %w", uri, ErrDocumentNotFound)
	}
	return snap, nil
}

func (h *Highlighter) selected(uri string) bool {
	return h.opts.Selected == nil || h.opts.Selected(uri)
}

// Full computes the tokens of the whole document and caches them.
func (h *Highlighter) Full(ctx context.Context, uri string) (*Result, error) {
	gen := h.cache.Generation(uri)
	snap, err := h.snapshot(uri)
	if err != nil {
		return nil, err
	}
	if !h.selected(uri) {
		return &Result{Data: []uint32{}}, nil
	}

	toks, err := h.computeAndStore(ctx, gen, snap)
	if err != nil {
		return nil, err
	}
	return h.encode(ctx, snap, toks)
}

// Range returns the tokens overlapping rng. Tokens cached for the current
// version, including ones carried across edits, are used as they are.
func (h *Highlighter) Range(ctx context.Context, uri string, rng position.Range) (*Result, error) {
	gen := h.cache.Generation(uri)
	snap, err := h.snapshot(uri)
	if err != nil {
		return nil, err
	}
	if !h.selected(uri) {
		return &Result{Data: []uint32{}}, nil
	}

	toks, ok := h.cache.Lookup(ctx, snap.ID)
	if !ok {
		if toks, err = h.computeAndStore(ctx, gen, snap); err != nil {
			return nil, err
		}
	}
	return h.encode(ctx, snap, semtok.Within(toks, rng))
}

// Delta never has anything to offer; clients fall back to Full.
func (h *Highlighter) Delta(ctx context.Context, uri string, previousResultID string) (*Result, error) {
	zerolog.Ctx(ctx).Trace().Str("uri", uri).Str("previous_result_id", previousResultID).Msg("delta requested")
	return nil, ErrDeltaUnsupported
}

// DidChange carries cached tokens from one version to the next.
func (h *Highlighter) DidChange(ctx context.Context, uri string, from, to int32, edits []position.Edit) bool {
	if !h.selected(uri) {
		return false
	}
	return h.cache.ApplyEdit(ctx, uri, from, to, edits)
}

// DidOpen drops anything cached under uri by an earlier session, whose
// versions may be higher than the ones the new session starts with.
func (h *Highlighter) DidOpen(ctx context.Context, uri string) {
	h.cache.Discard(ctx, uri)
	h.fallback.Delete(uri)
}

func (h *Highlighter) DidClose(ctx context.Context, uri string) {
	h.cache.Discard(ctx, uri)
	h.fallback.Delete(uri)
}

// Tokens computes sorted, merged tokens for a snapshot without touching the
// cache.
func (h *Highlighter) Tokens(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	var syntactic, semantic []semtok.Token

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		toks, err := h.structural.Classify(gctx, snap)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			zerolog.Ctx(ctx).Warn().Err(err).Str("uri", snap.ID.URI).Msg("structural classification failed")
			return nil
		}
		syntactic = toks
		return nil
	})
	g.Go(func() error {
		toks, err := h.semantic(gctx, snap)
		if err != nil {
			return err
		}
		semantic = toks
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("classifying %s: %w", snap.ID.URI, err)
	}

	merged := semtok.Merge(syntactic, semantic)
	semtok.Sort(merged)
	return merged, nil
}

// semantic only returns an error when ctx is done. Every other failure leaves
// the request with structural tokens alone.
func (h *Highlighter) semantic(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	logger := zerolog.Ctx(ctx).With().Str("uri", snap.ID.URI).Int32("version", snap.ID.Version).Logger()

	records, err := analysis.Records(ctx, h.engine, snap, h.opts.BuildFlags)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, analysis.ErrUnavailable) {
			logger.Debug().Msg("semantic tokens withheld, engine in fallback mode")
			h.fallback.Store(snap.ID.URI, true)
		} else {
			logger.Warn().Err(err).Msg("semantic classification failed")
		}
		return nil, nil
	}

	if was, ok := h.fallback.LoadAndDelete(snap.ID.URI); ok && was.(bool) && h.opts.SemanticRecovered != nil {
		h.opts.SemanticRecovered(ctx, snap.ID.URI)
	}

	return h.parser.Parse(ctx, snap, records), nil
}

// gen is the cache generation read before snap was resolved, so tokens for a
// document closed or reopened in the meantime are never stored.
func (h *Highlighter) computeAndStore(ctx context.Context, gen uint64, snap *position.Snapshot) ([]semtok.Token, error) {
	toks, err := h.Tokens(ctx, snap)
	if err != nil {
		return nil, err
	}
	// a cancelled request must not leave a half finished entry behind
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.cache.StoreGeneration(ctx, gen, snap.ID, toks)
	return toks, nil
}

func (h *Highlighter) encode(ctx context.Context, snap *position.Snapshot, toks []semtok.Token) (*Result, error) {
	data, err := semtok.Encode(toks)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("uri", snap.ID.URI).Int32("version", snap.ID.Version).Msg("refusing to encode tokens")
		return nil, errors.Errorf("encoding tokens for %s: %w", snap.ID.URI, err)
	}
	return &Result{ResultID: uuid.NewString(), Data: data}, nil
}
