// Package tokencache keeps the last computed token set of every open document
// and carries it across edits until a fresh computation replaces it.
package tokencache

import (
	"context"
	"slices"
	"sync"

	"github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
)

// Cache is safe for concurrent use. Every document gets its own handle and
// lock; operations on different documents never wait on each other.
type Cache struct {
	mu   sync.Mutex
	docs map[string]*handle

	// bumped by Discard; a computation started under an older generation
	// belongs to a closed session and must not be stored
	generations map[string]uint64
}

// handle owns every cached version of one document. After a store only the
// stored version remains, but the tree keeps lookups ordered while an older
// computation races a newer edit.
type handle struct {
	mu       sync.Mutex
	versions *redblacktree.Tree[int32, []semtok.Token]
}

func New() *Cache {
	return &Cache{docs: map[string]*handle{}, generations: map[string]uint64{}}
}

// Generation identifies the current session of a document. Read it before
// computing tokens and hand it to StoreGeneration.
func (c *Cache) Generation(uri string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[uri]
}

func (c *Cache) handle(uri string, create bool) *handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handleLocked(uri, create)
}

func (c *Cache) handleLocked(uri string, create bool) *handle {
	h, ok := c.docs[uri]
	if !ok && create {
		h = &handle{versions: redblacktree.New[int32, []semtok.Token]()}
		c.docs[uri] = h
		cacheDocuments.Set(float64(len(c.docs)))
	}
	return h
}

// Store records tokens for a snapshot and purges every older version of the
// same document. A store for a version older than one already retained is
// ignored, since the newer entry is at least as accurate.
func (c *Cache) Store(ctx context.Context, id position.SnapshotID, tokens []semtok.Token) {
	c.storeIn(ctx, c.handle(id.URI, true), id, tokens)
}

// StoreGeneration is Store for tokens computed while generation gen was
// current. It stores nothing and returns false once the document has been
// discarded since, so a request that outlives didClose cannot bring the
// closed document back.
func (c *Cache) StoreGeneration(ctx context.Context, gen uint64, id position.SnapshotID, tokens []semtok.Token) bool {
	c.mu.Lock()
	if c.generations[id.URI] != gen {
		c.mu.Unlock()
		zerolog.Ctx(ctx).Debug().
			Str("uri", id.URI).
			Int32("version", id.Version).
			Msg("document closed while computing, dropping tokens")
		return false
	}
	h := c.handleLocked(id.URI, true)
	c.mu.Unlock()

	// a Discard from here on orphans h, so whatever lands in it is unreachable
	return c.storeIn(ctx, h, id, tokens)
}

func (c *Cache) storeIn(ctx context.Context, h *handle, id position.SnapshotID, tokens []semtok.Token) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.store(id.Version, slices.Clone(tokens)) {
		zerolog.Ctx(ctx).Debug().
			Str("uri", id.URI).
			Int32("version", id.Version).
			Msg("ignoring tokens for a superseded version")
		return false
	}
	return true
}

func (h *handle) store(version int32, tokens []semtok.Token) bool {
	if newest := h.versions.Right(); newest != nil && newest.Key > version {
		return false
	}
	h.versions.Put(version, tokens)
	for _, v := range h.versions.Keys() {
		if v >= version {
			break
		}
		h.versions.Remove(v)
	}
	return true
}

// Lookup returns a copy of the tokens cached for exactly this snapshot.
func (c *Cache) Lookup(ctx context.Context, id position.SnapshotID) ([]semtok.Token, bool) {
	h := c.handle(id.URI, false)
	if h == nil {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	tokens, ok := h.versions.Get(id.Version)
	if !ok {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues("hit").Inc()
	return slices.Clone(tokens), true
}

// ApplyEdit derives approximate tokens for version to from the tokens cached
// at version from, without recomputing anything. Edits are applied in order,
// each against the text produced by the previous one.
//
// It reports false when nothing was stored: either from is not cached or the
// batch contains a full replacement. Callers then wait for a full computation.
func (c *Cache) ApplyEdit(ctx context.Context, uri string, from, to int32, edits []position.Edit) bool {
	logger := zerolog.Ctx(ctx).With().Str("uri", uri).Int32("from", from).Int32("to", to).Logger()

	adjusters := make([]Adjuster, 0, len(edits))
	for _, edit := range edits {
		adj, ok := NewAdjuster(edit)
		if !ok {
			cacheIncremental.WithLabelValues("aborted").Inc()
			logger.Debug().Msg("full document replacement, dropping incremental tokens")
			return false
		}
		adjusters = append(adjusters, adj)
	}

	h := c.handle(uri, false)
	if h == nil {
		cacheIncremental.WithLabelValues("missing").Inc()
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, ok := h.versions.Get(from)
	if !ok {
		cacheIncremental.WithLabelValues("missing").Inc()
		logger.Trace().Msg("no cached tokens to adjust")
		return false
	}

	next := make([]semtok.Token, 0, len(prev))
	for _, tok := range prev {
		rng := tok.Range
		kept := true
		for _, adj := range adjusters {
			if rng, kept = adj(rng); !kept {
				break
			}
		}
		if kept {
			next = append(next, semtok.Token{Range: rng, Kind: tok.Kind, Modifiers: tok.Modifiers})
		}
	}

	if !h.store(to, next) {
		cacheIncremental.WithLabelValues("superseded").Inc()
		logger.Trace().Msg("a newer version is already cached")
		return false
	}

	cacheIncremental.WithLabelValues("applied").Inc()
	logger.Trace().Int("kept", len(next)).Int("dropped", len(prev)-len(next)).Msg("adjusted cached tokens")
	return true
}

// Discard forgets every version of a document and starts a new generation
// for it, even when nothing was cached.
func (c *Cache) Discard(ctx context.Context, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[uri]++
	if _, ok := c.docs[uri]; !ok {
		return
	}
	delete(c.docs, uri)
	cacheDocuments.Set(float64(len(c.docs)))
	zerolog.Ctx(ctx).Trace().Str("uri", uri).Msg("discarded cached tokens")
}

// Versions lists the cached versions of a document, oldest first.
func (c *Cache) Versions(uri string) []int32 {
	h := c.handle(uri, false)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.versions.Keys()
}
