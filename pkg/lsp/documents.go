package lsp

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/position"
	"gitlab.com/tozd/go/errors"
)

var ErrStaleVersion = errors.Base("document version is older than the current one")

// Document is one open text document. Its snapshot is replaced, never
// mutated, so readers can hold on to the one they got.
type Document struct {
	mu         sync.Mutex
	LanguageID string
	snap       *position.Snapshot
}

func (d *Document) Snapshot() *position.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// DocumentManager holds the open documents. Changes to one document are
// serialized; different documents never wait on each other.
type DocumentManager struct {
	store *sync.Map // map[string]*Document
}

func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		store: &sync.Map{},
	}
}

// Open replaces whatever was known about uri.
func (m *DocumentManager) Open(ctx context.Context, uri, languageID string, version int32, text string) *position.Snapshot {
	snap := position.NewSnapshot(uri, version, text)
	m.store.Store(uri, &Document{LanguageID: languageID, snap: snap})

	zerolog.Ctx(ctx).Debug().Str("uri", uri).Int32("version", version).Int("bytes", len(text)).Msg("document opened")

	return snap
}

func (m *DocumentManager) Get(uri string) (*Document, bool) {
	doc, ok := m.store.Load(uri)
	if !ok {
		return nil, false
	}
	return doc.(*Document), true
}

// Snapshot returns the current snapshot of uri.
func (m *DocumentManager) Snapshot(uri string) (*position.Snapshot, bool) {
	doc, ok := m.Get(uri)
	if !ok {
		return nil, false
	}
	return doc.Snapshot(), true
}

// Change applies edits in order to produce version. onChange runs with the
// document locked, so it sees transitions for one document in order.
func (m *DocumentManager) Change(ctx context.Context, uri string, version int32, edits []position.Edit, onChange func(prev, next *position.Snapshot)) (*position.Snapshot, error) {
	doc, ok := m.Get(uri)
	if !ok {
		return nil, errors.Errorf("changing %s: document not open", uri)
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()

	prev := doc.snap
	if version < prev.ID.Version {
		return nil, errors.Errorf("changing %s to version %d, have %d: %w", uri, version, prev.ID.Version, ErrStaleVersion)
	}

	next, err := prev.Apply(ctx, version, edits)
	if err != nil {
		return nil, errors.Errorf("changing %s: %w", uri, err)
	}
	doc.snap = next

	zerolog.Ctx(ctx).Debug().
		Str("uri", uri).
		Int32("from", prev.ID.Version).
		Int32("to", next.ID.Version).
		Int("edits", len(edits)).
		Msg("document changed")

	if onChange != nil {
		onChange(prev, next)
	}

	return next, nil
}

// Close forgets uri and reports whether it was open.
func (m *DocumentManager) Close(uri string) bool {
	_, ok := m.store.LoadAndDelete(uri)
	return ok
}
