// Package analysis adapts semantic analysis engines to the classification
// record format. Engines may decline to answer (fallback mode); callers then
// highlight from structure alone.
package analysis

import (
	"context"

	"github.com/walteh/semtokd/pkg/classify"
	"github.com/walteh/semtokd/pkg/position"
	"gitlab.com/tozd/go/errors"
)

var ErrUnavailable = errors.Base("semantic analysis unavailable")

// Engine classifies a snapshot. Returning a Response with Unavailable set is
// not an error: it means the engine is in fallback mode for this document.
type Engine interface {
	Classify(ctx context.Context, snap *position.Snapshot, buildFlags []string) (*classify.Response, error)
}

// Records asks eng for records and folds fallback mode into ErrUnavailable so
// callers deal with one error path.
func Records(ctx context.Context, eng Engine, snap *position.Snapshot, buildFlags []string) ([]classify.Record, error) {
	if eng == nil {
		return nil, errors.Errorf("no engine: %w", ErrUnavailable)
	}
	resp, err := eng.Classify(ctx, snap, buildFlags)
	if err != nil {
		return nil, errors.Errorf("classifying %s: %w", snap.ID.URI, err)
	}
	if resp == nil || resp.Unavailable {
		return nil, errors.Errorf("%s: %w", snap.ID.URI, ErrUnavailable)
	}
	return resp.Records, nil
}

// Disabled is the engine used when semantic highlighting is switched off.
type Disabled struct{}

func (Disabled) Classify(context.Context, *position.Snapshot, []string) (*classify.Response, error) {
	return &classify.Response{Unavailable: true}, nil
}
