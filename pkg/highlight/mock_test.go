package highlight_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/walteh/semtokd/pkg/classify"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
)

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	args := m.Called(ctx, snap)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]semtok.Token), args.Error(1)
}

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Classify(ctx context.Context, snap *position.Snapshot, buildFlags []string) (*classify.Response, error) {
	args := m.Called(ctx, snap, buildFlags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classify.Response), args.Error(1)
}

type documents struct {
	mu    sync.Mutex
	snaps map[string]*position.Snapshot
}

func newDocuments(snaps ...*position.Snapshot) *documents {
	d := &documents{snaps: map[string]*position.Snapshot{}}
	for _, s := range snaps {
		d.snaps[s.ID.URI] = s
	}
	return d
}

func (d *documents) Snapshot(uri string) (*position.Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.snaps[uri]
	return s, ok
}

func (d *documents) set(s *position.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snaps[s.ID.URI] = s
}

func (d *documents) remove(uri string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.snaps, uri)
}

// blockingClassifier holds every Classify call until release is closed.
func blockingClassifier(tokens []semtok.Token) (sc *MockClassifier, entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{}, 1)
	release = make(chan struct{})
	sc = &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			entered <- struct{}{}
			<-release
		}).
		Return(tokens, nil)
	return sc, entered, release
}
