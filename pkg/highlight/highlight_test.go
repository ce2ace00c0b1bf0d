package highlight_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/semtokd/pkg/analysis"
	"github.com/walteh/semtokd/pkg/classify"
	"github.com/walteh/semtokd/pkg/highlight"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
	"github.com/walteh/semtokd/pkg/tokencache"
	"gitlab.com/tozd/go/errors"
)

const uri = "file:///work/main.js"

func tok(line, start, end int, kind semtok.Kind, mods semtok.Modifiers) semtok.Token {
	return semtok.Token{Range: position.NewRange(line, start, line, end), Kind: kind, Modifiers: mods}
}

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

var letSyntactic = []semtok.Token{
	tok(0, 0, 3, semtok.KindKeyword, semtok.ModNone),
	tok(0, 4, 5, semtok.KindVariable, semtok.ModNone),
	tok(0, 8, 9, semtok.KindNumber, semtok.ModNone),
}

func TestFull(t *testing.T) {
	tests := []struct {
		name     string
		engine   func(m *MockEngine)
		wantData []uint32
	}{
		{
			name: "semantic property replaces syntactic variable",
			engine: func(m *MockEngine) {
				m.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return(&classify.Response{
					Records: []classify.Record{{Offset: 4, Length: 1, KindID: classify.KindIDRefField}},
				}, nil)
			},
			wantData: []uint32{
				0, 0, 3, uint32(semtok.KindKeyword), 0,
				0, 4, 1, uint32(semtok.KindProperty), 0,
				0, 4, 1, uint32(semtok.KindNumber), 0,
			},
		},
		{
			name: "fallback mode withholds semantic tokens",
			engine: func(m *MockEngine) {
				m.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return(&classify.Response{Unavailable: true}, nil)
			},
			wantData: []uint32{
				0, 0, 3, uint32(semtok.KindKeyword), 0,
				0, 4, 1, uint32(semtok.KindVariable), 0,
				0, 4, 1, uint32(semtok.KindNumber), 0,
			},
		},
		{
			name: "engine failure degrades to structural tokens",
			engine: func(m *MockEngine) {
				m.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("engine crashed"))
			},
			wantData: []uint32{
				0, 0, 3, uint32(semtok.KindKeyword), 0,
				0, 4, 1, uint32(semtok.KindVariable), 0,
				0, 4, 1, uint32(semtok.KindNumber), 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			snap := position.NewSnapshot(uri, 1, "let x = 1")

			sc := &MockClassifier{}
			sc.On("Classify", mock.Anything, snap).Return(letSyntactic, nil)
			eng := &MockEngine{}
			tt.engine(eng)

			h := highlight.New(newDocuments(snap), sc, eng, tokencache.New(), highlight.Options{})
			res, err := h.Full(ctx, uri)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, res.Data)
			assert.NotEmpty(t, res.ResultID)

			_, cached := h.Cache().Lookup(ctx, snap.ID)
			assert.True(t, cached)

			sc.AssertExpectations(t)
			eng.AssertExpectations(t)
		})
	}
}

func TestFullBuildFlags(t *testing.T) {
	ctx := testContext(t)
	snap := position.NewSnapshot(uri, 1, "let x = 1")

	sc := &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).Return(letSyntactic, nil)
	eng := &MockEngine{}
	eng.On("Classify", mock.Anything, snap, []string{"-tags=integration"}).Return(&classify.Response{}, nil)

	h := highlight.New(newDocuments(snap), sc, eng, nil, highlight.Options{BuildFlags: []string{"-tags=integration"}})
	_, err := h.Full(ctx, uri)
	require.NoError(t, err)
	eng.AssertExpectations(t)
}

func TestUnknownDocument(t *testing.T) {
	ctx := testContext(t)
	h := highlight.New(newDocuments(), &MockClassifier{}, &MockEngine{}, nil, highlight.Options{})

	_, err := h.Full(ctx, "file:///nope.js")
	require.ErrorIs(t, err, highlight.ErrDocumentNotFound)

	_, err = h.Range(ctx, "file:///nope.js", position.NewRange(0, 0, 1, 0))
	require.ErrorIs(t, err, highlight.ErrDocumentNotFound)
}

func TestDelta(t *testing.T) {
	h := highlight.New(newDocuments(), &MockClassifier{}, nil, nil, highlight.Options{})
	res, err := h.Delta(testContext(t), uri, "previous")
	require.ErrorIs(t, err, highlight.ErrDeltaUnsupported)
	assert.Nil(t, res)
}

func TestRange(t *testing.T) {
	ctx := testContext(t)
	snap := position.NewSnapshot(uri, 1, "let x = 1\nlet y = 2")
	syntactic := append(append([]semtok.Token(nil), letSyntactic...),
		tok(1, 0, 3, semtok.KindKeyword, semtok.ModNone),
		tok(1, 4, 5, semtok.KindVariable, semtok.ModNone),
	)

	sc := &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).Return(syntactic, nil)

	h := highlight.New(newDocuments(snap), sc, analysis.Disabled{}, nil, highlight.Options{})

	res, err := h.Range(ctx, uri, position.NewRange(1, 0, 1, 3))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 0, 3, uint32(semtok.KindKeyword), 0}, res.Data)

	// the second range request is served from the cache
	res, err = h.Range(ctx, uri, position.NewRange(0, 2, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, []uint32{
		0, 0, 3, uint32(semtok.KindKeyword), 0,
		0, 4, 1, uint32(semtok.KindVariable), 0,
	}, res.Data)
	sc.AssertNumberOfCalls(t, "Classify", 1)
}

func TestRangeUsesAdjustedTokens(t *testing.T) {
	ctx := testContext(t)
	v1 := position.NewSnapshot(uri, 1, "let x = 1")
	docs := newDocuments(v1)

	sc := &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).Return(letSyntactic, nil)
	h := highlight.New(docs, sc, analysis.Disabled{}, nil, highlight.Options{})

	_, err := h.Full(ctx, uri)
	require.NoError(t, err)

	insert := position.NewRange(0, 4, 0, 4)
	edits := []position.Edit{{Range: &insert, Text: "a"}}
	v2, err := v1.Apply(ctx, 2, edits)
	require.NoError(t, err)
	docs.set(v2)
	require.True(t, h.DidChange(ctx, uri, 1, 2, edits))

	res, err := h.Range(ctx, uri, position.NewRange(0, 0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, []uint32{
		0, 0, 3, uint32(semtok.KindKeyword), 0,
		0, 5, 1, uint32(semtok.KindVariable), 0,
		0, 4, 1, uint32(semtok.KindNumber), 0,
	}, res.Data)
	sc.AssertNumberOfCalls(t, "Classify", 1)
}

func TestDidClose(t *testing.T) {
	ctx := testContext(t)
	snap := position.NewSnapshot(uri, 1, "let x = 1")

	sc := &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).Return(letSyntactic, nil)
	h := highlight.New(newDocuments(snap), sc, nil, nil, highlight.Options{})

	_, err := h.Full(ctx, uri)
	require.NoError(t, err)

	h.DidClose(ctx, uri)
	_, ok := h.Cache().Lookup(ctx, snap.ID)
	assert.False(t, ok)
}

func TestCancelledRequestLeavesCacheAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	snap := position.NewSnapshot(uri, 1, "let x = 1")

	sc := &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).Return(letSyntactic, nil)
	eng := &MockEngine{}
	eng.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	h := highlight.New(newDocuments(snap), sc, eng, nil, highlight.Options{})
	_, err := h.Full(ctx, uri)
	require.ErrorIs(t, err, context.Canceled)

	_, ok := h.Cache().Lookup(context.Background(), snap.ID)
	assert.False(t, ok)
}

func TestNotSelected(t *testing.T) {
	ctx := testContext(t)
	snap := position.NewSnapshot(uri, 1, "let x = 1")

	sc := &MockClassifier{}
	h := highlight.New(newDocuments(snap), sc, nil, nil, highlight.Options{
		Selected: func(string) bool { return false },
	})

	res, err := h.Full(ctx, uri)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	sc.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestMultiLineTokenIsAnInternalFault(t *testing.T) {
	ctx := testContext(t)
	snap := position.NewSnapshot(uri, 1, "/*\n*/")

	sc := &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).Return([]semtok.Token{
		{Range: position.NewRange(0, 0, 1, 2), Kind: semtok.KindComment},
	}, nil)
	h := highlight.New(newDocuments(snap), sc, nil, nil, highlight.Options{})

	_, err := h.Full(ctx, uri)
	require.ErrorIs(t, err, semtok.ErrMultiLine)
}

func TestSemanticRecovered(t *testing.T) {
	ctx := testContext(t)
	snap := position.NewSnapshot(uri, 1, "let x = 1")

	sc := &MockClassifier{}
	sc.On("Classify", mock.Anything, mock.Anything).Return(letSyntactic, nil)
	eng := &MockEngine{}
	eng.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return(&classify.Response{Unavailable: true}, nil).Once()
	eng.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return(&classify.Response{}, nil)

	var recovered []string
	h := highlight.New(newDocuments(snap), sc, eng, nil, highlight.Options{
		SemanticRecovered: func(_ context.Context, uri string) { recovered = append(recovered, uri) },
	})

	for i := 0; i < 3; i++ {
		_, err := h.Full(ctx, uri)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{uri}, recovered)
}

func TestCloseDuringFull(t *testing.T) {
	ctx := testContext(t)
	v5 := position.NewSnapshot(uri, 5, "let x = 1")
	docs := newDocuments(v5)

	sc, entered, release := blockingClassifier(letSyntactic)
	h := highlight.New(docs, sc, analysis.Disabled{}, nil, highlight.Options{})

	done := make(chan error, 1)
	go func() {
		_, err := h.Full(ctx, uri)
		done <- err
	}()

	<-entered
	docs.remove(uri)
	h.DidClose(ctx, uri)
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, h.Cache().Versions(uri), "a closed document keeps nothing cached")
	_, ok := h.Cache().Lookup(ctx, v5.ID)
	assert.False(t, ok)

	t.Run("reopen with lower versions caches again", func(t *testing.T) {
		v1 := position.NewSnapshot(uri, 1, "let x = 1")
		docs.set(v1)
		h.DidOpen(ctx, uri)

		_, err := h.Full(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, []int32{1}, h.Cache().Versions(uri))

		insert := position.NewRange(0, 5, 0, 5)
		edits := []position.Edit{{Range: &insert, Text: "y"}}
		v2, err := v1.Apply(ctx, 2, edits)
		require.NoError(t, err)
		docs.set(v2)
		require.True(t, h.DidChange(ctx, uri, 1, 2, edits))
		assert.Equal(t, []int32{2}, h.Cache().Versions(uri))
	})
}

func TestOpenDuringFull(t *testing.T) {
	ctx := testContext(t)
	v5 := position.NewSnapshot(uri, 5, "let x = 1")
	docs := newDocuments(v5)

	sc, entered, release := blockingClassifier(letSyntactic)
	h := highlight.New(docs, sc, analysis.Disabled{}, nil, highlight.Options{})

	done := make(chan error, 1)
	go func() {
		_, err := h.Range(ctx, uri, position.NewRange(0, 0, 0, 9))
		done <- err
	}()

	// close and reopen land while the old session is still computing
	<-entered
	docs.remove(uri)
	h.DidClose(ctx, uri)
	docs.set(position.NewSnapshot(uri, 1, "let x = 1"))
	h.DidOpen(ctx, uri)
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, h.Cache().Versions(uri))
}

func TestChangeDuringFull(t *testing.T) {
	ctx := testContext(t)
	v4 := position.NewSnapshot(uri, 4, "let x = 1")
	docs := newDocuments(v4)

	sc, entered, release := blockingClassifier(letSyntactic)
	h := highlight.New(docs, sc, analysis.Disabled{}, nil, highlight.Options{})
	h.Cache().Store(ctx, v4.ID, letSyntactic)

	done := make(chan error, 1)
	go func() {
		_, err := h.Full(ctx, uri)
		done <- err
	}()

	<-entered
	insert := position.NewRange(0, 0, 0, 0)
	edits := []position.Edit{{Range: &insert, Text: " "}}
	v5, err := v4.Apply(ctx, 5, edits)
	require.NoError(t, err)
	docs.set(v5)
	require.True(t, h.DidChange(ctx, uri, 4, 5, edits))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []int32{5}, h.Cache().Versions(uri), "the late store for v4 must not replace v5")
	got, ok := h.Cache().Lookup(ctx, v5.ID)
	require.True(t, ok)
	assert.Equal(t, []semtok.Token{
		tok(0, 1, 4, semtok.KindKeyword, semtok.ModNone),
		tok(0, 5, 6, semtok.KindVariable, semtok.ModNone),
		tok(0, 9, 10, semtok.KindNumber, semtok.ModNone),
	}, got)

	h.DidClose(ctx, uri)
	assert.Empty(t, h.Cache().Versions(uri))
}
