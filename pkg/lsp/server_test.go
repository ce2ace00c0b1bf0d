package lsp_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/semtokd/pkg/classify"
	"github.com/walteh/semtokd/pkg/config"
	"github.com/walteh/semtokd/pkg/lsp"
	"github.com/walteh/semtokd/pkg/lsp/protocol"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
)

// wordClassifier highlights space separated words: "let" is a keyword, "=" an
// operator, digits a number and anything else a variable.
type wordClassifier struct {
	calls atomic.Int32
}

func (w *wordClassifier) Classify(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	w.calls.Add(1)

	var out []semtok.Token
	for line := 0; line < snap.LineCount(); line++ {
		text, err := snap.LineText(line)
		if err != nil {
			return nil, err
		}
		col := 0
		for _, word := range strings.Split(text, " ") {
			if word != "" {
				out = append(out, semtok.Token{
					Range: position.NewRange(line, col, line, col+len(word)),
					Kind:  wordKind(word),
				})
			}
			col += len(word) + 1
		}
	}
	return out, nil
}

func wordKind(word string) semtok.Kind {
	switch {
	case word == "let":
		return semtok.KindKeyword
	case word == "=":
		return semtok.KindOperator
	case strings.Trim(word, "0123456789") == "":
		return semtok.KindNumber
	default:
		return semtok.KindVariable
	}
}

// toggleEngine stays in fallback mode until it is switched on.
type toggleEngine struct {
	available atomic.Bool
	records   []classify.Record
}

func (e *toggleEngine) Classify(context.Context, *position.Snapshot, []string) (*classify.Response, error) {
	if !e.available.Load() {
		return &classify.Response{Unavailable: true}, nil
	}
	return &classify.Response{Records: e.records}, nil
}

type recorder struct {
	mu        sync.Mutex
	callbacks []string
	params    map[string]json.RawMessage
	logs      []protocol.LogMessageParams
}

func (r *recorder) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.callbacks {
		if m == method {
			n++
		}
	}
	return n
}

func (r *recorder) clientOptions() *jrpc2.ClientOptions {
	return &jrpc2.ClientOptions{
		OnCallback: func(ctx context.Context, req *jrpc2.Request) (any, error) {
			var raw json.RawMessage
			if req.HasParams() {
				if err := req.UnmarshalParams(&raw); err != nil {
					return nil, err
				}
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			r.callbacks = append(r.callbacks, req.Method())
			r.params[req.Method()] = raw
			return nil, nil
		},
		OnNotify: func(req *jrpc2.Request) {
			if req.Method() != "window/logMessage" {
				return
			}
			var msg protocol.LogMessageParams
			if err := req.UnmarshalParams(&msg); err != nil {
				return
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			r.logs = append(r.logs, msg)
		},
	}
}

type harness struct {
	ctx        context.Context
	cli        *jrpc2.Client
	rec        *recorder
	classifier *wordClassifier
	engine     *toggleEngine
}

func newHarness(t *testing.T, opts ...lsp.Option) *harness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	ctx = zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).WithContext(ctx)

	cfg := config.Default()
	cfg.Refresh.PerSecond = 1000
	cfg.Refresh.Burst = 100

	h := &harness{
		ctx:        ctx,
		rec:        &recorder{params: map[string]json.RawMessage{}},
		classifier: &wordClassifier{},
		engine: &toggleEngine{records: []classify.Record{
			{Offset: 4, Length: 2, KindID: classify.KindIDDeclGlobal},
		}},
	}

	opts = append([]lsp.Option{lsp.WithClassifier(h.classifier), lsp.WithEngine(h.engine), lsp.WithVersion("test")}, opts...)
	server := lsp.NewServer(ctx, cfg, opts...)
	instance := server.BuildServerInstance(ctx, &jrpc2.ServerOptions{RPCLog: &protocol.RPCLogger{}})

	cch, sch := channel.Direct()
	instance.Start(sch)
	t.Cleanup(instance.Stop)

	h.cli = jrpc2.NewClient(cch, h.rec.clientOptions())
	t.Cleanup(func() { h.cli.Close() })

	return h
}

func (h *harness) initialize(t *testing.T, dynamic bool) *protocol.InitializeResult {
	t.Helper()

	var res protocol.InitializeResult
	require.NoError(t, h.cli.CallResult(h.ctx, "initialize", &protocol.InitializeParams{
		ClientInfo: &protocol.ClientInfo{Name: "test-client"},
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				SemanticTokens: &protocol.SemanticTokensClientCapabilities{DynamicRegistration: dynamic},
			},
			Workspace: &protocol.WorkspaceClientCapabilities{
				SemanticTokens: &protocol.SemanticTokensWorkspaceClientCapabilities{RefreshSupport: true},
			},
		},
	}, &res))
	require.NoError(t, h.cli.Notify(h.ctx, "initialized", &protocol.InitializedParams{}))
	return &res
}

func (h *harness) full(t *testing.T, uri string) []uint32 {
	t.Helper()
	var res protocol.SemanticTokens
	require.NoError(t, h.cli.CallResult(h.ctx, "textDocument/semanticTokens/full", &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	}, &res))
	assert.NotEmpty(t, res.ResultID)
	return res.Data
}

func data(tokens ...[]uint32) []uint32 {
	var out []uint32
	for _, t := range tokens {
		out = append(out, t...)
	}
	return out
}

func TestStaticRegistration(t *testing.T) {
	h := newHarness(t)
	res := h.initialize(t, false)

	require.NotNil(t, res.Capabilities.SemanticTokensProvider)
	assert.Equal(t, semtok.KindNames, res.Capabilities.SemanticTokensProvider.Legend.TokenTypes)
	assert.Equal(t, semtok.ModifierNames, res.Capabilities.SemanticTokensProvider.Legend.TokenModifiers)
	assert.True(t, res.Capabilities.SemanticTokensProvider.Range)
	assert.False(t, res.Capabilities.SemanticTokensProvider.Full.Delta)
	assert.Equal(t, protocol.SyncIncremental, res.Capabilities.TextDocumentSync.Change)
	assert.Equal(t, "semtokd", res.ServerInfo.Name)

	// a request after the notification is handled after it
	_, err := h.cli.Call(h.ctx, "shutdown", nil)
	require.NoError(t, err)
	assert.Zero(t, h.rec.count("client/registerCapability"))
}

func TestDynamicRegistration(t *testing.T) {
	h := newHarness(t)
	res := h.initialize(t, true)
	assert.Nil(t, res.Capabilities.SemanticTokensProvider)

	require.Eventually(t, func() bool {
		return h.rec.count("client/registerCapability") == 1
	}, 5*time.Second, 10*time.Millisecond)

	h.rec.mu.Lock()
	raw := h.rec.params["client/registerCapability"]
	h.rec.mu.Unlock()

	var params struct {
		Registrations []struct {
			Method          string `json:"method"`
			RegisterOptions struct {
				Legend protocol.SemanticTokensLegend `json:"legend"`
				Range  bool                          `json:"range"`
			} `json:"registerOptions"`
		} `json:"registrations"`
	}
	require.NoError(t, json.Unmarshal(raw, &params))
	require.Len(t, params.Registrations, 1)
	assert.Equal(t, "textDocument/semanticTokens", params.Registrations[0].Method)
	assert.Equal(t, semtok.KindNames, params.Registrations[0].RegisterOptions.Legend.TokenTypes)
	assert.True(t, params.Registrations[0].RegisterOptions.Range)
}

func TestDocumentLifecycle(t *testing.T) {
	const uri = "file:///work/a.txt"

	h := newHarness(t)
	h.initialize(t, false)

	require.NoError(t, h.cli.Notify(h.ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "plaintext", Version: 1, Text: "let x = 1"},
	}))

	keyword := []uint32{0, 0, 3, uint32(semtok.KindKeyword), 0}

	assert.Equal(t, data(
		keyword,
		[]uint32{0, 4, 1, uint32(semtok.KindVariable), 0},
		[]uint32{0, 2, 1, uint32(semtok.KindOperator), 0},
		[]uint32{0, 2, 1, uint32(semtok.KindNumber), 0},
	), h.full(t, uri), "engine in fallback mode, structural tokens only")
	assert.Equal(t, int32(1), h.classifier.calls.Load())

	require.Eventually(t, func() bool {
		return h.rec.count("workspace/semanticTokens/refresh") == 1
	}, 5*time.Second, 10*time.Millisecond, "opening a document asks for a refresh")

	t.Run("range is served from tokens carried across the edit", func(t *testing.T) {
		rng := protocol.Range{Start: protocol.Position{Line: 0, Character: 5}, End: protocol.Position{Line: 0, Character: 5}}
		require.NoError(t, h.cli.Notify(h.ctx, "textDocument/didChange", &protocol.DidChangeTextDocumentParams{
			TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: uri, Version: 2},
			ContentChanges: []protocol.TextDocumentContentChangeEvent{{Range: &rng, Text: "y"}},
		}))

		var res protocol.SemanticTokens
		require.NoError(t, h.cli.CallResult(h.ctx, "textDocument/semanticTokens/range", &protocol.SemanticTokensRangeParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Range:        protocol.Range{End: protocol.Position{Line: 0, Character: 20}},
		}, &res))

		assert.Equal(t, data(
			keyword,
			[]uint32{0, 4, 1, uint32(semtok.KindVariable), 0},
			[]uint32{0, 3, 1, uint32(semtok.KindOperator), 0},
			[]uint32{0, 2, 1, uint32(semtok.KindNumber), 0},
		), res.Data)
		assert.Equal(t, int32(1), h.classifier.calls.Load(), "no recomputation")
	})

	t.Run("semantic tokens win once the engine recovers", func(t *testing.T) {
		h.engine.available.Store(true)

		assert.Equal(t, data(
			keyword,
			[]uint32{0, 4, 2, uint32(semtok.KindVariable), uint32(semtok.ModDeclaration)},
			[]uint32{0, 3, 1, uint32(semtok.KindOperator), 0},
			[]uint32{0, 2, 1, uint32(semtok.KindNumber), 0},
		), h.full(t, uri))

		require.Eventually(t, func() bool {
			return h.rec.count("workspace/semanticTokens/refresh") == 2
		}, 5*time.Second, 10*time.Millisecond, "recovery asks for a refresh")
	})

	t.Run("delta answers null", func(t *testing.T) {
		res, err := h.cli.Call(h.ctx, "textDocument/semanticTokens/full/delta", &protocol.SemanticTokensDeltaParams{
			TextDocument:     protocol.TextDocumentIdentifier{URI: uri},
			PreviousResultID: "anything",
		})
		require.NoError(t, err)
		var v any
		require.NoError(t, res.UnmarshalResult(&v))
		assert.Nil(t, v)
	})

	t.Run("closed documents are not found", func(t *testing.T) {
		require.NoError(t, h.cli.Notify(h.ctx, "textDocument/didClose", &protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		}))

		_, err := h.cli.Call(h.ctx, "textDocument/semanticTokens/full", &protocol.SemanticTokensParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		})
		require.Error(t, err)
	})
}

func TestLogForwarding(t *testing.T) {
	h := newHarness(t, lsp.WithLogForwarding())
	h.initialize(t, false)

	require.NoError(t, h.cli.Notify(h.ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///work/b.txt", Version: 1, Text: "let"},
	}))

	require.Eventually(t, func() bool {
		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		for _, msg := range h.rec.logs {
			if msg.Message == "document opened" && !msg.IsDependency {
				return msg.Extra["uri"] == "file:///work/b.txt"
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNotSelected(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	cfg := config.Default()
	cfg.Files.Include = []string{"**/*.go"}

	classifier := &wordClassifier{}
	server := lsp.NewServer(ctx, cfg, lsp.WithClassifier(classifier), lsp.WithEngine(&toggleEngine{}))

	require.NoError(t, server.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///work/notes.txt", Version: 1, Text: "let x = 1"},
	}))

	res, err := server.SemanticTokensFull(ctx, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///work/notes.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{}, res.Data)
	assert.Zero(t, classifier.calls.Load())
}

func TestCancelledRequest(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	server := lsp.NewServer(ctx, nil, lsp.WithClassifier(&wordClassifier{}), lsp.WithEngine(&toggleEngine{}))

	require.NoError(t, server.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///work/c.txt", Version: 1, Text: "let"},
	}))

	cctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err := server.SemanticTokensFull(cctx, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///work/c.txt"},
	})
	assert.Equal(t, protocol.RequestCancelledError, err)

	_, ok := server.Highlighter().Cache().Lookup(ctx, position.SnapshotID{URI: "file:///work/c.txt", Version: 1})
	assert.False(t, ok)
}

// gatedClassifier is a wordClassifier that holds calls while the gate is shut.
type gatedClassifier struct {
	wordClassifier
	shut    atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedClassifier() *gatedClassifier {
	return &gatedClassifier{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedClassifier) Classify(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	if g.shut.Load() {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.wordClassifier.Classify(ctx, snap)
}

func TestReopenWhileRequestInFlight(t *testing.T) {
	const uri = "file:///work/d.txt"
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	classifier := newGatedClassifier()
	server := lsp.NewServer(ctx, nil, lsp.WithClassifier(classifier), lsp.WithEngine(&toggleEngine{}))
	cache := server.Highlighter().Cache()

	open := func(version int32) {
		require.NoError(t, server.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{URI: uri, Version: version, Text: "let x = 1"},
		}))
	}
	full := func() error {
		_, err := server.SemanticTokensFull(ctx, &protocol.SemanticTokensParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		})
		return err
	}

	open(7)
	classifier.shut.Store(true)

	done := make(chan error, 1)
	go func() { done <- full() }()
	<-classifier.entered

	require.NoError(t, server.DidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	open(1)

	classifier.shut.Store(false)
	close(classifier.release)
	require.NoError(t, <-done)
	assert.Empty(t, cache.Versions(uri), "tokens of the closed session must not come back")

	require.NoError(t, full())
	assert.Equal(t, []int32{1}, cache.Versions(uri))

	rng := protocol.Range{Start: protocol.Position{Line: 0, Character: 5}, End: protocol.Position{Line: 0, Character: 5}}
	require.NoError(t, server.DidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Range: &rng, Text: "y"}},
	}))
	assert.Equal(t, []int32{2}, cache.Versions(uri), "edits are carried in the new session")
}

// silentClient never answers a refresh; it reports how the wait ended.
type silentClient struct {
	ended chan error
}

func (c *silentClient) RegisterCapability(context.Context, *protocol.RegistrationParams) error {
	return nil
}

func (c *silentClient) LogMessage(context.Context, *protocol.LogMessageParams) error {
	return nil
}

func (c *silentClient) SemanticTokensRefresh(ctx context.Context) error {
	<-ctx.Done()
	c.ended <- ctx.Err()
	return ctx.Err()
}

func TestRefreshGivesUp(t *testing.T) {
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	server := lsp.NewServer(ctx, nil,
		lsp.WithClassifier(&wordClassifier{}),
		lsp.WithEngine(&toggleEngine{}),
		lsp.WithRefreshTimeout(20*time.Millisecond),
	)
	client := &silentClient{ended: make(chan error, 1)}
	server.SetCallbackClient(client)

	_, err := server.Initialize(ctx, &protocol.InitializeParams{
		Capabilities: protocol.ClientCapabilities{
			Workspace: &protocol.WorkspaceClientCapabilities{
				SemanticTokens: &protocol.SemanticTokensWorkspaceClientCapabilities{RefreshSupport: true},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, server.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///work/e.txt", Version: 1, Text: "let"},
	}))

	select {
	case err := <-client.ended:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh still waiting on the client")
	}
}
