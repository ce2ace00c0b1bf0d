package lsp

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/analysis"
	"github.com/walteh/semtokd/pkg/config"
	"github.com/walteh/semtokd/pkg/highlight"
	"github.com/walteh/semtokd/pkg/lsp/protocol"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
	"github.com/walteh/semtokd/pkg/structural"
	"github.com/walteh/semtokd/pkg/tokencache"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/time/rate"
)

const semanticTokensRegistrationID = "semantic-tokens"

// DefaultRefreshTimeout bounds how long the server waits for a client to
// answer workspace/semanticTokens/refresh.
const DefaultRefreshTimeout = 10 * time.Second

// Server represents an LSP server instance
type Server struct {
	// Server identification
	id      string
	version string

	documents   *DocumentManager
	highlighter *highlight.Highlighter
	cfg         *config.Config

	// Collaborators, replaceable for tests
	classifier structural.Classifier
	engine     analysis.Engine

	refresh        *rate.Limiter
	refreshTimeout time.Duration
	forwardLogs    bool

	mu                 sync.Mutex
	clientCapabilities protocol.ClientCapabilities
	shutdown           bool

	// LSP client for notifications
	callbackClient protocol.Client
}

var _ protocol.Server = (*Server)(nil)

type Option func(*Server)

func WithEngine(engine analysis.Engine) Option {
	return func(s *Server) { s.engine = engine }
}

func WithClassifier(c structural.Classifier) Option {
	return func(s *Server) { s.classifier = c }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Server) { s.refreshTimeout = d }
}

// WithLogForwarding sends the server's logs to the client as
// window/logMessage notifications.
func WithLogForwarding() Option {
	return func(s *Server) { s.forwardLogs = true }
}

func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		id:        xid.New().String(),
		documents: NewDocumentManager(),
		cfg:       cfg,
		refresh:   rate.NewLimiter(rate.Limit(cfg.Refresh.PerSecond), cfg.Refresh.Burst),

		refreshTimeout: DefaultRefreshTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.classifier == nil {
		s.classifier = structural.NewRouter()
	}
	if s.engine == nil {
		if cfg.SemanticEnabled() {
			s.engine = analysis.NewGoEngine()
		} else {
			s.engine = analysis.Disabled{}
		}
	}

	s.highlighter = highlight.New(s.documents, s.classifier, s.engine, tokencache.New(), highlight.Options{
		BuildFlags:     cfg.Semantic.BuildFlags,
		MaxRecordDepth: cfg.Semantic.MaxRecordDepth,
		Selected:       cfg.Files.Selected,
		SemanticRecovered: func(ctx context.Context, uri string) {
			zerolog.Ctx(ctx).Debug().Str("uri", uri).Msg("semantic engine recovered")
			s.requestRefresh(ctx)
		},
	})

	zerolog.Ctx(ctx).Debug().Str("server_id", s.id).Bool("semantic", cfg.SemanticEnabled()).Msg("server created")

	return s
}

func (me *Server) SetCallbackClient(client protocol.Client) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.callbackClient = client
}

func (me *Server) Documents() *DocumentManager {
	return me.documents
}

func (me *Server) Highlighter() *highlight.Highlighter {
	return me.highlighter
}

func (s *Server) client() (protocol.Client, protocol.ClientCapabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbackClient, s.clientCapabilities
}

func Legend() protocol.SemanticTokensLegend {
	l := semtok.DefaultLegend()
	return protocol.SemanticTokensLegend{
		TokenTypes:     l.TokenTypes,
		TokenModifiers: l.TokenModifiers,
	}
}

func semanticTokensOptions() protocol.SemanticTokensOptions {
	return protocol.SemanticTokensOptions{
		Legend: Legend(),
		Range:  true,
		Full:   &protocol.SemanticTokensFullOptions{Delta: false},
	}
}

func dynamicRegistration(caps protocol.ClientCapabilities) bool {
	return caps.TextDocument != nil &&
		caps.TextDocument.SemanticTokens != nil &&
		caps.TextDocument.SemanticTokens.DynamicRegistration
}

func refreshSupport(caps protocol.ClientCapabilities) bool {
	return caps.Workspace != nil &&
		caps.Workspace.SemanticTokens != nil &&
		caps.Workspace.SemanticTokens.RefreshSupport
}

func (s *Server) SetTrace(ctx context.Context, params *protocol.SetTraceParams) error {
	zerolog.Ctx(ctx).Debug().Str("trace", params.Value).Msg("trace level changed")
	return nil
}

func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	logger := zerolog.Ctx(ctx)

	s.mu.Lock()
	s.clientCapabilities = params.Capabilities
	s.mu.Unlock()

	evt := logger.Debug().
		Bool("dynamic_registration", dynamicRegistration(params.Capabilities)).
		Bool("refresh_support", refreshSupport(params.Capabilities))
	if params.ClientInfo != nil {
		evt = evt.Str("client", params.ClientInfo.Name).Str("client_version", params.ClientInfo.Version)
	}
	evt.Msg("initializing server")

	caps := protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: true,
			Change:    protocol.SyncIncremental,
		},
	}

	// clients that can register dynamically get the provider in Initialized
	if !dynamicRegistration(params.Capabilities) {
		opts := semanticTokensOptions()
		caps.SemanticTokensProvider = &opts
	}

	return &protocol.InitializeResult{
		Capabilities: caps,
		ServerInfo:   &protocol.ServerInfo{Name: "semtokd", Version: s.version},
	}, nil
}

func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("server initialized")

	client, caps := s.client()
	if !dynamicRegistration(caps) {
		logger.Debug().Msg("client does not support dynamic registration of semantic tokens, using static registration")
		return nil
	}
	if client == nil {
		return errors.New("no callback client available for dynamic registration")
	}

	err := client.RegisterCapability(ctx, &protocol.RegistrationParams{
		Registrations: []protocol.Registration{
			{
				ID:     semanticTokensRegistrationID,
				Method: "textDocument/semanticTokens",
				RegisterOptions: &protocol.SemanticTokensRegistrationOptions{
					SemanticTokensOptions: semanticTokensOptions(),
					DocumentSelector:      []protocol.DocumentFilter{{Scheme: "file"}, {Scheme: "untitled"}},
					ID:                    semanticTokensRegistrationID,
				},
			},
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to register semantic tokens provider")
		return errors.Errorf("registering semantic tokens provider: %w", err)
	}

	logger.Debug().Msg("registered semantic tokens provider")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	zerolog.Ctx(ctx).Debug().Msg("shutdown requested")
	return nil
}

func (s *Server) Exit(ctx context.Context) error {
	s.mu.Lock()
	clean := s.shutdown
	s.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Bool("clean", clean).Msg("exit requested")

	if srv := jrpc2.ServerFromContext(ctx); srv != nil {
		// Stop waits for in-flight handlers, this one included
		go srv.Stop()
	}
	return nil
}

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := params.TextDocument
	// a reopened document may restart its versions below the old ones
	s.highlighter.DidOpen(ctx, string(doc.URI))
	s.documents.Open(ctx, string(doc.URI), doc.LanguageID, doc.Version, doc.Text)

	s.requestRefresh(ctx)
	return nil
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	edits := make([]position.Edit, 0, len(params.ContentChanges))
	for _, change := range params.ContentChanges {
		edit := position.Edit{Text: change.Text}
		if change.Range != nil {
			rng := toRange(*change.Range)
			edit.Range = &rng
		}
		edits = append(edits, edit)
	}

	_, err := s.documents.Change(ctx, uri, params.TextDocument.Version, edits, func(prev, next *position.Snapshot) {
		applied := s.highlighter.DidChange(ctx, uri, prev.ID.Version, next.ID.Version, edits)
		zerolog.Ctx(ctx).Trace().Str("uri", uri).Bool("tokens_carried", applied).Msg("cache updated")
	})
	if err != nil {
		return errors.Errorf("applying change: %w", err)
	}
	return nil
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	if !s.documents.Close(uri) {
		zerolog.Ctx(ctx).Debug().Str("uri", uri).Msg("closing a document that was not open")
	}
	s.highlighter.DidClose(ctx, uri)
	return nil
}

func (s *Server) SemanticTokensFull(ctx context.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	res, err := s.highlighter.Full(ctx, string(params.TextDocument.URI))
	if err != nil {
		return nil, s.requestError(ctx, err)
	}

	zerolog.Ctx(ctx).Debug().Int("token_count", len(res.Data)/5).Msg("semantic tokens computed")

	return toSemanticTokens(res), nil
}

func (s *Server) SemanticTokensFullDelta(ctx context.Context, params *protocol.SemanticTokensDeltaParams) (any, error) {
	_, err := s.highlighter.Delta(ctx, string(params.TextDocument.URI), params.PreviousResultID)
	if errors.Is(err, highlight.ErrDeltaUnsupported) {
		return nil, nil
	}
	if err != nil {
		return nil, s.requestError(ctx, err)
	}
	return nil, nil
}

func (s *Server) SemanticTokensRange(ctx context.Context, params *protocol.SemanticTokensRangeParams) (*protocol.SemanticTokens, error) {
	res, err := s.highlighter.Range(ctx, string(params.TextDocument.URI), toRange(params.Range))
	if err != nil {
		return nil, s.requestError(ctx, err)
	}
	return toSemanticTokens(res), nil
}

func (s *Server) requestError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return protocol.RequestCancelledError
	}
	zerolog.Ctx(ctx).Debug().Err(err).Msg("semantic token request failed")
	return err
}

// requestRefresh asks the client to re-request semantic tokens, at most as
// often as the configured rate allows. It does not wait for the answer.
func (s *Server) requestRefresh(ctx context.Context) {
	logger := zerolog.Ctx(ctx)

	client, caps := s.client()
	if client == nil || !refreshSupport(caps) {
		return
	}
	if !s.refresh.Allow() {
		logger.Debug().Msg("semantic token refresh throttled")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
	go func() {
		defer cancel()
		if err := client.SemanticTokensRefresh(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to refresh semantic tokens")
		}
	}()
}

func toSemanticTokens(res *highlight.Result) *protocol.SemanticTokens {
	return &protocol.SemanticTokens{
		ResultID: res.ResultID,
		Data:     protocol.NonNilSlice(res.Data),
	}
}

func toRange(r protocol.Range) position.Range {
	return position.NewRange(int(r.Start.Line), int(r.Start.Character), int(r.End.Line), int(r.End.Character))
}
