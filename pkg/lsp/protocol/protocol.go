package protocol

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/zerolog"
)

var RequestCancelledError = &jrpc2.Error{Code: -32800, Message: "JSON RPC cancelled"}

type Callbacker interface {
	Callback(ctx context.Context, method string, params any) (*jrpc2.Response, error)
	Notify(ctx context.Context, method string, params any) error
}

// CallbackClient sends server-initiated messages back over the connection the
// server is serving.
type CallbackClient struct {
	serverOpts *jrpc2.ServerOptions
	client     *jrpc2.Server
}

var _ Client = (*CallbackClient)(nil)

func NewCallbackClient(server *jrpc2.Server, serverOpts *jrpc2.ServerOptions) *CallbackClient {
	return &CallbackClient{client: server, serverOpts: serverOpts}
}

func (c *CallbackClient) Notify(ctx context.Context, method string, params any) error {
	return c.client.Notify(ctx, method, params)
}

func (c *CallbackClient) Callback(ctx context.Context, method string, params any) (*jrpc2.Response, error) {
	if rl, ok := c.serverOpts.RPCLog.(*RPCLogger); ok {
		rl.LogCallback(ctx, method)
	}
	return c.client.Callback(ctx, method, params)
}

// Handlers wraps a method map with LSP request cancellation.
func Handlers(methods handler.Map) handler.Map {
	methods["$/cancelRequest"] = handler.New(func(ctx context.Context, req *jrpc2.Request) (any, error) {
		var params CancelParams
		if err := req.UnmarshalParams(&params); err != nil {
			return nil, newParseError(err)
		}
		id := strings.Trim(string(params.ID), `"`)
		if srv := jrpc2.ServerFromContext(ctx); srv != nil && id != "" {
			zerolog.Ctx(ctx).Debug().Str("cancelled_id", id).Msg("cancelling request")
			srv.CancelRequest(id)
		}
		return nil, nil
	})
	return methods
}

// NewServerServer builds the jrpc2 server for s. The returned client is valid
// once the server has been started.
func NewServerServer(ctx context.Context, s Server, opts *jrpc2.ServerOptions) (*jrpc2.Server, *CallbackClient) {
	if opts == nil {
		opts = &jrpc2.ServerOptions{}
	}

	opts.AllowPush = true

	if opts.NewContext == nil {
		opts.NewContext = func() context.Context {
			return ctx
		}
	}

	result := jrpc2.NewServer(Handlers(buildServerDispatchMap(s)), opts)

	return result, NewCallbackClient(result, opts)
}

// LSP types, the subset this server speaks.
// https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification/

type DocumentURI string

type MessageType int

const (
	Error   MessageType = 1
	Warning MessageType = 2
	Info    MessageType = 3
	Log     MessageType = 4
	Debug   MessageType = 5
)

func (mt MessageType) String() string {
	switch mt {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Log:
		return "log"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

type TextDocumentSyncKind int

const (
	SyncNone        TextDocumentSyncKind = 0
	SyncFull        TextDocumentSyncKind = 1
	SyncIncremental TextDocumentSyncKind = 2
)

// Position is zero based; Character counts UTF-16 code units.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type CancelParams struct {
	ID json.RawMessage `json:"id"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type InitializeParams struct {
	ProcessID             int                `json:"processId,omitempty"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	ClientInfo            *ClientInfo        `json:"clientInfo,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions json.RawMessage    `json:"initializationOptions,omitempty"`
	Trace                 string             `json:"trace,omitempty"`
}

type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
}

type TextDocumentClientCapabilities struct {
	SemanticTokens *SemanticTokensClientCapabilities `json:"semanticTokens,omitempty"`
}

type SemanticTokensClientCapabilities struct {
	DynamicRegistration     bool     `json:"dynamicRegistration,omitempty"`
	TokenTypes              []string `json:"tokenTypes,omitempty"`
	TokenModifiers          []string `json:"tokenModifiers,omitempty"`
	Formats                 []string `json:"formats,omitempty"`
	OverlappingTokenSupport bool     `json:"overlappingTokenSupport,omitempty"`
	MultilineTokenSupport   bool     `json:"multilineTokenSupport,omitempty"`
}

type WorkspaceClientCapabilities struct {
	SemanticTokens *SemanticTokensWorkspaceClientCapabilities `json:"semanticTokens,omitempty"`
}

type SemanticTokensWorkspaceClientCapabilities struct {
	RefreshSupport bool `json:"refreshSupport,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

type ServerCapabilities struct {
	TextDocumentSync       *TextDocumentSyncOptions `json:"textDocumentSync,omitempty"`
	SemanticTokensProvider *SemanticTokensOptions   `json:"semanticTokensProvider,omitempty"`
}

type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose"`
	Change    TextDocumentSyncKind `json:"change"`
}

type SemanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

type SemanticTokensFullOptions struct {
	Delta bool `json:"delta"`
}

type SemanticTokensOptions struct {
	Legend SemanticTokensLegend       `json:"legend"`
	Range  bool                       `json:"range"`
	Full   *SemanticTokensFullOptions `json:"full,omitempty"`
}

type DocumentFilter struct {
	Language string `json:"language,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

type SemanticTokensRegistrationOptions struct {
	SemanticTokensOptions
	DocumentSelector []DocumentFilter `json:"documentSelector"`
	ID               string           `json:"id,omitempty"`
}

type InitializedParams struct{}

type Registration struct {
	ID              string `json:"id"`
	Method          string `json:"method"`
	RegisterOptions any    `json:"registerOptions,omitempty"`
}

type RegistrationParams struct {
	Registrations []Registration `json:"registrations"`
}

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     DocumentURI `json:"uri"`
	Version int32       `json:"version"`
}

type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int32       `json:"version"`
	Text       string      `json:"text"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentContentChangeEvent without a Range replaces the whole document.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type SemanticTokensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type SemanticTokensRangeParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
}

type SemanticTokensDeltaParams struct {
	TextDocument     TextDocumentIdentifier `json:"textDocument"`
	PreviousResultID string                 `json:"previousResultId"`
}

type SemanticTokens struct {
	ResultID string   `json:"resultId,omitempty"`
	Data     []uint32 `json:"data"`
}

type SetTraceParams struct {
	Value string `json:"value"`
}

// LogMessageParams is window/logMessage with the structured fields of the
// zerolog event that produced it.
type LogMessageParams struct {
	Type         MessageType    `json:"type"`
	Message      string         `json:"message"`
	Source       string         `json:"source,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
	Time         string         `json:"time,omitempty"`
	IsDependency bool           `json:"is_dependency,omitempty"`
}

func newParseError(err error) *jrpc2.Error {
	return &jrpc2.Error{
		Code:    -32700, // Parse error
		Message: err.Error(),
	}
}

func NonNilSlice[T comparable](x []T) []T {
	if x == nil {
		return []T{}
	}
	return x
}
