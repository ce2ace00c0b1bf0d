package protocol

import (
	"context"

	"github.com/creachadair/jrpc2/handler"
)

// Server is the set of client-to-server methods a semantic token server
// answers.
type Server interface {
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#setTrace
	SetTrace(context.Context, *SetTraceParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#exit
	Exit(context.Context) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#initialize
	Initialize(context.Context, *InitializeParams) (*InitializeResult, error)
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#initialized
	Initialized(context.Context, *InitializedParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#shutdown
	Shutdown(context.Context) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_didChange
	DidChange(context.Context, *DidChangeTextDocumentParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_didClose
	DidClose(context.Context, *DidCloseTextDocumentParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_didOpen
	DidOpen(context.Context, *DidOpenTextDocumentParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_semanticTokens_full
	SemanticTokensFull(context.Context, *SemanticTokensParams) (*SemanticTokens, error)
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_semanticTokens_full_delta
	SemanticTokensFullDelta(context.Context, *SemanticTokensDeltaParams) (any, error)
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#textDocument_semanticTokens_range
	SemanticTokensRange(context.Context, *SemanticTokensRangeParams) (*SemanticTokens, error)
}

func buildServerDispatchMap(server Server) handler.Map {
	return handler.Map{
		"$/setTrace":                             createEmptyResultHandler(server.SetTrace),
		"exit":                                   createEmptyHandler(server.Exit),
		"initialize":                             createHandler(server.Initialize),
		"initialized":                            createEmptyResultHandler(server.Initialized),
		"shutdown":                               createEmptyHandler(server.Shutdown),
		"textDocument/didChange":                 createEmptyResultHandler(server.DidChange),
		"textDocument/didClose":                  createEmptyResultHandler(server.DidClose),
		"textDocument/didOpen":                   createEmptyResultHandler(server.DidOpen),
		"textDocument/semanticTokens/full":       createHandler(server.SemanticTokensFull),
		"textDocument/semanticTokens/full/delta": createHandler(server.SemanticTokensFullDelta),
		"textDocument/semanticTokens/range":      createHandler(server.SemanticTokensRange),
	}
}
