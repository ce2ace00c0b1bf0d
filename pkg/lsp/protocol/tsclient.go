package protocol

import (
	"context"
)

// Client is the set of server-to-client methods the server sends.
type Client interface {
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#client_registerCapability
	RegisterCapability(context.Context, *RegistrationParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#window_logMessage
	LogMessage(context.Context, *LogMessageParams) error
	// See https://microsoft.github.io/language-server-protocol/specifications/lsp/3.17/specification#workspace_semanticTokens_refresh
	SemanticTokensRefresh(context.Context) error
}

func (s *CallbackClient) RegisterCapability(ctx context.Context, params *RegistrationParams) error {
	return createEmptyResultCallback(ctx, s, "client/registerCapability", params)
}
func (s *CallbackClient) LogMessage(ctx context.Context, params *LogMessageParams) error {
	return createNotify(ctx, s, "window/logMessage", params)
}
func (s *CallbackClient) SemanticTokensRefresh(ctx context.Context) error {
	return createEmptyCallback(ctx, s, "workspace/semanticTokens/refresh")
}
