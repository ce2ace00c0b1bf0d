package lsp

import (
	"context"
	"io"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/walteh/semtokd/pkg/lsp/protocol"
	"gitlab.com/tozd/go/errors"
)

// ServerInstance is a Server bound to a JSON-RPC connection.
type ServerInstance struct {
	server *Server
	rpc    *jrpc2.Server
	client *protocol.CallbackClient
}

func (s *Server) BuildServerInstance(ctx context.Context, opts *jrpc2.ServerOptions) *ServerInstance {
	if opts == nil {
		opts = &jrpc2.ServerOptions{}
	}

	var client *protocol.CallbackClient
	if s.forwardLogs {
		opts.NewContext = func() context.Context {
			return protocol.ApplyClientToZerolog(ctx, client)
		}
	}

	rpc, client := protocol.NewServerServer(ctx, s, opts)
	s.SetCallbackClient(client)

	return &ServerInstance{server: s, rpc: rpc, client: client}
}

func (me *ServerInstance) Server() *Server {
	return me.server
}

// Start serves ch in the background.
func (me *ServerInstance) Start(ch channel.Channel) {
	me.rpc.Start(ch)
}

func (me *ServerInstance) Stop() {
	me.rpc.Stop()
}

// StartAndWait serves LSP framed messages read from r until the connection
// closes or the client sends exit.
func (me *ServerInstance) StartAndWait(r io.Reader, w io.WriteCloser) error {
	me.rpc.Start(channel.LSP(r, w))
	if err := me.rpc.Wait(); err != nil && !errors.Is(err, io.EOF) {
		return errors.Errorf("serving: %w", err)
	}
	return nil
}
