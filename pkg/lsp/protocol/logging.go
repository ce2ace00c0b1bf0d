package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/debug"
)

// LoggerID marks log events written by this process's own loggers. Events
// without it came from a dependency writing to the same sink.
var LoggerID = xid.New().String()

var _ jrpc2.RPCLogger = (*RPCLogger)(nil)

// RPCLogger logs every request and response at debug level.
type RPCLogger struct{}

func (me *RPCLogger) LogRequest(ctx context.Context, req *jrpc2.Request) {
	zerolog.Ctx(ctx).Debug().
		Str("rpc_params", req.ParamString()).
		Str("rpc_id", req.ID()).
		Str("rpc_method", req.Method()).
		Msg("client request")
}

func (me *RPCLogger) LogResponse(ctx context.Context, res *jrpc2.Response) {
	evt := zerolog.Ctx(ctx).Debug().Str("rpc_id", res.ID())
	if err := res.Error(); err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("server response")
}

func (me *RPCLogger) LogCallback(ctx context.Context, method string) {
	zerolog.Ctx(ctx).Debug().Str("rpc_method", method).Msg("server callback")
}

func ApplyRequestToZerolog(ctx context.Context, req *jrpc2.Request) context.Context {
	return zerolog.Ctx(ctx).With().
		Str("rpc_method", req.Method()).
		Str("rpc_id", req.ID()).
		Logger().
		WithContext(ctx)
}

// ApplyClientToZerolog replaces the context logger with one that forwards
// every event to the client as a window/logMessage notification. The level
// of the existing logger is kept.
func ApplyClientToZerolog(ctx context.Context, client Client) context.Context {
	writer := &LogWriter{
		client: client,
		ctx:    ctx,
	}

	level := zerolog.Ctx(ctx).GetLevel()

	return zerolog.New(writer).With().
		Str("id", LoggerID).
		Logger().
		Level(level).
		Hook(debug.CustomTimeHook{WithColor: false}).
		Hook(debug.CustomCallerHook{WithColor: false}).
		WithContext(ctx)
}

// LogWriter turns zerolog JSON events into window/logMessage notifications.
type LogWriter struct {
	mu     sync.Mutex
	client Client
	ctx    context.Context
}

func NewLogWriter(ctx context.Context, client Client) *LogWriter {
	return &LogWriter{client: client, ctx: ctx}
}

func (w *LogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	notification := &LogMessageParams{
		Type:         ParseMessageTypeFromZerolog(extractField(entry, "level", "info")),
		Message:      extractField(entry, "message", ""),
		Time:         extractField(entry, "time", ""),
		Source:       extractField(entry, "caller", ""),
		IsDependency: extractField(entry, "id", "") != LoggerID,
	}
	if len(entry) > 0 {
		notification.Extra = entry
	}

	if w.client != nil {
		// a closed connection must not fail the caller's log statement
		_ = w.client.LogMessage(w.ctx, notification)
	}

	return len(p), nil
}

func extractField(entry map[string]any, key, defaultValue string) string {
	if v, ok := entry[key].(string); ok {
		delete(entry, key)
		return v
	}
	return defaultValue
}

func ParseMessageTypeFromZerolog(level string) MessageType {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return Log
	}
	switch lvl {
	case zerolog.PanicLevel, zerolog.FatalLevel, zerolog.ErrorLevel:
		return Error
	case zerolog.WarnLevel:
		return Warning
	case zerolog.InfoLevel:
		return Info
	case zerolog.DebugLevel:
		return Log
	default:
		return Debug
	}
}
