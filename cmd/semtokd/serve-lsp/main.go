package serve_lsp

import (
	"context"
	"net/http"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/semtokd/pkg/config"
	"github.com/walteh/semtokd/pkg/debug"
	"github.com/walteh/semtokd/pkg/lsp"
	"github.com/walteh/semtokd/pkg/lsp/protocol"
	"gitlab.com/tozd/go/errors"
)

type Handler struct {
	debug       bool
	configPath  string
	metricsAddr string
	version     string
	fs          afero.Fs
}

func NewServeLSPCommand(version string) *cobra.Command {
	me := &Handler{version: version, fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "serve-lsp",
		Short: "start the language server on stdin/stdout",
	}

	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&me.configPath, "config", "", "path to an HCL or YAML config file")
	cmd.Flags().StringVar(&me.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(me.fs, me.configPath)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	level := cfg.Level()
	if me.debug {
		level = zerolog.DebugLevel
	}

	// stdout carries the protocol, so local logs go to stderr
	ctx = debug.WithConsoleLogger(ctx, os.Stderr, level)

	if addr := me.metricsAddr; addr != "" || cfg.MetricsAddr != "" {
		if addr == "" {
			addr = cfg.MetricsAddr
		}
		go me.serveMetrics(ctx, addr)
	}

	server := lsp.NewServer(ctx, cfg, lsp.WithVersion(me.version), lsp.WithLogForwarding())

	opts := &jrpc2.ServerOptions{
		RPCLog: &protocol.RPCLogger{},
	}

	instance := server.BuildServerInstance(ctx, opts)

	rwc := lsp.NewReadWriteCloser(os.Stdin, os.Stdout)
	if err := instance.StartAndWait(rwc, rwc); err != nil {
		return errors.Errorf("error running language server: %w", err)
	}

	return nil
}

func (me *Handler) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	zerolog.Ctx(ctx).Info().Str("addr", addr).Msg("serving metrics")

	if err := http.ListenAndServe(addr, mux); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}
