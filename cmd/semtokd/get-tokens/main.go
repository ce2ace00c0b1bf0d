package get_tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/semtokd/pkg/analysis"
	"github.com/walteh/semtokd/pkg/config"
	"github.com/walteh/semtokd/pkg/highlight"
	"github.com/walteh/semtokd/pkg/lsp"
	"github.com/walteh/semtokd/pkg/lsp/protocol"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
	"github.com/walteh/semtokd/pkg/structural"
	"gitlab.com/tozd/go/errors"
)

type Handler struct {
	file       string
	format     string // json, table
	rangeFlag  string
	configPath string
	fs         afero.Fs
}

func NewGetTokensCommand() *cobra.Command {
	me := &Handler{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "get-tokens [file]",
		Short: "print the semantic tokens of a file",
	}

	cmd.Flags().StringVar(&me.format, "format", "table", "output format: json or table")
	cmd.Flags().StringVar(&me.rangeFlag, "range", "", "only tokens in this range, as line:char-line:char")
	cmd.Flags().StringVar(&me.configPath, "config", "", "path to an HCL or YAML config file")
	cmd.Args = cobra.ExactArgs(1)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.file = args[0]
		return me.Run(cmd.Context(), cmd.OutOrStdout())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, out io.Writer) error {
	if me.format != "json" && me.format != "table" {
		return errors.Errorf("unknown format %q", me.format)
	}

	cfg, err := config.LoadOrDefault(me.fs, me.configPath)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	abs, err := filepath.Abs(me.file)
	if err != nil {
		return errors.Errorf("resolving %s: %w", me.file, err)
	}

	content, err := afero.ReadFile(me.fs, abs)
	if err != nil {
		return errors.Errorf("reading %s: %w", abs, err)
	}

	uri := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	docs := lsp.NewDocumentManager()
	snap := docs.Open(ctx, uri, "", 0, string(content))

	var engine analysis.Engine = analysis.Disabled{}
	if cfg.SemanticEnabled() {
		engine = analysis.NewGoEngine()
	}

	h := highlight.New(docs, structural.NewRouter(), engine, nil, highlight.Options{
		BuildFlags:     cfg.Semantic.BuildFlags,
		MaxRecordDepth: cfg.Semantic.MaxRecordDepth,
		Selected:       cfg.Files.Selected,
	})

	var res *highlight.Result
	if me.rangeFlag != "" {
		rng, err := position.ParseRange(me.rangeFlag)
		if err != nil {
			return errors.Errorf("parsing --range: %w", err)
		}
		res, err = h.Range(ctx, uri, rng)
		if err != nil {
			return errors.Errorf("computing tokens: %w", err)
		}
	} else {
		res, err = h.Full(ctx, uri)
		if err != nil {
			return errors.Errorf("computing tokens: %w", err)
		}
	}

	if me.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(&protocol.SemanticTokens{ResultID: res.ResultID, Data: protocol.NonNilSlice(res.Data)})
	}

	toks, err := semtok.Decode(res.Data)
	if err != nil {
		return errors.Errorf("decoding tokens: %w", err)
	}

	return writeTable(out, snap, toks)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func kindStyle(k semtok.Kind) lipgloss.Style {
	style := lipgloss.NewStyle()
	switch k {
	case semtok.KindKeyword:
		return style.Foreground(lipgloss.Color("5"))
	case semtok.KindString, semtok.KindRegexp:
		return style.Foreground(lipgloss.Color("2"))
	case semtok.KindNumber:
		return style.Foreground(lipgloss.Color("3"))
	case semtok.KindComment:
		return style.Faint(true)
	case semtok.KindFunction, semtok.KindMethod:
		return style.Foreground(lipgloss.Color("4"))
	case semtok.KindType, semtok.KindClass, semtok.KindStruct, semtok.KindInterface, semtok.KindTypeParameter:
		return style.Foreground(lipgloss.Color("6"))
	case semtok.KindOperator:
		return style.Faint(true)
	default:
		return style
	}
}

func writeTable(out io.Writer, snap *position.Snapshot, toks []semtok.Token) error {
	rows := [][]string{{"RANGE", "KIND", "MODIFIERS", "TEXT"}}
	for _, tok := range toks {
		text, err := snap.TextIn(tok.Range)
		if err != nil {
			return errors.Errorf("token %s: %w", tok, err)
		}
		mods := ""
		if tok.Modifiers != semtok.ModNone {
			mods = tok.Modifiers.String()
		}
		rows = append(rows, []string{tok.Range.String(), tok.Kind.String(), mods, text})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	for r, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			switch {
			case r == 0:
				cell = headerStyle.Render(cell)
			case i == 1:
				cell = kindStyle(toks[r-1].Kind).Render(cell)
			case i == 2:
				cell = faintStyle.Render(cell)
			}
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(pad + "  ")
			}
		}
		if _, err := fmt.Fprintln(out, b.String()); err != nil {
			return errors.Errorf("writing table: %w", err)
		}
	}

	return nil
}
