package analysis

import (
	"context"
	"go/ast"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedModule

// loaded is the package holding one file, with that file's syntax tree.
type loaded struct {
	Package *packages.Package
	File    *ast.File
}

func filePath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// loadFile type checks the package containing path, with text standing in for
// the file's content on disk.
func loadFile(ctx context.Context, path string, text string, buildFlags []string) (*loaded, error) {
	cfg := &packages.Config{
		Mode:       loadMode,
		Context:    ctx,
		Dir:        filepath.Dir(path),
		Env:        append(os.Environ(), "GO111MODULE=on"),
		BuildFlags: buildFlags,
		Tests:      strings.HasSuffix(path, "_test.go"),
		Overlay:    map[string][]byte{path: []byte(text)},
	}

	pkgs, err := packages.Load(cfg, "file="+path)
	if err != nil {
		return nil, errors.Errorf("loading package for %s: %w", path, err)
	}

	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			zerolog.Ctx(ctx).Trace().Str("package", pkg.ID).Str("error", e.Error()).Msg("package error")
		}
		if pkg.TypesInfo == nil || pkg.Types == nil {
			continue
		}
		for i, f := range pkg.CompiledGoFiles {
			if i < len(pkg.Syntax) && samePath(f, path) {
				return &loaded{Package: pkg, File: pkg.Syntax[i]}, nil
			}
		}
	}

	return nil, errors.Errorf("no type checked package contains %s", path)
}

func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
