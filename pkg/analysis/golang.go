package analysis

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/semtokd/pkg/classify"
	"github.com/walteh/semtokd/pkg/position"
)

var _ Engine = (*GoEngine)(nil)

// GoEngine classifies Go files by type checking their package. Each top level
// declaration becomes a record for its keyword, with one child record per
// identifier inside it.
type GoEngine struct{}

func NewGoEngine() *GoEngine {
	return &GoEngine{}
}

func (e *GoEngine) Classify(ctx context.Context, snap *position.Snapshot, buildFlags []string) (*classify.Response, error) {
	logger := zerolog.Ctx(ctx).With().Str("uri", snap.ID.URI).Int32("version", snap.ID.Version).Logger()

	path, ok := filePath(snap.ID.URI)
	if !ok || !strings.HasSuffix(path, ".go") {
		return &classify.Response{Unavailable: true}, nil
	}

	l, err := loadFile(ctx, path, snap.Text, buildFlags)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Debug().Err(err).Msg("go analysis unavailable, falling back")
		return &classify.Response{Unavailable: true}, nil
	}

	b := &recordBuilder{
		fset:   l.Package.Fset,
		info:   l.Package.TypesInfo,
		pkg:    l.Package.Types,
		params: map[types.Object]bool{},
	}
	records := b.file(l.File)

	logger.Debug().Int("records", classify.Count(records)).Msg("go analysis done")
	return &classify.Response{Records: records}, nil
}

type recordBuilder struct {
	fset   *token.FileSet
	info   *types.Info
	pkg    *types.Package
	params map[types.Object]bool
}

func (b *recordBuilder) offset(pos token.Pos) int {
	return b.fset.Position(pos).Offset
}

func (b *recordBuilder) file(f *ast.File) []classify.Record {
	out := []classify.Record{{
		Offset: b.offset(f.Package),
		Length: len("package"),
		KindID: classify.KindIDSyntaxKeyword,
		Children: []classify.Record{{
			Offset: b.offset(f.Name.Pos()),
			Length: len(f.Name.Name),
			KindID: classify.KindIDDeclModule,
		}},
	}}

	for _, decl := range f.Decls {
		out = append(out, b.decl(decl))
	}
	return out
}

func (b *recordBuilder) decl(decl ast.Decl) classify.Record {
	var rec classify.Record
	switch d := decl.(type) {
	case *ast.FuncDecl:
		rec = classify.Record{Offset: b.offset(d.Type.Func), Length: len("func"), KindID: classify.KindIDSyntaxKeyword}
		// the receiver is visited before the signature
		b.collectFields(d.Recv)
	case *ast.GenDecl:
		rec = classify.Record{Offset: b.offset(d.TokPos), Length: len(d.Tok.String()), KindID: classify.KindIDSyntaxKeyword}
	default:
		rec = classify.Record{Offset: b.offset(decl.Pos()), KindID: classify.KindIDSyntaxKeyword}
	}

	ast.Inspect(decl, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncType:
			b.collectParams(n)
		case *ast.Ident:
			if child, ok := b.ident(n); ok {
				rec.Children = append(rec.Children, child)
			}
		}
		return true
	})

	return rec
}

func (b *recordBuilder) collectParams(ft *ast.FuncType) {
	b.collectFields(ft.Params)
	b.collectFields(ft.Results)
}

func (b *recordBuilder) collectFields(list *ast.FieldList) {
	if list == nil {
		return
	}
	for _, field := range list.List {
		for _, name := range field.Names {
			if obj := b.info.Defs[name]; obj != nil {
				b.params[obj] = true
			}
		}
	}
}

func (b *recordBuilder) ident(id *ast.Ident) (classify.Record, bool) {
	if id.Name == "_" {
		return classify.Record{}, false
	}

	obj, decl := b.info.Defs[id], true
	if obj == nil {
		obj, decl = b.info.Uses[id], false
	}
	if obj == nil {
		return classify.Record{}, false
	}

	kind := b.kindID(obj, decl)
	if kind == "" {
		return classify.Record{}, false
	}

	return classify.Record{
		Offset:   b.offset(id.Pos()),
		Length:   len(id.Name),
		KindID:   kind,
		IsSystem: isSystem(obj),
	}, true
}

func (b *recordBuilder) kindID(obj types.Object, decl bool) string {
	pick := func(d, r string) string {
		if decl {
			return d
		}
		return r
	}

	switch o := obj.(type) {
	case *types.PkgName:
		return pick(classify.KindIDDeclModule, classify.KindIDRefModule)
	case *types.TypeName:
		if _, ok := o.Type().(*types.TypeParam); ok {
			return pick(classify.KindIDDeclTypeParam, classify.KindIDRefTypeParam)
		}
		if o.IsAlias() {
			return pick(classify.KindIDDeclTypeAlias, classify.KindIDRefTypeAlias)
		}
		switch o.Type().Underlying().(type) {
		case *types.Struct:
			return pick(classify.KindIDDeclStruct, classify.KindIDRefStruct)
		case *types.Interface:
			return pick(classify.KindIDDeclInterface, classify.KindIDRefInterface)
		}
		return pick(classify.KindIDDeclTypeAlias, classify.KindIDRefTypeAlias)
	case *types.Func:
		if sig, ok := o.Type().(*types.Signature); ok && sig.Recv() != nil {
			return pick(classify.KindIDDeclMethod, classify.KindIDRefMethod)
		}
		return pick(classify.KindIDDeclFunction, classify.KindIDRefFunction)
	case *types.Builtin:
		return classify.KindIDRefFunction
	case *types.Var:
		switch {
		case o.IsField():
			return pick(classify.KindIDDeclField, classify.KindIDRefField)
		case b.params[o]:
			return pick(classify.KindIDDeclParameter, classify.KindIDRefParameter)
		case o.Parent() != nil && o.Parent() == b.pkg.Scope():
			return pick(classify.KindIDDeclGlobal, classify.KindIDRefGlobal)
		}
		return pick(classify.KindIDDeclLocal, classify.KindIDRefLocal)
	case *types.Const:
		return pick(classify.KindIDDeclConst, classify.KindIDRefConst)
	case *types.Nil:
		return classify.KindIDRefConst
	case *types.Label:
		return pick(classify.KindIDDeclLabel, classify.KindIDRefLabel)
	}
	return ""
}

// isSystem reports whether obj comes from the universe scope or the standard
// library.
func isSystem(obj types.Object) bool {
	if pn, ok := obj.(*types.PkgName); ok {
		return isStdlib(pn.Imported().Path())
	}
	if obj.Pkg() == nil {
		return true
	}
	return isStdlib(obj.Pkg().Path())
}

func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}
