package structural

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	tsjson "github.com/tree-sitter/tree-sitter-json/bindings/go"
	"github.com/walteh/semtokd/pkg/position"
	"github.com/walteh/semtokd/pkg/semtok"
	"gitlab.com/tozd/go/errors"
)

type grammar int

const (
	grammarGo grammar = iota
	grammarJSON
)

// TreeSitter classifies leaves of a tree-sitter parse tree. Strings and
// comments are taken whole, since their inner nodes carry no extra meaning.
type TreeSitter struct {
	langs   map[grammar]*sitter.Language
	byExt   map[string]grammar
	parsers sync.Pool
}

func NewTreeSitter() *TreeSitter {
	return &TreeSitter{
		langs: map[grammar]*sitter.Language{
			grammarGo:   golang.GetLanguage(),
			grammarJSON: sitter.NewLanguage(tsjson.Language()),
		},
		byExt: map[string]grammar{
			".go":    grammarGo,
			".json":  grammarJSON,
			".jsonc": grammarJSON,
		},
		parsers: sync.Pool{New: func() any { return sitter.NewParser() }},
	}
}

func (ts *TreeSitter) Supports(uri string) bool {
	_, ok := ts.byExt[extension(uri)]
	return ok
}

func (ts *TreeSitter) Classify(ctx context.Context, snap *position.Snapshot) ([]semtok.Token, error) {
	g, ok := ts.byExt[extension(snap.ID.URI)]
	if !ok {
		return nil, errors.Errorf("no tree-sitter grammar for %s", snap.ID.URI)
	}

	parser := ts.parsers.Get().(*sitter.Parser)
	defer ts.parsers.Put(parser)
	parser.SetLanguage(ts.langs[g])

	src := []byte(snap.Text)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Errorf("parsing %s: %w", snap.ID.URI, err)
	}
	if tree == nil {
		return nil, errors.Errorf("parsing %s: no tree", snap.ID.URI)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.Errorf("parsing %s: no root node", snap.ID.URI)
	}

	w := &walker{snap: snap, src: src, grammar: g, logger: zerolog.Ctx(ctx)}
	w.walk(root)

	zerolog.Ctx(ctx).Trace().
		Str("uri", snap.ID.URI).
		Int("tokens", len(w.out)).
		Bool("has_error", root.HasError()).
		Msg("tree-sitter classification done")

	return w.out, nil
}

type walker struct {
	snap    *position.Snapshot
	src     []byte
	grammar grammar
	logger  *zerolog.Logger
	out     []semtok.Token
}

// walk visits the tree depth first with an explicit stack, so deeply nested
// input cannot exhaust the goroutine stack.
func (w *walker) walk(root *sitter.Node) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node == nil || node.IsMissing() {
			continue
		}

		nodeType := node.Type()
		if nodeType == "ERROR" && node.ChildCount() == 0 {
			continue
		}

		if node.IsNamed() && isWholeNode(nodeType) {
			w.emit(node, w.wholeKind(node, nodeType))
			continue
		}

		n := int(node.ChildCount())
		if n == 0 {
			kind, mods, ok := w.leafKind(node, nodeType)
			if ok {
				w.emitMods(node, kind, mods)
			}
			continue
		}

		// reversed so children pop in document order
		for i := n - 1; i >= 0; i-- {
			stack = append(stack, node.Child(i))
		}
	}
}

func (w *walker) emit(node *sitter.Node, kind semtok.Kind) {
	w.emitMods(node, kind, semtok.ModNone)
}

func (w *walker) emitMods(node *sitter.Node, kind semtok.Kind, mods semtok.Modifiers) {
	start, end := int(node.StartByte()), int(node.EndByte())
	if end <= start {
		return
	}
	toks, err := rangeTokens(w.snap, start, end, kind, mods)
	if err != nil {
		w.logger.Debug().Err(err).Str("node", node.Type()).Msg("skipping tree-sitter node")
		return
	}
	w.out = append(w.out, toks...)
}

func isWholeNode(nodeType string) bool {
	return nodeType == "comment" || strings.Contains(nodeType, "string") || nodeType == "rune_literal"
}

func (w *walker) wholeKind(node *sitter.Node, nodeType string) semtok.Kind {
	if nodeType == "comment" {
		return semtok.KindComment
	}
	if w.grammar == grammarJSON && isFieldOf(node, "key") {
		return semtok.KindProperty
	}
	return semtok.KindString
}

func (w *walker) leafKind(node *sitter.Node, nodeType string) (semtok.Kind, semtok.Modifiers, bool) {
	switch {
	case strings.HasSuffix(nodeType, "_literal") || nodeType == "number":
		return semtok.KindNumber, semtok.ModNone, true
	case nodeType == "true" || nodeType == "false" || nodeType == "null":
		if w.grammar == grammarJSON {
			return semtok.KindKeyword, semtok.ModNone, true
		}
		return semtok.KindVariable, semtok.ModReadonly | semtok.ModDefaultLibrary, true
	case nodeType == "nil" || nodeType == "iota":
		return semtok.KindVariable, semtok.ModReadonly | semtok.ModDefaultLibrary, true
	}

	if !node.IsNamed() {
		switch {
		case goKeywords[nodeType]:
			return semtok.KindKeyword, semtok.ModNone, true
		case operators[nodeType]:
			return semtok.KindOperator, semtok.ModNone, true
		}
		return 0, 0, false
	}

	if w.grammar != grammarGo {
		return 0, 0, false
	}
	return goIdentifierKind(node, nodeType)
}

func goIdentifierKind(node *sitter.Node, nodeType string) (semtok.Kind, semtok.Modifiers, bool) {
	parent := node.Parent()
	parentType := ""
	if parent != nil {
		parentType = parent.Type()
	}

	switch nodeType {
	case "package_identifier":
		return semtok.KindNamespace, semtok.ModNone, true
	case "type_identifier":
		if parentType == "type_spec" && isFieldOf(node, "name") {
			return semtok.KindType, semtok.ModDeclaration, true
		}
		if parentType == "type_parameter_declaration" {
			return semtok.KindTypeParameter, semtok.ModDeclaration, true
		}
		return semtok.KindType, semtok.ModNone, true
	case "field_identifier":
		switch parentType {
		case "method_declaration", "method_elem", "method_spec":
			return semtok.KindMethod, semtok.ModDeclaration, true
		case "field_declaration":
			return semtok.KindProperty, semtok.ModDeclaration, true
		case "selector_expression":
			if grand := parent.Parent(); grand != nil && grand.Type() == "call_expression" && isFieldOf(parent, "function") {
				return semtok.KindMethod, semtok.ModNone, true
			}
		}
		return semtok.KindProperty, semtok.ModNone, true
	case "identifier":
		switch parentType {
		case "function_declaration":
			return semtok.KindFunction, semtok.ModDeclaration, true
		case "call_expression":
			return semtok.KindFunction, semtok.ModNone, true
		case "parameter_declaration", "variadic_parameter_declaration":
			return semtok.KindParameter, semtok.ModDeclaration, true
		case "const_spec":
			return semtok.KindVariable, semtok.ModDeclaration | semtok.ModReadonly, true
		case "var_spec", "range_clause":
			return semtok.KindVariable, semtok.ModDeclaration, true
		case "expression_list":
			if grand := parent.Parent(); grand != nil && grand.Type() == "short_var_declaration" && isFieldOf(parent, "left") {
				return semtok.KindVariable, semtok.ModDeclaration, true
			}
		}
		return semtok.KindVariable, semtok.ModNone, true
	}
	return 0, 0, false
}

// isFieldOf reports whether node sits in the named field of its parent.
func isFieldOf(node *sitter.Node, field string) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	for i := 0; i < int(parent.ChildCount()); i++ {
		child := parent.Child(i)
		if child != nil && child.StartByte() == node.StartByte() && child.EndByte() == node.EndByte() && child.Type() == node.Type() {
			return parent.FieldNameForChild(i) == field
		}
	}
	return false
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

var operators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"=": true, "==": true, "!=": true, "<": true, "<=": true,
	">": true, ">=": true, "&&": true, "||": true, "!": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true,
	"&^": true, "+=": true, "-=": true, "*=": true, "/=": true,
	"%=": true, "&=": true, "|=": true, "^=": true, "<<=": true,
	">>=": true, "&^=": true, ":=": true, "<-": true, "++": true,
	"--": true, "...": true, "~": true,
}
