package classify

import "github.com/walteh/semtokd/pkg/semtok"

// Entry is what a kind identifier translates to.
type Entry struct {
	Kind      semtok.Kind
	Modifiers semtok.Modifiers
}

// Kind identifiers understood by the parser. Engines report declarations under
// the "source.decl." prefix and references under "source.ref.".
const (
	KindIDDeclClass         = "source.decl.class"
	KindIDDeclStruct        = "source.decl.struct"
	KindIDDeclEnum          = "source.decl.enum"
	KindIDDeclEnumElement   = "source.decl.enumelement"
	KindIDDeclInterface     = "source.decl.interface"
	KindIDDeclTypeAlias     = "source.decl.typealias"
	KindIDDeclTypeParam     = "source.decl.generic_type_param"
	KindIDDeclFunction      = "source.decl.function.free"
	KindIDDeclMethod        = "source.decl.function.method.instance"
	KindIDDeclStaticMethod  = "source.decl.function.method.static"
	KindIDDeclOperator      = "source.decl.function.operator"
	KindIDDeclLocal         = "source.decl.var.local"
	KindIDDeclGlobal        = "source.decl.var.global"
	KindIDDeclParameter     = "source.decl.var.parameter"
	KindIDDeclField         = "source.decl.var.instance"
	KindIDDeclStaticField   = "source.decl.var.static"
	KindIDDeclConst         = "source.decl.var.const"
	KindIDDeclModule        = "source.decl.module"
	KindIDDeclMacro         = "source.decl.macro"
	KindIDRefClass          = "source.ref.class"
	KindIDRefStruct         = "source.ref.struct"
	KindIDRefEnum           = "source.ref.enum"
	KindIDRefEnumElement    = "source.ref.enumelement"
	KindIDRefInterface      = "source.ref.interface"
	KindIDRefTypeAlias      = "source.ref.typealias"
	KindIDRefTypeParam      = "source.ref.generic_type_param"
	KindIDRefFunction       = "source.ref.function.free"
	KindIDRefMethod         = "source.ref.function.method.instance"
	KindIDRefStaticMethod   = "source.ref.function.method.static"
	KindIDRefOperator       = "source.ref.function.operator"
	KindIDRefLocal          = "source.ref.var.local"
	KindIDRefGlobal         = "source.ref.var.global"
	KindIDRefParameter      = "source.ref.var.parameter"
	KindIDRefField          = "source.ref.var.instance"
	KindIDRefStaticField    = "source.ref.var.static"
	KindIDRefConst          = "source.ref.var.const"
	KindIDRefModule         = "source.ref.module"
	KindIDRefMacro          = "source.ref.macro"
	KindIDSyntaxKeyword     = "source.syntaxtype.keyword"
	KindIDSyntaxComment     = "source.syntaxtype.comment"
	KindIDSyntaxDocComment  = "source.syntaxtype.doccomment"
	KindIDSyntaxString      = "source.syntaxtype.string"
	KindIDSyntaxNumber      = "source.syntaxtype.number"
	KindIDSyntaxAttribute   = "source.syntaxtype.attribute.builtin"
	KindIDSyntaxIdentifier  = "source.syntaxtype.identifier"
	KindIDSyntaxTypeIdent   = "source.syntaxtype.typeidentifier"
	KindIDDeclLabel         = "source.decl.label"
	KindIDRefLabel          = "source.ref.label"
	KindIDSyntaxPlaceholder = "source.syntaxtype.placeholder"
	KindIDSyntaxCommentURL  = "source.syntaxtype.comment.url"
	KindIDSyntaxCommentMark = "source.syntaxtype.comment.mark"
	KindIDSyntaxBuildConfig = "source.syntaxtype.buildconfig.keyword"
	KindIDSyntaxPoundDirKwd = "source.syntaxtype.pounddirective.keyword"
	KindIDSyntaxObjLiteral  = "source.syntaxtype.objectliteral"
)

const decl = semtok.ModDeclaration

// DefaultTable maps every kind identifier the parser translates.
var DefaultTable = map[string]Entry{
	KindIDDeclClass:        {semtok.KindClass, decl},
	KindIDDeclStruct:       {semtok.KindStruct, decl},
	KindIDDeclEnum:         {semtok.KindEnum, decl},
	KindIDDeclEnumElement:  {semtok.KindEnumMember, decl},
	KindIDDeclInterface:    {semtok.KindInterface, decl},
	KindIDDeclTypeAlias:    {semtok.KindType, decl},
	KindIDDeclTypeParam:    {semtok.KindTypeParameter, decl},
	KindIDDeclFunction:     {semtok.KindFunction, decl},
	KindIDDeclMethod:       {semtok.KindMethod, decl},
	KindIDDeclStaticMethod: {semtok.KindMethod, decl | semtok.ModStatic},
	KindIDDeclOperator:     {semtok.KindOperator, decl},
	KindIDDeclLocal:        {semtok.KindVariable, decl},
	KindIDDeclGlobal:       {semtok.KindVariable, decl},
	KindIDDeclParameter:    {semtok.KindParameter, decl},
	KindIDDeclField:        {semtok.KindProperty, decl},
	KindIDDeclStaticField:  {semtok.KindProperty, decl | semtok.ModStatic},
	KindIDDeclConst:        {semtok.KindVariable, decl | semtok.ModReadonly},
	KindIDDeclModule:       {semtok.KindNamespace, decl},
	KindIDDeclMacro:        {semtok.KindMacro, decl},

	KindIDRefClass:        {semtok.KindClass, semtok.ModNone},
	KindIDRefStruct:       {semtok.KindStruct, semtok.ModNone},
	KindIDRefEnum:         {semtok.KindEnum, semtok.ModNone},
	KindIDRefEnumElement:  {semtok.KindEnumMember, semtok.ModNone},
	KindIDRefInterface:    {semtok.KindInterface, semtok.ModNone},
	KindIDRefTypeAlias:    {semtok.KindType, semtok.ModNone},
	KindIDRefTypeParam:    {semtok.KindTypeParameter, semtok.ModNone},
	KindIDRefFunction:     {semtok.KindFunction, semtok.ModNone},
	KindIDRefMethod:       {semtok.KindMethod, semtok.ModNone},
	KindIDRefStaticMethod: {semtok.KindMethod, semtok.ModStatic},
	KindIDRefOperator:     {semtok.KindOperator, semtok.ModNone},
	KindIDRefLocal:        {semtok.KindVariable, semtok.ModNone},
	KindIDRefGlobal:       {semtok.KindVariable, semtok.ModNone},
	KindIDRefParameter:    {semtok.KindParameter, semtok.ModNone},
	KindIDRefField:        {semtok.KindProperty, semtok.ModNone},
	KindIDRefStaticField:  {semtok.KindProperty, semtok.ModStatic},
	KindIDRefConst:        {semtok.KindVariable, semtok.ModReadonly},
	KindIDRefModule:       {semtok.KindNamespace, semtok.ModNone},
	KindIDRefMacro:        {semtok.KindMacro, semtok.ModNone},

	KindIDSyntaxKeyword:    {semtok.KindKeyword, semtok.ModNone},
	KindIDSyntaxComment:    {semtok.KindComment, semtok.ModNone},
	KindIDSyntaxDocComment: {semtok.KindComment, semtok.ModDocumentation},
	KindIDSyntaxString:     {semtok.KindString, semtok.ModNone},
	KindIDSyntaxNumber:     {semtok.KindNumber, semtok.ModNone},
	KindIDSyntaxAttribute:  {semtok.KindModifier, semtok.ModNone},
	KindIDSyntaxIdentifier: {semtok.KindIdentifier, semtok.ModNone},
	KindIDSyntaxTypeIdent:  {semtok.KindType, semtok.ModNone},
}

// DefaultIgnored holds identifiers engines report that have no token kind.
// They are dropped without logging.
var DefaultIgnored = map[string]struct{}{
	KindIDDeclLabel:         {},
	KindIDRefLabel:          {},
	KindIDSyntaxPlaceholder: {},
	KindIDSyntaxCommentURL:  {},
	KindIDSyntaxCommentMark: {},
	KindIDSyntaxBuildConfig: {},
	KindIDSyntaxPoundDirKwd: {},
	KindIDSyntaxObjLiteral:  {},
}
