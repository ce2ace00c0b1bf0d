/*
Token Model:
-----------

	+-------------+     +----------------+
	| Kind        | --> | legend index   |   0..len(KindNames)-1
	+-------------+     +----------------+
	| Modifiers   | --> | legend bitset  |   1 << index in ModifierNames
	+-------------+     +----------------+
	| Range       | --> | one line only  |   start.Line == end.Line
	+-------------+     +----------------+

Kinds and modifier bits are sent to the client as integers, so their order here
is the legend order and must never change once a session has started.
*/
package semtok

import (
	"fmt"
	"strings"

	"github.com/walteh/semtokd/pkg/position"
	"gitlab.com/tozd/go/errors"
)

var ErrMultiLine = errors.Base("token spans multiple lines")

// Kind is the index of a token type in the legend.
type Kind uint32

const (
	KindNamespace Kind = iota
	KindType
	KindClass
	KindEnum
	KindInterface
	KindStruct
	KindTypeParameter
	KindParameter
	KindVariable
	KindProperty
	KindEnumMember
	KindEvent
	KindFunction
	KindMethod
	KindMacro
	KindKeyword
	KindModifier
	KindComment
	KindString
	KindNumber
	KindRegexp
	KindOperator
	KindDecorator
	KindIdentifier
)

// KindNames is the token type legend, indexed by Kind.
var KindNames = []string{
	"namespace",     // 0
	"type",          // 1
	"class",         // 2
	"enum",          // 3
	"interface",     // 4
	"struct",        // 5
	"typeParameter", // 6
	"parameter",     // 7
	"variable",      // 8
	"property",      // 9
	"enumMember",    // 10
	"event",         // 11
	"function",      // 12
	"method",        // 13
	"macro",         // 14
	"keyword",       // 15
	"modifier",      // 16
	"comment",       // 17
	"string",        // 18
	"number",        // 19
	"regexp",        // 20
	"operator",      // 21
	"decorator",     // 22
	"identifier",    // 23
}

func (k Kind) String() string {
	if int(k) < len(KindNames) {
		return KindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// Modifiers is a bitset; bit i corresponds to ModifierNames[i].
type Modifiers uint32

const (
	ModDeclaration Modifiers = 1 << iota
	ModDefinition
	ModReadonly
	ModStatic
	ModDeprecated
	ModAbstract
	ModAsync
	ModModification
	ModDocumentation
	ModDefaultLibrary
	ModArgumentLabel

	ModNone Modifiers = 0
)

// ModifierNames is the token modifier legend, indexed by bit position.
var ModifierNames = []string{
	"declaration",    // 1 << 0
	"definition",     // 1 << 1
	"readonly",       // 1 << 2
	"static",         // 1 << 3
	"deprecated",     // 1 << 4
	"abstract",       // 1 << 5
	"async",          // 1 << 6
	"modification",   // 1 << 7
	"documentation",  // 1 << 8
	"defaultLibrary", // 1 << 9
	"argumentLabel",  // 1 << 10
}

func (m Modifiers) Has(other Modifiers) bool {
	return m&other == other
}

func (m Modifiers) String() string {
	if m == ModNone {
		return "none"
	}
	var names []string
	for i, name := range ModifierNames {
		if m&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// Token is one highlighted span confined to a single line.
type Token struct {
	Range     position.Range
	Kind      Kind
	Modifiers Modifiers
}

func NewToken(rng position.Range, kind Kind, mods Modifiers) (Token, error) {
	if !rng.IsSingleLine() {
		return Token{}, errors.Errorf("%w: %s", ErrMultiLine, rng)
	}
	return Token{Range: rng, Kind: kind, Modifiers: mods}, nil
}

func (t Token) Start() position.Position {
	return t.Range.Start
}

// Length is measured in UTF-16 code units.
func (t Token) Length() int {
	return t.Range.End.Character - t.Range.Start.Character
}

func (t Token) String() string {
	return fmt.Sprintf("%s[%s]@%s", t.Kind, t.Modifiers, t.Range)
}
