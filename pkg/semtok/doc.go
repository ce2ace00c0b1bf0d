/*
Package semtok holds the token model shared by every highlighting source and
the pieces that turn token lists into what an LSP client consumes.

Architecture:
------------

	structural classifier        semantic engine
	        |                           |
	        v                           v
	  []Token (syntactic)        []Token (semantic)
	        |                           |
	        +------------+--------------+
	                     |
	                  Merge          semantic wins on identical ranges
	                     |
	                   Sort          ascending start position
	                     |
	                  Encode         [dLine, dChar, len, kind, mods] * n
	                     |
	                     v
	              SemanticTokens.data

Invariants:
----------
  - a Token never spans lines; use SplitRange / SplitTokens on raw spans
  - Kind values and Modifiers bits are legend indices, see KindNames and
    ModifierNames
  - Encode refuses unsorted input with ErrUnsorted
*/
package semtok
