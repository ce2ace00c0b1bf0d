package semtok

// Legend is published to the client once per session. Clients decode token
// kinds and modifiers by index, so the slices are copies of the fixed tables.
type Legend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

func DefaultLegend() Legend {
	return Legend{
		TokenTypes:     append([]string(nil), KindNames...),
		TokenModifiers: append([]string(nil), ModifierNames...),
	}
}

// KindByName looks up a legend entry, for tools that take kinds as text.
func KindByName(name string) (Kind, bool) {
	for i, n := range KindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}
