package classify

// Record is one classification span reported by an analysis engine. Offset and
// Length are in bytes of the snapshot text. Children are spans nested inside
// this one, in whatever order the engine produced them.
type Record struct {
	Offset   int      `json:"offset"`
	Length   int      `json:"length"`
	KindID   string   `json:"kind"`
	IsSystem bool     `json:"is_system,omitempty"`
	Children []Record `json:"children,omitempty"`
}

// Response is what an engine returns for one document. Unavailable means the
// engine is running in fallback mode and semantic tokens must be withheld.
type Response struct {
	Unavailable bool     `json:"unavailable,omitempty"`
	Records     []Record `json:"records,omitempty"`
}

// Count returns the number of records in the tree, children included.
func Count(records []Record) int {
	n := 0
	stack := append([]Record(nil), records...)
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, r.Children...)
	}
	return n
}
