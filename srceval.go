package srceval

import "fmt"

// --- Source positions ------------------------------------------------------

// Position is a line/column pair within a source text. Lines and columns
// are 1-based, as reported by the scanner. The zero value denotes "no position".
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before is a predicate: does p come before q in the source text?
func (p Position) Before(q Position) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Column < q.Column)
}

// Location is a small type for capturing the source range of a syntax node.
// Every AST node carries one; it is used for breakpoint matching and for
// error reporting. A location denotes a start position and the position
// of the last character covered.
type Location struct {
	Start Position
	End   Position
}

// At creates a location covering a single position.
func At(line, col int) Location {
	p := Position{Line: line, Column: col}
	return Location{Start: p, End: p}
}

// Line returns the start line of a location.
func (l Location) Line() int {
	return l.Start.Line
}

// IsNull is a predicate: has the location been set?
func (l Location) IsNull() bool {
	return l == Location{}
}

// Extend returns a location covering both l and other.
func (l Location) Extend(other Location) Location {
	if l.IsNull() {
		return other
	}
	if other.IsNull() {
		return l
	}
	if other.Start.Before(l.Start) {
		l.Start = other.Start
	}
	if l.End.Before(other.End) {
		l.End = other.End
	}
	return l
}

func (l Location) String() string {
	if l.IsNull() {
		return "(?)"
	}
	if l.Start == l.End {
		return fmt.Sprintf("(%s)", l.Start)
	}
	return fmt.Sprintf("(%s…%s)", l.Start, l.End)
}
