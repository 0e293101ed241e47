package rewrite

import (
	"strconv"
	"strings"
)

// Position locates an error in the source of a class.
type Position struct {
	Class  string // internal name
	Method string
	Source string
	Line   int
}

func (p Position) String() string {
	var b strings.Builder
	b.WriteString("at ")
	b.WriteString(strings.ReplaceAll(p.Class, "/", "."))
	b.WriteByte('.')
	b.WriteString(p.Method)
	b.WriteByte('(')
	if p.Source != "" {
		b.WriteString(p.Source)
	} else {
		b.WriteString("Unknown Source")
	}
	if p.Line != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.Line))
	}
	b.WriteByte(')')
	return b.String()
}

// MalformedExpressionError reports marker code the rewriter cannot resolve.
type MalformedExpressionError struct {
	Msg string
	Position
}

func (e *MalformedExpressionError) Error() string {
	return e.Msg + ": " + e.Position.String()
}

// UnsupportedForkError reports a language level comparison that cannot be
// turned into a multi-release fork.
type UnsupportedForkError struct {
	Msg string
	Position
}

func (e *UnsupportedForkError) Error() string {
	return e.Msg + ": " + e.Position.String()
}
