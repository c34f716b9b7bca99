package express

import (
	"regexp"
	"strings"

	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

// Value is the outcome of resolving one expression field.
type Value struct {
	Value      string
	IsCompound bool
	Symbol     *symbols.Symbol // nil for literals and compound expressions
}

func (v Value) String() string {
	return v.Value
}

func (v Value) IsEmpty() bool {
	return v.Value == ""
}

// Paren returns the value ready to be embedded into a larger expression.
func (v Value) Paren() string {
	if v.IsCompound {
		return "(" + v.Value + ")"
	}
	return v.Value
}

var (
	literalPattern   = regexp.MustCompile(`^(?i:TRUE|FALSE|[+-]?\d+(\.\d+)?([eE][+-]?\d+)?|[A-Z0-9]*#[0-9A-Z_#:.+\-]+)$`)
	plainNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// IsLiteral reports whether text is an SCL constant: TRUE, FALSE, a number
// or a typed literal such as W#16#1F, T#5S or S5T#2S.
func IsLiteral(text string) bool {
	return literalPattern.MatchString(strings.TrimSpace(text))
}
