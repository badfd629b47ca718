package ast

import (
	"github.com/shellcore/shellcore/internal/value"
)

// Shape is the parser's static expectation for a token position (spec.md
// §4.2 "Shape-directed expansion").
type Shape int

const (
	ShapeInt Shape = iota
	ShapeNumber
	ShapeString
	ShapeFilepath
	ShapeCellPath
	ShapeMathExpression
	ShapeBlock
	ShapeClosure
	ShapeSignature
	ShapeVarWithOptType
	ShapeImportPattern
	ShapeTable
	ShapeRecord
	ShapeExpression
	ShapeAny
	ShapeKeyword
	ShapeOneOf
)

// Param is one positional or named parameter of a Signature.
type Param struct {
	Name     string
	Shape    Shape
	Type     value.Type
	Required bool
	Default  Expression // zero Expression (Span == span.Unknown) if no default
	// Named-parameter-only fields:
	IsNamed  bool
	Short    rune // 0 if none
	IsSwitch bool
	// VarId is the VarId the parser declared for this parameter inside the
	// def body's lexical scope, so the evaluator can bind an argument Value
	// directly into the callee Stack by id rather than by re-resolving the
	// name (spec.md §4.3 "Call evaluation" step 2).
	VarId VarId
}

// IoPair is one declared (input type -> output type) pair of a Signature;
// a command may declare several, disambiguated at call sites by matching
// the incoming pipeline input type (spec.md §4.2 "Type inference").
type IoPair struct {
	In  value.Type
	Out value.Type
}

// Signature is the parameter list plus io-type pairs and usage strings
// (spec.md §3).
type Signature struct {
	Name       string
	Positional []Param
	Rest       *Param // nil if no rest parameter
	Named      []Param
	IOPairs    []IoPair
	Usage      string
	ExtraUsage string
}

// FindNamed returns the named Param matching long or short, and whether it
// was found. Matching is exact on the long name or the short rune; neither
// FindNamed nor the parser's bindCall accepts a prefix of a long name.
func (s *Signature) FindNamed(long string, short rune) (Param, bool) {
	for _, p := range s.Named {
		if p.Name == long || (short != 0 && p.Short == short) {
			return p, true
		}
	}
	return Param{}, false
}

// OutputFor returns the declared output type best matching inputTy: first
// an exact/subtype match of In, falling back to the first declared pair if
// none match exactly (spec.md §4.2 "the one whose declared input type best
// matches the pipeline input type wins").
func (s *Signature) OutputFor(inputTy value.Type) value.Type {
	if len(s.IOPairs) == 0 {
		return value.Any
	}
	for _, p := range s.IOPairs {
		if inputTy.IsSubtype(p.In) {
			return p.Out
		}
	}
	return s.IOPairs[0].Out
}
