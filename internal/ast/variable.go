package ast

import (
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// Variable is an entry in EngineState's variable table (spec.md §3). Its
// VarId remains valid after the declaring block's dynamic scope ends; the
// actual runtime value lives on the evaluator's Stack, not here. ConstVal
// is set only for `const` declarations, whose value is known at parse
// time (spec.md §4.2 "Constant evaluation").
type Variable struct {
	Name     string
	Type     value.Type
	ConstVal *value.Value
	Mutable  bool
	Span     span.Span
}
