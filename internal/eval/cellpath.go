package eval

import (
	"strconv"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// evalCellPath evaluates an EFullCellPath: a head expression followed by a
// chain of string/int member accesses, each optionally marked `?` to
// suppress a missing-member error (spec.md §4.2 "Cell paths").
func (e *Evaluator) evalCellPath(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	head, err := e.EvalScalar(stack, *expr.Head, input)
	if err != nil {
		return PipelineData{}, err
	}
	v, err := followCellPath(head, expr.Tail, expr.Span)
	if err != nil {
		return PipelineData{}, err
	}
	return FromValue(v), nil
}

// FollowCellPath is followCellPath's exported form, used by
// internal/stdcmd's `get` builtin so it doesn't have to duplicate the
// table-broadcast member-stepping logic below.
func FollowCellPath(root value.Value, tail []value.PathMember, sp span.Span) (value.Value, error) {
	return followCellPath(root, tail, sp)
}

// followCellPath walks tail against root one member at a time. A Table
// (List<Record>) indexed by a string column name broadcasts across rows,
// collecting each row's value into a list (spec.md §4.2 "a column access on
// a table produces the column as a list").
func followCellPath(root value.Value, tail []value.PathMember, sp span.Span) (value.Value, error) {
	cur := root
	for _, m := range tail {
		next, err := stepCellPath(cur, m, sp)
		if err != nil {
			if m.Optional {
				return value.Nothing(sp), nil
			}
			return value.Value{}, err
		}
		cur = next
	}
	return cur, nil
}

func stepCellPath(cur value.Value, m value.PathMember, sp span.Span) (value.Value, error) {
	switch m.Kind {
	case value.PathString:
		switch cur.Tag {
		case value.TagRecord:
			v, ok := cur.Record.Get(m.Str)
			if !ok {
				return value.Value{}, diag.New(diag.KindColumnNotFound, m.Span, "no column named "+m.Str)
			}
			return v, nil
		case value.TagList:
			out := make([]value.Value, 0, len(cur.List))
			for _, row := range cur.List {
				v, err := stepCellPath(row, m, sp)
				if err != nil {
					if m.Optional {
						out = append(out, value.Nothing(sp))
						continue
					}
					return value.Value{}, err
				}
				out = append(out, v)
			}
			return value.MkList(out, sp), nil
		default:
			return value.Value{}, diag.New(diag.KindColumnNotFound, m.Span, "cannot index "+cur.Type().String()+" by column name "+m.Str)
		}
	case value.PathInt:
		switch cur.Tag {
		case value.TagList:
			i := m.Int
			if i < 0 || int(i) >= len(cur.List) {
				return value.Value{}, diag.New(diag.KindColumnNotFound, m.Span, "index "+strconv.FormatInt(i, 10)+" out of range")
			}
			return cur.List[i], nil
		case value.TagBinary:
			i := m.Int
			if i < 0 || int(i) >= len(cur.Binary) {
				return value.Value{}, diag.New(diag.KindColumnNotFound, m.Span, "index out of range")
			}
			return value.MkInt(int64(cur.Binary[i]), sp), nil
		default:
			return value.Value{}, diag.New(diag.KindColumnNotFound, m.Span, "cannot index "+cur.Type().String()+" by position")
		}
	}
	return value.Value{}, diag.New(diag.KindColumnNotFound, m.Span, "malformed cell path member")
}
