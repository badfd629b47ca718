package value

import (
	"fmt"
	"time"

	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
)

// Tag discriminates the Value sum type (spec.md §3).
type Tag int

const (
	TagNothing Tag = iota
	TagBool
	TagInt
	TagFloat
	TagFilesize
	TagDuration
	TagDate
	TagRange
	TagString
	TagBinary
	TagGlob
	TagCellPath
	TagRecord
	TagList
	TagClosure
	TagError
)

// Inclusivity describes whether a Range's upper bound is included.
type Inclusivity int

const (
	Inclusive Inclusivity = iota
	Exclusive
)

// RangeVal is the runtime representation of a Range value. To/HasTo
// distinguishes a bounded range from `a..` (unbounded above).
type RangeVal struct {
	From        int64
	Step        int64
	To          int64
	HasTo       bool
	Inclusivity Inclusivity
}

// Contains reports numeric containment respecting step direction and
// inclusivity, per spec.md §4.3 "Range iteration".
func (r RangeVal) Contains(n int64) bool {
	if r.Step == 0 {
		return n == r.From
	}
	if r.Step > 0 {
		if n < r.From {
			return false
		}
		if r.HasTo {
			if r.Inclusivity == Inclusive && n > r.To {
				return false
			}
			if r.Inclusivity == Exclusive && n >= r.To {
				return false
			}
		}
	} else {
		if n > r.From {
			return false
		}
		if r.HasTo {
			if r.Inclusivity == Inclusive && n < r.To {
				return false
			}
			if r.Inclusivity == Exclusive && n <= r.To {
				return false
			}
		}
	}
	return (n-r.From)%r.Step == 0
}

// Iter yields every element of the range in order. An impossible range
// (e.g. step sign disagrees with from/to ordering) yields nothing.
func (r RangeVal) Iter(yield func(int64) bool) {
	if r.Step == 0 {
		return
	}
	n := r.From
	for {
		if r.HasTo {
			if r.Step > 0 {
				if r.Inclusivity == Inclusive && n > r.To {
					return
				}
				if r.Inclusivity == Exclusive && n >= r.To {
					return
				}
			} else {
				if r.Inclusivity == Inclusive && n < r.To {
					return
				}
				if r.Inclusivity == Exclusive && n <= r.To {
					return
				}
			}
		}
		if !yield(n) {
			return
		}
		n += r.Step
	}
}

// PathMemberKind distinguishes a string field access from an int index.
type PathMemberKind int

const (
	PathString PathMemberKind = iota
	PathInt
)

// PathMember is one step of a cell path (spec.md §3/§4.2).
type PathMember struct {
	Kind     PathMemberKind
	Str      string
	Int      int64
	Optional bool
	Span     span.Span
}

// Closure is a runtime closure value: a reference to a parsed block plus
// its captured variable bindings, copied by value at construction time
// (spec.md §4.3 Closures).
type Closure struct {
	BlockID      uint32
	CapturedVars map[uint32]Value // VarId -> captured Value, copy-by-value
}

// record is the backing store for a Record value: an insertion-ordered
// mapping from column name to Value, duplicate keys forbidden at
// construction (spec.md §3, §8 record-key-uniqueness invariant).
type record struct {
	cols []string
	vals []Value
}

// Record is the ordered str->Value mapping used by both Record and Table
// values (a Table is represented as a List of structurally-identical
// Records).
type Record struct {
	r *record
}

// NewRecord builds a Record from parallel cols/vals slices, erroring if any
// column name repeats.
func NewRecord(cols []string, vals []Value) (Record, error) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return Record{}, fmt.Errorf("column %q defined twice", c)
		}
		seen[c] = true
	}
	return Record{r: &record{cols: append([]string{}, cols...), vals: append([]Value{}, vals...)}}, nil
}

// Len returns the number of columns.
func (r Record) Len() int {
	if r.r == nil {
		return 0
	}
	return len(r.r.cols)
}

// Columns returns the column names in insertion order.
func (r Record) Columns() []string {
	if r.r == nil {
		return nil
	}
	return r.r.cols
}

// Get returns the value under col and whether it was present.
func (r Record) Get(col string) (Value, bool) {
	if r.r == nil {
		return Value{}, false
	}
	for i, c := range r.r.cols {
		if c == col {
			return r.r.vals[i], true
		}
	}
	return Value{}, false
}

// At returns the i-th column/value pair in insertion order.
func (r Record) At(i int) (string, Value) {
	return r.r.cols[i], r.r.vals[i]
}

// WithSpread merges other's fields into r, erroring on a duplicate key
// between r and other (spec.md §4.2 Spread / §8 scenario 10).
func (r Record) WithSpread(other Record) (Record, error) {
	cols := append([]string{}, r.Columns()...)
	vals := make([]Value, len(cols))
	if r.r != nil {
		copy(vals, r.r.vals)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}
	for i := 0; i < other.Len(); i++ {
		c, v := other.At(i)
		if seen[c] {
			return Record{}, fmt.Errorf("column %q defined twice", c)
		}
		seen[c] = true
		cols = append(cols, c)
		vals = append(vals, v)
	}
	return NewRecord(cols, vals)
}

// Value is the tagged-sum runtime value described in spec.md §3. Every
// Value carries the Span of the expression that produced it.
type Value struct {
	Tag  Tag
	Span span.Span

	Bool     bool
	Int      int64
	Float    float64
	Filesize int64 // bytes
	Duration int64 // nanoseconds
	Date     time.Time
	Range    RangeVal
	Str      string
	Binary   []byte
	CellPath []PathMember
	Record   Record
	List     []Value
	Closure  Closure
	Err      *diag.Error
}

// Nothing returns the Nothing value at s.
func Nothing(s span.Span) Value { return Value{Tag: TagNothing, Span: s} }

// MkBool constructs a Bool value.
func MkBool(b bool, s span.Span) Value { return Value{Tag: TagBool, Bool: b, Span: s} }

// MkInt constructs an Int value.
func MkInt(i int64, s span.Span) Value { return Value{Tag: TagInt, Int: i, Span: s} }

// MkFloat constructs a Float value.
func MkFloat(f float64, s span.Span) Value { return Value{Tag: TagFloat, Float: f, Span: s} }

// MkString constructs a String value.
func MkString(str string, s span.Span) Value { return Value{Tag: TagString, Str: str, Span: s} }

// MkFilesize constructs a Filesize value (byte count).
func MkFilesize(bytes int64, s span.Span) Value { return Value{Tag: TagFilesize, Filesize: bytes, Span: s} }

// MkDuration constructs a Duration value (nanoseconds).
func MkDuration(ns int64, s span.Span) Value { return Value{Tag: TagDuration, Duration: ns, Span: s} }

// MkDate constructs a Date value.
func MkDate(t time.Time, s span.Span) Value { return Value{Tag: TagDate, Date: t, Span: s} }

// MkRange constructs a Range value.
func MkRange(r RangeVal, s span.Span) Value { return Value{Tag: TagRange, Range: r, Span: s} }

// MkBinary constructs a Binary value.
func MkBinary(b []byte, s span.Span) Value { return Value{Tag: TagBinary, Binary: b, Span: s} }

// MkGlob constructs a Glob value (stored as Str).
func MkGlob(pattern string, s span.Span) Value { return Value{Tag: TagGlob, Str: pattern, Span: s} }

// MkCellPath constructs a CellPath value.
func MkCellPath(p []PathMember, s span.Span) Value { return Value{Tag: TagCellPath, CellPath: p, Span: s} }

// MkRecord constructs a Record value.
func MkRecord(r Record, s span.Span) Value { return Value{Tag: TagRecord, Record: r, Span: s} }

// MkList constructs a List value.
func MkList(vs []Value, s span.Span) Value { return Value{Tag: TagList, List: vs, Span: s} }

// MkClosure constructs a Closure value.
func MkClosure(c Closure, s span.Span) Value { return Value{Tag: TagClosure, Closure: c, Span: s} }

// MkError constructs an Error value wrapping a ShellError diagnostic.
func MkError(e *diag.Error, s span.Span) Value { return Value{Tag: TagError, Err: e, Span: s} }

// Type computes the static Type of v. For List/Table the element/field
// types are derived from the runtime contents (used by `describe` and by
// the evaluator's own sanity checks; the parser computes static types
// independently during inference).
func (v Value) Type() Type {
	switch v.Tag {
	case TagNothing:
		return Nothing
	case TagBool:
		return Bool
	case TagInt:
		return Int
	case TagFloat:
		return Float
	case TagFilesize:
		return Filesize
	case TagDuration:
		return Duration
	case TagDate:
		return Date
	case TagRange:
		return Type{Kind: KindAny} // ranges are polymorphic over int today
	case TagString:
		return String
	case TagBinary:
		return Binary
	case TagGlob:
		return Glob
	case TagCellPath:
		return CellPath
	case TagRecord:
		fields := make([]Field, 0, v.Record.Len())
		for i := 0; i < v.Record.Len(); i++ {
			c, val := v.Record.At(i)
			fields = append(fields, Field{Name: c, Type: val.Type()})
		}
		return Record(fields...)
	case TagList:
		return listType(v.List)
	case TagClosure:
		return Closure
	case TagError:
		return ErrorTy
	}
	return Any
}

// listType infers the element type of a runtime list: if every element is
// a Record with identical columns it is a Table; otherwise it's List<Join
// of all element types>.
func listType(vs []Value) Type {
	if len(vs) == 0 {
		return List(Nothing)
	}
	allRecords := true
	var cols []string
	for i, v := range vs {
		if v.Tag != TagRecord {
			allRecords = false
			break
		}
		if i == 0 {
			cols = v.Record.Columns()
		}
	}
	if allRecords {
		fields := make([]Field, 0, len(cols))
		for _, c := range cols {
			var ft Type = Nothing
			for _, v := range vs {
				val, ok := v.Record.Get(c)
				if !ok {
					ft = Any
					break
				}
				ft = Join(ft, val.Type())
			}
			fields = append(fields, Field{Name: c, Type: ft})
		}
		return Table(fields...)
	}
	elem := Nothing
	for _, v := range vs {
		elem = Join(elem, v.Type())
	}
	return List(elem)
}

// IsTruthy implements the language's notion of truthiness for `if`
// conditions and short-circuit operators: only Bool values participate;
// everything else is a static/runtime type error at the call site, so
// IsTruthy is only ever invoked after a Bool type check elsewhere.
func (v Value) IsTruthy() bool { return v.Tag == TagBool && v.Bool }
