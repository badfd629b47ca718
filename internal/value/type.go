// Package value implements the runtime value universe (§3 Value/Type of
// the language spec) and its subtyping lattice, used both during parsing
// (static type inference) and evaluation (runtime tags).
package value

import "strings"

// Kind tags the shape of a Type without its parameters.
type Kind int

const (
	KindAny Kind = iota
	KindNothing
	KindBool
	KindInt
	KindFloat
	KindNumber // Int | Float
	KindString
	KindFilesize
	KindDuration
	KindDate
	KindGlob
	KindBinary
	KindCellPath
	KindError
	KindList
	KindRecord
	KindTable // List of identical Records
	KindClosure
	KindBlock
)

var kindNames = map[Kind]string{
	KindAny: "any", KindNothing: "nothing", KindBool: "bool", KindInt: "int",
	KindFloat: "float", KindNumber: "number", KindString: "string",
	KindFilesize: "filesize", KindDuration: "duration", KindDate: "date",
	KindGlob: "glob", KindBinary: "binary", KindCellPath: "cell-path",
	KindError: "error", KindList: "list", KindRecord: "record",
	KindTable: "table", KindClosure: "closure", KindBlock: "block",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Field describes one named member of a Record/Table type.
type Field struct {
	Name string
	Type Type
}

// Type is the value type lattice described in spec.md §3: primitives, plus
// parameterised List/Record/Table/Closure/Block, with Any at the top.
type Type struct {
	Kind   Kind
	Elem   *Type   // List element type
	Fields []Field // Record/Table field types, in declaration order
}

// Any, Nothing and the primitive types are exposed as ready-made values
// since they carry no parameters.
var (
	Any      = Type{Kind: KindAny}
	Nothing  = Type{Kind: KindNothing}
	Bool     = Type{Kind: KindBool}
	Int      = Type{Kind: KindInt}
	Float    = Type{Kind: KindFloat}
	Number   = Type{Kind: KindNumber}
	String   = Type{Kind: KindString}
	Filesize = Type{Kind: KindFilesize}
	Duration = Type{Kind: KindDuration}
	Date     = Type{Kind: KindDate}
	Glob     = Type{Kind: KindGlob}
	Binary   = Type{Kind: KindBinary}
	CellPath = Type{Kind: KindCellPath}
	ErrorTy  = Type{Kind: KindError}
	Closure  = Type{Kind: KindClosure}
	Block    = Type{Kind: KindBlock}
)

// List constructs a List<Elem> type.
func List(elem Type) Type { return Type{Kind: KindList, Elem: &elem} }

// Record constructs a Record<{...}> type from ordered fields.
func Record(fields ...Field) Type { return Type{Kind: KindRecord, Fields: fields} }

// Table constructs a Table<{...}> type: a List of identical Records.
func Table(fields ...Field) Type { return Type{Kind: KindTable, Fields: fields} }

// String renders the type in nuon/shell notation, e.g. "list<int>",
// "record<name: string, age: int>".
func (t Type) String() string {
	switch t.Kind {
	case KindList:
		if t.Elem == nil {
			return "list<any>"
		}
		return "list<" + t.Elem.String() + ">"
	case KindRecord, KindTable:
		var b strings.Builder
		if t.Kind == KindTable {
			b.WriteString("table<")
		} else {
			b.WriteString("record<")
		}
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Type.String())
		}
		b.WriteString(">")
		return b.String()
	default:
		return t.Kind.String()
	}
}

// fieldIndex returns the index of name in fields, or -1.
func fieldIndex(fields []Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// IsSubtype reports whether t <: u in the lattice of spec.md §3:
//   - Any absorbs everywhere it is annotated (both as sub- and super-type
//     position, matching "Any absorbs everywhere it is annotated").
//   - Int, Float <: Number.
//   - List<T> <: List<U> iff T <: U; List<Nothing> <: List<T> for any T.
//   - Record<{...}> <: Record<{...}> by width (extra fields allowed on the
//     subtype) and depth (each shared field's type is itself a subtype).
//   - Table follows the same width/depth rule as Record.
func (t Type) IsSubtype(u Type) bool {
	if u.Kind == KindAny || t.Kind == KindAny {
		return true
	}
	if t.Kind == KindNothing {
		// Nothing is the bottom of the lattice for list element purposes;
		// treat Nothing <: anything so List<Nothing> <: List<T>.
		return true
	}
	if t.Kind == u.Kind {
		switch t.Kind {
		case KindList:
			te, ue := elemOrAny(t), elemOrAny(u)
			return te.IsSubtype(ue)
		case KindRecord, KindTable:
			return recordSubtype(t.Fields, u.Fields)
		default:
			return true
		}
	}
	if (t.Kind == KindInt || t.Kind == KindFloat) && u.Kind == KindNumber {
		return true
	}
	// A Table is structurally also a List<Record<...>>; and vice versa a
	// List whose element is a matching Record can satisfy a Table position.
	if t.Kind == KindTable && u.Kind == KindList {
		ue := elemOrAny(u)
		return ue.Kind == KindAny || (ue.Kind == KindRecord && recordSubtype(t.Fields, ue.Fields))
	}
	if t.Kind == KindList && u.Kind == KindTable {
		te := elemOrAny(t)
		return te.Kind == KindRecord && recordSubtype(te.Fields, u.Fields)
	}
	return false
}

func elemOrAny(t Type) Type {
	if t.Elem == nil {
		return Any
	}
	return *t.Elem
}

func recordSubtype(subFields, superFields []Field) bool {
	for _, sf := range superFields {
		i := fieldIndex(subFields, sf.Name)
		if i < 0 {
			return false // super requires a field the sub doesn't have
		}
		if !subFields[i].Type.IsSubtype(sf.Type) {
			return false
		}
	}
	return true // extra fields on sub (width subtyping) are fine
}

// Join returns the least upper bound of t and u in the lattice: used when
// inferring the element type of a mixed-literal list. Differing primitive
// kinds (other than the Int/Float -> Number rule) widen all the way to Any.
func Join(t, u Type) Type {
	if t.Kind == KindNothing {
		return u
	}
	if u.Kind == KindNothing {
		return t
	}
	if t.IsSubtype(u) {
		return u
	}
	if u.IsSubtype(t) {
		return t
	}
	if (t.Kind == KindInt || t.Kind == KindFloat) && (u.Kind == KindInt || u.Kind == KindFloat) {
		return Number
	}
	if t.Kind == KindList && u.Kind == KindList {
		return List(Join(elemOrAny(t), elemOrAny(u)))
	}
	return Any
}
