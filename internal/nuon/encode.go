package nuon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/shellcore/shellcore/internal/value"
)

// builder accumulates nuon output text.
type builder struct {
	strings.Builder
}

// encode writes v's canonical nuon spelling (spec.md §6). Closure, Error,
// Range and CellPath carry no textual nuon form in the corpus this was
// distilled from, so encoding one is an error rather than a silent
// best-effort rendering.
func (b *builder) encode(v value.Value) error {
	switch v.Tag {
	case value.TagNothing:
		b.WriteString("null")
	case value.TagBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case value.TagInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case value.TagFloat:
		b.WriteString(formatFloat(v.Float))
	case value.TagFilesize:
		b.WriteString(formatFilesize(v.Filesize))
	case value.TagDuration:
		b.WriteString(formatDuration(v.Duration))
	case value.TagDate:
		b.WriteString(value.FormatDate(v.Date))
	case value.TagString:
		b.WriteString(quoteString(v.Str))
	case value.TagBinary:
		b.WriteString(fmt.Sprintf("0x[%x]", v.Binary))
	case value.TagRecord:
		return b.encodeRecord(v.Record)
	case value.TagList:
		return b.encodeList(v.List)
	default:
		return errors.Errorf("nuon: %s has no canonical textual form", v.Type().String())
	}
	return nil
}

func (b *builder) encodeRecord(r value.Record) error {
	b.WriteString("{")
	for i := 0; i < r.Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		col, val := r.At(i)
		b.WriteString(encodeKey(col))
		b.WriteString(": ")
		if err := b.encode(val); err != nil {
			return err
		}
	}
	b.WriteString("}")
	return nil
}

func (b *builder) encodeList(vs []value.Value) error {
	b.WriteString("[")
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := b.encode(v); err != nil {
			return err
		}
	}
	b.WriteString("]")
	return nil
}

// encodeKey renders a record column name bare when it's a safe identifier,
// quoted otherwise, matching the decoder's bareKey acceptance below.
func encodeKey(col string) string {
	if col != "" && isBareKey(col) {
		return col
	}
	return quoteString(col)
}

func isBareKey(s string) bool {
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// quoteString renders s as a double-quoted nuon string literal, escaping
// `"`, `\`, newline, tab and carriage return, the escapes the decoder's
// parseQuotedString reads back; every other rune is written as is.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// formatFloat always keeps a decimal point so a round-tripped float never
// reads back as an Int (spec.md §6 "nuon -> Value -> nuon is stable").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// formatDuration picks the coarsest unit that divides ns evenly, matching
// internal/value/stringify.go's formatDuration (unexported there, so this
// is a deliberate small duplicate rather than a cross-package export for a
// one-line helper).
func formatDuration(ns int64) string {
	switch {
	case ns != 0 && ns%int64(24*60*60*1e9) == 0:
		return fmt.Sprintf("%dday", ns/int64(24*60*60*1e9))
	case ns%int64(1e9) == 0:
		return fmt.Sprintf("%dsec", ns/int64(1e9))
	case ns%int64(1e6) == 0:
		return fmt.Sprintf("%dms", ns/int64(1e6))
	default:
		return fmt.Sprintf("%dns", ns)
	}
}

// formatFilesize picks the coarsest decimal SI unit that divides bytes
// evenly, so a round-tripped filesize reads back to the same byte count
// (spec.md §6 "decimal SI by default"). value.ParseFilesize's
// humanize.ParseBytes backend accepts this lowercase number+suffix
// spelling (e.g. "10mb", "999b").
func formatFilesize(bytes int64) string {
	units := []struct {
		suffix string
		mult   int64
	}{
		{"tb", 1_000_000_000_000},
		{"gb", 1_000_000_000},
		{"mb", 1_000_000},
		{"kb", 1_000},
	}
	for _, u := range units {
		if bytes != 0 && bytes%u.mult == 0 {
			return fmt.Sprintf("%d%s", bytes/u.mult, u.suffix)
		}
	}
	return fmt.Sprintf("%db", bytes)
}
