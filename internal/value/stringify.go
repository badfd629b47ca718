package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Display renders v using the canonical, locale-independent stringification
// spec.md §4.2 (Interpolation) requires: numbers in locale-independent
// form, dates as RFC3339, records/lists as compact nuon. It is also used by
// external-command argument conversion (spec.md §6).
func Display(v Value) string {
	switch v.Tag {
	case TagNothing:
		return ""
	case TagBool:
		return strconv.FormatBool(v.Bool)
	case TagInt:
		return strconv.FormatInt(v.Int, 10)
	case TagFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TagFilesize:
		return HumanizeBytes(v.Filesize)
	case TagDuration:
		return formatDuration(v.Duration)
	case TagDate:
		return FormatDate(v.Date)
	case TagString:
		return v.Str
	case TagGlob:
		return v.Str
	case TagBinary:
		return fmt.Sprintf("0x[%x]", v.Binary)
	case TagCellPath:
		return formatCellPath(v.CellPath)
	case TagRange:
		return formatRange(v.Range)
	case TagRecord, TagList:
		return compactNuon(v)
	case TagClosure:
		return "<closure>"
	case TagError:
		return v.Err.Error()
	}
	return ""
}

func formatDuration(ns int64) string {
	switch {
	case ns%int64(1e9*60*60*24) == 0 && ns != 0:
		return fmt.Sprintf("%dday", ns/int64(1e9*60*60*24))
	case ns%int64(1e9) == 0:
		return fmt.Sprintf("%dsec", ns/int64(1e9))
	case ns%int64(1e6) == 0:
		return fmt.Sprintf("%dms", ns/int64(1e6))
	default:
		return fmt.Sprintf("%dns", ns)
	}
}

func formatCellPath(members []PathMember) string {
	var b strings.Builder
	for _, m := range members {
		b.WriteString(".")
		if m.Optional {
			b.WriteString("?")
		}
		if m.Kind == PathString {
			b.WriteString(m.Str)
		} else {
			b.WriteString(strconv.FormatInt(m.Int, 10))
		}
	}
	return strings.TrimPrefix(b.String(), ".")
}

func formatRange(r RangeVal) string {
	op := ".."
	if r.Inclusivity == Exclusive {
		op = "..<"
	}
	if !r.HasTo {
		return fmt.Sprintf("%d..", r.From)
	}
	return fmt.Sprintf("%d%s%d", r.From, op, r.To)
}

// compactNuon renders a Record/List compactly, used by Display for
// non-scalar interpolation segments.
func compactNuon(v Value) string {
	switch v.Tag {
	case TagRecord:
		var b strings.Builder
		b.WriteString("{")
		for i := 0; i < v.Record.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			c, val := v.Record.At(i)
			b.WriteString(c)
			b.WriteString(": ")
			b.WriteString(Display(val))
		}
		b.WriteString("}")
		return b.String()
	case TagList:
		var b strings.Builder
		b.WriteString("[")
		for i, val := range v.List {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Display(val))
		}
		b.WriteString("]")
		return b.String()
	}
	return Display(v)
}
