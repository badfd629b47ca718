// Package nuon implements the canonical textual value format described in
// spec.md §6: a superset of JSON that additionally spells durations
// (`4sec`), filesizes (`10mb`), dates (RFC3339) and binary (`0x[…]`)
// directly, so that `nuon -> Value -> nuon` round-trips losslessly for
// every Value tag nushell's own nuon format covers. It is a hand-written
// recursive-descent scanner/parser in the style of internal/lexer, not a
// generated grammar, since the format is small and needs exact control
// over round-trip spelling.
package nuon

import (
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// Marshal renders v as canonical nuon text.
func Marshal(v value.Value) (string, error) {
	var b builder
	if err := b.encode(v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Unmarshal parses nuon source text into a Value. fileID/base let the
// result's spans point back into a Registry the same way lexer.New does,
// for callers (e.g. a `from nuon`/`open` builtin) that register the text
// as a source file; pass 0/0 when the text has no corresponding file.
func Unmarshal(fileID uint32, base uint32, src []byte) (value.Value, error) {
	d := newDecoder(fileID, base, src)
	v, err := d.parseValue()
	if err != nil {
		return value.Value{}, err
	}
	d.skipSpace()
	if d.pos != len(d.src) {
		return value.Value{}, d.errorf(d.pos, d.pos+1, "trailing data after nuon value")
	}
	return v, nil
}

func sp(fileID, base uint32, start, end int) span.Span {
	return span.Span{Start: base + uint32(start), End: base + uint32(end), FileID: fileID}
}
