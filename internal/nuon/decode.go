package nuon

import (
	"strconv"
	"strings"

	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// decoder scans nuon source text, mirroring internal/lexer's pos-cursor
// style but over the much smaller nuon grammar (no pipelines, no commands).
type decoder struct {
	fileID uint32
	base   uint32
	src    []byte
	pos    int
}

func newDecoder(fileID, base uint32, src []byte) *decoder {
	return &decoder{fileID: fileID, base: base, src: src}
}

func (d *decoder) sp(start, end int) span.Span { return sp(d.fileID, d.base, start, end) }

func (d *decoder) errorf(start, end int, msg string) error {
	return diag.New(diag.KindUnexpectedToken, d.sp(start, end), "nuon: "+msg)
}

func (d *decoder) skipSpace() {
	for d.pos < len(d.src) {
		switch d.src[d.pos] {
		case ' ', '\t', '\r', '\n', ',':
			d.pos++
		default:
			return
		}
	}
}

func (d *decoder) peek() byte {
	if d.pos >= len(d.src) {
		return 0
	}
	return d.src[d.pos]
}

func (d *decoder) parseValue() (value.Value, error) {
	d.skipSpace()
	if d.pos >= len(d.src) {
		return value.Value{}, d.errorf(d.pos, d.pos, "unexpected end of input")
	}
	switch c := d.peek(); {
	case c == '{':
		return d.parseRecord()
	case c == '[':
		return d.parseList()
	case c == '"' || c == '\'':
		return d.parseQuotedString()
	case c == '0' && d.pos+1 < len(d.src) && (d.src[d.pos+1] == 'x'):
		return d.parseBinary()
	case c == '-' || isDigit(c):
		return d.parseNumberLike()
	default:
		return d.parseBareword()
	}
}

func (d *decoder) parseRecord() (value.Value, error) {
	start := d.pos
	d.pos++ // '{'
	var cols []string
	var vals []value.Value
	d.skipSpace()
	for d.peek() != '}' {
		if d.pos >= len(d.src) {
			return value.Value{}, d.errorf(start, d.pos, "unterminated record")
		}
		key, err := d.parseKey()
		if err != nil {
			return value.Value{}, err
		}
		d.skipSpace()
		if d.peek() != ':' {
			return value.Value{}, d.errorf(d.pos, d.pos+1, "expected ':' after record key")
		}
		d.pos++
		v, err := d.parseValue()
		if err != nil {
			return value.Value{}, err
		}
		cols = append(cols, key)
		vals = append(vals, v)
		d.skipSpace()
	}
	d.pos++ // '}'
	rec, err := value.NewRecord(cols, vals)
	if err != nil {
		return value.Value{}, d.errorf(start, d.pos, err.Error())
	}
	return value.MkRecord(rec, d.sp(start, d.pos)), nil
}

func (d *decoder) parseKey() (string, error) {
	d.skipSpace()
	if d.peek() == '"' || d.peek() == '\'' {
		v, err := d.parseQuotedString()
		if err != nil {
			return "", err
		}
		return v.Str, nil
	}
	start := d.pos
	for d.pos < len(d.src) && isBareKeyByte(d.src[d.pos]) {
		d.pos++
	}
	if d.pos == start {
		return "", d.errorf(start, start+1, "expected record key")
	}
	return string(d.src[start:d.pos]), nil
}

func isBareKeyByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || isDigit(c)
}

func (d *decoder) parseList() (value.Value, error) {
	start := d.pos
	d.pos++ // '['
	var vals []value.Value
	d.skipSpace()
	for d.peek() != ']' {
		if d.pos >= len(d.src) {
			return value.Value{}, d.errorf(start, d.pos, "unterminated list")
		}
		v, err := d.parseValue()
		if err != nil {
			return value.Value{}, err
		}
		vals = append(vals, v)
		d.skipSpace()
	}
	d.pos++ // ']'
	return value.MkList(vals, d.sp(start, d.pos)), nil
}

func (d *decoder) parseQuotedString() (value.Value, error) {
	start := d.pos
	quote := d.src[d.pos]
	d.pos++
	var b strings.Builder
	for d.pos < len(d.src) && d.src[d.pos] != quote {
		c := d.src[d.pos]
		if c == '\\' && quote == '"' && d.pos+1 < len(d.src) {
			esc := d.src[d.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			d.pos += 2
			continue
		}
		b.WriteByte(c)
		d.pos++
	}
	if d.pos >= len(d.src) {
		return value.Value{}, d.errorf(start, d.pos, "unterminated string literal")
	}
	d.pos++ // closing quote
	return value.MkString(b.String(), d.sp(start, d.pos)), nil
}

func (d *decoder) parseBinary() (value.Value, error) {
	start := d.pos
	d.pos += 2 // "0x"
	if d.peek() != '[' {
		return value.Value{}, d.errorf(start, d.pos, "expected '[' after 0x")
	}
	d.pos++
	hexStart := d.pos
	for d.pos < len(d.src) && d.src[d.pos] != ']' {
		d.pos++
	}
	if d.pos >= len(d.src) {
		return value.Value{}, d.errorf(start, d.pos, "unterminated binary literal")
	}
	hex := strings.ReplaceAll(string(d.src[hexStart:d.pos]), " ", "")
	d.pos++ // ']'
	bytes, err := decodeHex(hex)
	if err != nil {
		return value.Value{}, d.errorf(start, d.pos, err.Error())
	}
	return value.MkBinary(bytes, d.sp(start, d.pos)), nil
}

func decodeHex(hex string) ([]byte, error) {
	if len(hex)%2 != 0 {
		hex = "0" + hex
	}
	out := make([]byte, len(hex)/2)
	for i := 0; i < len(out); i++ {
		b, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

// parseNumberLike scans a leading numeric run and then, if a unit suffix
// or a date-shaped tail follows, reclassifies it as a Filesize, Duration
// or Date the same way the shell lexer defers int/float/unit disambiguation
// to a later shape-directed step (spec.md §4.1/§4.2).
func (d *decoder) parseNumberLike() (value.Value, error) {
	start := d.pos
	if d.peek() == '-' {
		d.pos++
	}
	for d.pos < len(d.src) && isDigit(d.src[d.pos]) {
		d.pos++
	}
	isFloat := false
	if d.pos < len(d.src) && d.src[d.pos] == '.' && d.pos+1 < len(d.src) && isDigit(d.src[d.pos+1]) {
		isFloat = true
		d.pos++
		for d.pos < len(d.src) && isDigit(d.src[d.pos]) {
			d.pos++
		}
	}
	numEnd := d.pos
	for d.pos < len(d.src) && !isNuonStop(d.src[d.pos]) {
		d.pos++
	}
	text := string(d.src[start:d.pos])
	suffix := string(d.src[numEnd:d.pos])
	sp := d.sp(start, d.pos)

	switch {
	case suffix == "" && isFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return value.Value{}, d.errorf(start, d.pos, "invalid float literal "+text)
		}
		return value.MkFloat(f, sp), nil
	case suffix == "":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return value.Value{}, d.errorf(start, d.pos, "invalid int literal "+text)
		}
		return value.MkInt(n, sp), nil
	case looksLikeDate(text):
		t, err := value.ParseDate(text)
		if err != nil {
			return value.Value{}, d.errorf(start, d.pos, "invalid date literal "+text)
		}
		return value.MkDate(t, sp), nil
	}
	if ns, err := value.ParseDuration(text); err == nil {
		return value.MkDuration(ns, sp), nil
	}
	if n, err := value.ParseFilesize(text); err == nil {
		return value.MkFilesize(n, sp), nil
	}
	return value.Value{}, d.errorf(start, d.pos, "unrecognised numeric literal "+text)
}

func looksLikeDate(text string) bool {
	return strings.Count(text, "-") >= 2 && len(text) >= 10
}

// isNuonStop reports whether c ends a bareword/number-like token: nuon's
// own structural punctuation and whitespace, everything else (letters,
// digits, '-', ':', '+', '.') is absorbed into the token so date/unit
// suffixes come through as one run, mirroring internal/lexer's
// tryScanNumber continuation rule.
func isNuonStop(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ',', '{', '}', '[', ']', '"', '\'':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parseBareword handles the keyword literals true/false/null and a bare
// (unquoted) date, matching spec.md §6's "dates RFC3339" spelling which
// starts with a digit and is already routed through parseNumberLike; this
// path is reached only for true/false/null.
func (d *decoder) parseBareword() (value.Value, error) {
	start := d.pos
	for d.pos < len(d.src) && isBareKeyByte(d.src[d.pos]) {
		d.pos++
	}
	word := string(d.src[start:d.pos])
	spv := d.sp(start, d.pos)
	switch word {
	case "true":
		return value.MkBool(true, spv), nil
	case "false":
		return value.MkBool(false, spv), nil
	case "null":
		return value.Nothing(spv), nil
	}
	return value.Value{}, d.errorf(start, d.pos, "unrecognised literal "+word)
}
