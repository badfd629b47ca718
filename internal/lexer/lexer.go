package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
)

// operatorGlyphs lists every multi/single-char operator the lexer
// recognises as one TOperator token, longest first so e.g. "==" isn't
// split into two "=" tokens.
var operatorGlyphs = []string{
	"//", "**", "==", "!=", "<=", ">=", "++", "=~", "!~",
	"bit-and", "bit-or", "bit-xor", "bit-shl", "bit-shr",
	"not-in", "..<", "..", ".", "?", "+", "-", "*", "/", "%",
	"<", ">", "=", "!", "$",
}

// Lexer scans a byte slice, already registered under fileID at base, into
// Tokens (spec.md §4.1).
type Lexer struct {
	fileID uint32
	base   uint32 // absolute offset of src[0]
	src    []byte
	pos    int

	depth      []byte // stack of open delimiters, for unbalanced-delimiter detection
	errs       diag.Bag
}

// New returns a Lexer over src, whose absolute spans are computed against
// base (the file's starting offset in the shared Registry).
func New(fileID uint32, base uint32, src []byte) *Lexer {
	return &Lexer{fileID: fileID, base: base, src: src}
}

// Errors returns every diagnostic recorded while scanning.
func (l *Lexer) Errors() []*diag.Error { return l.errs.Errors() }

func (l *Lexer) sp(start, end int) span.Span {
	return span.Span{Start: l.base + uint32(start), End: l.base + uint32(end), FileID: l.fileID}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

// Tokenize runs the lexer to completion, returning every token (including
// a trailing TEOF) plus any diagnostics. It never aborts on the first
// error: a malformed escape or unbalanced delimiter is recorded and
// scanning continues, matching spec.md §4.1 "Failure semantics".
func (l *Lexer) Tokenize() []Token {
	var toks []Token
	for {
		t, ok := l.next()
		if !ok {
			break
		}
		toks = append(toks, t)
	}
	toks = append(toks, Token{Kind: TEOF, Span: l.sp(len(l.src), len(l.src))})
	if len(l.depth) > 0 {
		l.errs.Add(diag.New(diag.KindUnbalancedDelimiter, l.sp(len(l.src), len(l.src)),
			fmt.Sprintf("unbalanced delimiter: %d unclosed %q", len(l.depth), l.depth)))
	}
	return toks
}

func (l *Lexer) next() (Token, bool) {
	l.skipInsignificantWhitespace()
	if l.pos >= len(l.src) {
		return Token{}, false
	}
	start := l.pos
	c := l.peek()

	switch {
	case c == '\n':
		l.pos++
		return Token{Kind: TNewline, Text: "\n", Span: l.sp(start, l.pos)}, true
	case c == '#':
		for l.pos < len(l.src) && l.src[l.pos] != '\n' {
			l.pos++
		}
		return Token{Kind: TComment, Text: string(l.src[start:l.pos]), Span: l.sp(start, l.pos)}, true
	case c == ';':
		l.pos++
		return Token{Kind: TSemicolon, Text: ";", Span: l.sp(start, l.pos)}, true
	case c == '|':
		l.pos++
		return Token{Kind: TPipe, Text: "|", Span: l.sp(start, l.pos)}, true
	case c == '(':
		l.pos++
		l.depth = append(l.depth, '(')
		return Token{Kind: TOpenParen, Text: "(", Span: l.sp(start, l.pos)}, true
	case c == ')':
		l.pos++
		l.popDelim('(', start)
		return Token{Kind: TCloseParen, Text: ")", Span: l.sp(start, l.pos)}, true
	case c == '[':
		l.pos++
		l.depth = append(l.depth, '[')
		return Token{Kind: TOpenBracket, Text: "[", Span: l.sp(start, l.pos)}, true
	case c == ']':
		l.pos++
		l.popDelim('[', start)
		return Token{Kind: TCloseBracket, Text: "]", Span: l.sp(start, l.pos)}, true
	case c == '{':
		l.pos++
		l.depth = append(l.depth, '{')
		return Token{Kind: TOpenBrace, Text: "{", Span: l.sp(start, l.pos)}, true
	case c == '}':
		l.pos++
		l.popDelim('{', start)
		return Token{Kind: TCloseBrace, Text: "}", Span: l.sp(start, l.pos)}, true
	case c == '\'':
		return l.scanSingleQuoted(start)
	case c == '"':
		return l.scanDoubleQuoted(start)
	case c == '`':
		return l.scanBacktick(start)
	case isDigit(c) || (c == '-' && isDigit(l.peekAt(1))):
		if t, ok := l.tryScanNumber(start); ok {
			return t, true
		}
		fallthrough
	default:
		return l.scanWordOrOperator(start)
	}
}

func (l *Lexer) popDelim(want byte, start int) {
	if len(l.depth) == 0 || l.depth[len(l.depth)-1] != want {
		l.errs.Add(diag.New(diag.KindUnbalancedDelimiter, l.sp(start, start+1),
			fmt.Sprintf("unexpected closing delimiter, no matching %q", want)))
		return
	}
	l.depth = l.depth[:len(l.depth)-1]
}

// skipInsignificantWhitespace consumes spaces/tabs and line-continuation
// sequences (a trailing backslash before newline, spec.md §4.1), but
// leaves newlines themselves for the caller to tokenize.
func (l *Lexer) skipInsignificantWhitespace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\\' && l.peekAt(1) == '\n':
			l.pos += 2
		case c == '\\' && l.peekAt(1) == '\r' && l.peekAt(2) == '\n':
			l.pos += 3
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordByte(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '|', ';', '(', ')', '[', ']', '{', '}', '\'', '"', '`', '#':
		return false
	}
	return true
}

func (l *Lexer) tryScanNumber(start int) (Token, bool) {
	i := l.pos
	if l.src[i] == '-' {
		i++
	}
	sawDigit := false
	for i < len(l.src) && isDigit(l.src[i]) {
		i++
		sawDigit = true
	}
	if i < len(l.src) && l.src[i] == '.' && i+1 < len(l.src) && isDigit(l.src[i+1]) {
		i++
		for i < len(l.src) && isDigit(l.src[i]) {
			i++
		}
	}
	if !sawDigit {
		return Token{}, false
	}
	// A number may be immediately followed by a unit suffix (duration /
	// filesize literal) which is still word-shaped; absorb the whole run
	// as one token and let the parser's shape layer decide int/float vs.
	// duration/filesize.
	for i < len(l.src) && isWordByte(l.src[i]) && !isDelimStart(l.src[i]) {
		i++
	}
	text := string(l.src[l.pos:i])
	l.pos = i
	return Token{Kind: TNumber, Text: text, Raw: text, Span: l.sp(start, l.pos)}, true
}

func isDelimStart(c byte) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}':
		return true
	}
	return false
}

func (l *Lexer) scanWordOrOperator(start int) (Token, bool) {
	for _, g := range operatorGlyphs {
		if strings.HasPrefix(string(l.src[l.pos:]), g) {
			// Only treat as a standalone operator token if not immediately
			// continuing into more word characters (so e.g. "--force" isn't
			// chopped at "-").
			end := l.pos + len(g)
			if end >= len(l.src) || !isBareContinuation(l.src[end]) || g == "." || g == ".." || g == "..<" {
				l.pos = end
				return Token{Kind: TOperator, Text: g, Span: l.sp(start, l.pos)}, true
			}
		}
	}
	for l.pos < len(l.src) && isWordByte(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		// Unrecognised single byte; consume it to guarantee forward
		// progress and keep lexing after recording a diagnostic.
		l.errs.Add(diag.New(diag.KindUnexpectedToken, l.sp(start, start+1),
			fmt.Sprintf("unexpected byte %q", l.src[start])))
		l.pos++
	}
	text := string(l.src[start:l.pos])
	return Token{Kind: TBareWord, Text: text, Raw: text, Span: l.sp(start, l.pos)}, true
}

func isBareContinuation(c byte) bool {
	return isWordByte(c) && c != ' '
}

func (l *Lexer) scanSingleQuoted(start int) (Token, bool) {
	l.pos++ // opening '
	contentStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '\'' {
		l.pos++
	}
	content := string(l.src[contentStart:l.pos])
	if l.pos < len(l.src) {
		l.pos++ // closing '
	} else {
		l.errs.Add(diag.New(diag.KindUnbalancedDelimiter, l.sp(start, l.pos), "unterminated single-quoted string"))
	}
	return Token{Kind: TSingleQuoted, Text: content, Raw: string(l.src[start:l.pos]), Span: l.sp(start, l.pos)}, true
}

func (l *Lexer) scanBacktick(start int) (Token, bool) {
	l.pos++
	contentStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '`' {
		l.pos++
	}
	content := string(l.src[contentStart:l.pos])
	if l.pos < len(l.src) {
		l.pos++
	} else {
		l.errs.Add(diag.New(diag.KindUnbalancedDelimiter, l.sp(start, l.pos), "unterminated backtick string"))
	}
	return Token{Kind: TBacktick, Text: content, Raw: string(l.src[start:l.pos]), Span: l.sp(start, l.pos)}, true
}

// scanDoubleQuoted handles escapes and $(...)/${...} interpolation
// segments (spec.md §4.1, §4.2).
func (l *Lexer) scanDoubleQuoted(start int) (Token, bool) {
	l.pos++ // opening "
	var decoded strings.Builder
	var parts []InterpPart
	litStart := l.pos
	flushLiteral := func(end int) {
		if end > litStart {
			parts = append(parts, InterpPart{Kind: InterpLiteral, Text: decodeSegment(string(l.src[litStart:end])), Span: l.sp(litStart, end)})
		}
	}
	for l.pos < len(l.src) && l.src[l.pos] != '"' {
		c := l.src[l.pos]
		if c == '\\' {
			ds, ok := l.decodeEscape()
			if !ok {
				l.errs.Add(diag.New(diag.KindUnexpectedToken, l.sp(l.pos, l.pos+1), "invalid escape sequence"))
				l.pos++
				continue
			}
			decoded.WriteString(ds)
			continue
		}
		if c == '$' && (l.peekAt(1) == '(' || l.peekAt(1) == '{') {
			flushLiteral(l.pos)
			open, close := byte('('), byte(')')
			kind := InterpParen
			if l.peekAt(1) == '{' {
				open, close = '{', '}'
				kind = InterpBrace
			}
			exprStart := l.pos + 2
			l.pos += 2
			depth := 1
			for l.pos < len(l.src) && depth > 0 {
				switch l.src[l.pos] {
				case open:
					depth++
				case close:
					depth--
				}
				l.pos++
			}
			inner := string(l.src[exprStart : l.pos-1])
			parts = append(parts, InterpPart{Kind: kind, Text: inner, Span: l.sp(exprStart, l.pos-1)})
			litStart = l.pos
			continue
		}
		decoded.WriteByte(c)
		l.pos++
	}
	flushLiteral(l.pos)
	if l.pos < len(l.src) {
		l.pos++ // closing "
	} else {
		l.errs.Add(diag.New(diag.KindUnbalancedDelimiter, l.sp(start, l.pos), "unterminated double-quoted string"))
	}
	return Token{Kind: TDoubleQuoted, Text: decoded.String(), Raw: string(l.src[start:l.pos]), Span: l.sp(start, l.pos), Parts: parts}, true
}

// decodeEscape decodes one `\X` escape at l.pos (which must point at the
// backslash), advancing l.pos past it, per spec.md §4.1's escape table.
func (l *Lexer) decodeEscape() (string, bool) {
	if l.peekAt(1) == 0 && l.pos+1 >= len(l.src) {
		return "", false
	}
	esc := l.peekAt(1)
	switch esc {
	case 'n':
		l.pos += 2
		return "\n", true
	case 't':
		l.pos += 2
		return "\t", true
	case 'r':
		l.pos += 2
		return "\r", true
	case '\\':
		l.pos += 2
		return "\\", true
	case '"':
		l.pos += 2
		return "\"", true
	case '\'':
		l.pos += 2
		return "'", true
	case '0':
		l.pos += 2
		return "\x00", true
	case 'u':
		return l.decodeUnicodeEscape()
	}
	return "", false
}

// decodeUnicodeEscape decodes `\u{XXXX}`, 1-6 hex digits, erroring if the
// codepoint isn't a valid Unicode scalar value (spec.md §4.1).
func (l *Lexer) decodeUnicodeEscape() (string, bool) {
	if l.peekAt(2) != '{' {
		return "", false
	}
	i := l.pos + 3
	digitsStart := i
	for i < len(l.src) && i-digitsStart < 6 && isHex(l.src[i]) {
		i++
	}
	if i == digitsStart || i >= len(l.src) || l.src[i] != '}' {
		return "", false
	}
	hex := string(l.src[digitsStart:i])
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return "", false
	}
	l.pos = i + 1
	return string(rune(n)), true
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// decodeSegment decodes the escapes inside a literal segment sliced out
// between interpolation parts, using decodeEscape's table. An invalid
// escape (already reported by scanDoubleQuoted) loses its backslash, as it
// does in scanDoubleQuoted's own decoded text.
func decodeSegment(s string) string {
	sub := &Lexer{src: []byte(s)}
	var b strings.Builder
	for sub.pos < len(sub.src) {
		if sub.src[sub.pos] == '\\' {
			if ds, ok := sub.decodeEscape(); ok {
				b.WriteString(ds)
			} else {
				sub.pos++
			}
			continue
		}
		b.WriteByte(sub.src[sub.pos])
		sub.pos++
	}
	return b.String()
}
