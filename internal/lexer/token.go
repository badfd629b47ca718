// Package lexer implements the tokenizer and lite grouping pass of
// spec.md §4.1: it segments input bytes into tokens and a shallow
// block-of-pipelines-of-commands-of-parts structure without attaching any
// further meaning (name resolution and typing are the parser's job).
package lexer

import "github.com/shellcore/shellcore/internal/span"

// Kind enumerates the token kinds of spec.md §4.1.
type Kind int

const (
	TBareWord Kind = iota
	TSingleQuoted
	TDoubleQuoted // may contain interpolation segment markers, see Token.Parts
	TBacktick
	TNumber
	TOperator
	TOpenParen
	TCloseParen
	TOpenBracket
	TCloseBracket
	TOpenBrace
	TCloseBrace
	TPipe
	TSemicolon
	TNewline
	TComment
	TEOF
)

// InterpPartKind distinguishes a literal run from an embedded `$(...)`/
// `${...}` sub-expression inside a double-quoted string.
type InterpPartKind int

const (
	InterpLiteral InterpPartKind = iota
	InterpParen                  // $(...)
	InterpBrace                  // ${...}
)

// InterpPart is one segment of a double-quoted string's interpolation
// decomposition (spec.md §4.2 Interpolation).
type InterpPart struct {
	Kind InterpPartKind
	Text string // literal text (InterpLiteral) or the raw inner source (InterpParen/InterpBrace)
	Span span.Span
}

// Token is one lexical unit. Text holds the token's decoded payload
// (escapes already resolved for quoted strings); Raw holds the exact
// source bytes for diagnostics.
type Token struct {
	Kind  Kind
	Text  string
	Raw   string
	Span  span.Span
	Parts []InterpPart // set for a non-empty TDoubleQuoted; without interpolation it is one InterpLiteral part
}
