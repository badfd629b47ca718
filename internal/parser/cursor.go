// Package parser implements the recursive-descent, shape-directed parser
// of spec.md §4.2: it builds a typed AST from a LiteBlock while resolving
// every identifier against a WorkingSet-layered declaration environment in
// the same pass (name resolution, overload selection, static typing).
package parser

import (
	"github.com/shellcore/shellcore/internal/lexer"
	"github.com/shellcore/shellcore/internal/span"
)

// cursor is a lookahead iterator over a flat token run, the building block
// every shape consumer uses (spec.md §9 "recursive shape-expansion with a
// lookahead iterator over tokens").
type cursor struct {
	toks []lexer.Token
	pos  int
}

func newCursor(toks []lexer.Token) *cursor { return &cursor{toks: toks} }

func (c *cursor) eof() bool { return c.pos >= len(c.toks) }

func (c *cursor) peek() lexer.Token {
	if c.eof() {
		return lexer.Token{Kind: lexer.TEOF}
	}
	return c.toks[c.pos]
}

func (c *cursor) peekAt(off int) lexer.Token {
	i := c.pos + off
	if i < 0 || i >= len(c.toks) {
		return lexer.Token{Kind: lexer.TEOF}
	}
	return c.toks[i]
}

func (c *cursor) next() lexer.Token {
	t := c.peek()
	if !c.eof() {
		c.pos++
	}
	return t
}

func (c *cursor) lastSpan() span.Span {
	if c.pos == 0 {
		return span.Unknown
	}
	return c.toks[c.pos-1].Span
}

// rest returns every remaining token, used to hand a residual run to
// argument binding.
func (c *cursor) rest() []lexer.Token {
	return c.toks[c.pos:]
}

// matchingClose returns the absolute index into c.toks of the token closing
// the bracket run starting at c.pos (which must be the open delimiter),
// tracking nested depth. It returns -1 if unbalanced.
func (c *cursor) matchingClose(open, close lexer.Kind) int {
	depth := 0
	for i := c.pos; i < len(c.toks); i++ {
		switch c.toks[i].Kind {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
