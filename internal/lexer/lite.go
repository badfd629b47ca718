package lexer

import "github.com/shellcore/shellcore/internal/span"

// LiteCommand is a vector of contiguous tokens up to `|`, `;`, or newline
// outside brackets (spec.md §4.1).
type LiteCommand struct {
	Parts []Token
	Span  span.Span
}

// LitePipeline is LiteCommand (| LiteCommand)* (spec.md §4.1).
type LitePipeline struct {
	Commands []LiteCommand
	Span     span.Span
}

// LiteBlock is a vector of LitePipelines separated by `;` or newline
// (spec.md §4.1).
type LiteBlock struct {
	Pipelines []LitePipeline
	Span      span.Span
}

// Group performs the "lite grouping" pass over a flat token stream,
// tracking bracket nesting so `|`/`;`/newline inside `( [ {` don't split a
// command (spec.md §4.1). It never aborts: a malformed stream still
// produces a best-effort LiteBlock.
func Group(toks []Token) LiteBlock {
	var block LiteBlock
	var pipeline LitePipeline
	var cmd LiteCommand
	depth := 0

	flushCmd := func() {
		if len(cmd.Parts) > 0 {
			cmd.Span = spanOf(cmd.Parts)
			pipeline.Commands = append(pipeline.Commands, cmd)
		}
		cmd = LiteCommand{}
	}
	flushPipeline := func() {
		flushCmd()
		if len(pipeline.Commands) > 0 {
			pipeline.Span = spanOfCommands(pipeline.Commands)
			block.Pipelines = append(block.Pipelines, pipeline)
		}
		pipeline = LitePipeline{}
	}

	for _, t := range toks {
		switch t.Kind {
		case TOpenParen, TOpenBracket, TOpenBrace:
			depth++
			cmd.Parts = append(cmd.Parts, t)
		case TCloseParen, TCloseBracket, TCloseBrace:
			if depth > 0 {
				depth--
			}
			cmd.Parts = append(cmd.Parts, t)
		case TPipe:
			if depth > 0 {
				cmd.Parts = append(cmd.Parts, t)
				continue
			}
			flushCmd()
		case TSemicolon, TNewline:
			if depth > 0 {
				cmd.Parts = append(cmd.Parts, t)
				continue
			}
			flushPipeline()
		case TComment, TEOF:
			// dropped from the lite structure entirely
		default:
			cmd.Parts = append(cmd.Parts, t)
		}
	}
	flushPipeline()
	if len(block.Pipelines) > 0 {
		block.Span = block.Pipelines[0].Span.Join(block.Pipelines[len(block.Pipelines)-1].Span)
	}
	return block
}

func spanOf(toks []Token) span.Span {
	if len(toks) == 0 {
		return span.Unknown
	}
	s := toks[0].Span
	for _, t := range toks[1:] {
		s = s.Join(t.Span)
	}
	return s
}

func spanOfCommands(cmds []LiteCommand) span.Span {
	if len(cmds) == 0 {
		return span.Unknown
	}
	s := cmds[0].Span
	for _, c := range cmds[1:] {
		s = s.Join(c.Span)
	}
	return s
}
