// Package eval implements the tree-walking evaluator of spec.md §4.3: it
// walks a typed ast.Block against an engine.State, threading PipelineData
// between pipeline elements and maintaining per-call Stack frames the way
// breadchris-yaegi's frame/scope pair thread a reflect.Value frame through
// nested call evaluation.
package eval

import (
	"io"

	"github.com/pkg/errors"

	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// PipelineKind tags which of PipelineData's three channels is populated
// (spec.md §3 "PipelineData").
type PipelineKind int

const (
	PDEmpty PipelineKind = iota
	PDValue
	PDListStream
	PDByteStream
)

// ListStream is a pull-based Value producer; a builtin that returns a
// *ListStream has it carried through the pipeline unmaterialised. Ranges
// evaluate to a Range Value and the `each`/`where` builtins return a
// materialised List instead.
type ListStream struct {
	Next func() (value.Value, bool, error)
}

// Collect drains ls into a slice, honoring cancellation between elements.
func (ls *ListStream) Collect(cancelled func() bool, at span.Span) ([]value.Value, error) {
	var out []value.Value
	for {
		if cancelled() {
			return nil, diag.Interrupted(at)
		}
		v, ok, err := ls.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// ByteStream carries an external command's stdout (and optionally stderr)
// as raw readers, deferring materialisation until something actually
// consumes the bytes (spec.md §3 "ByteStream", §6 "external commands").
type ByteStream struct {
	Stdout   io.ReadCloser
	Stderr   io.ReadCloser
	ExitCode func() (int, error) // valid only after Stdout is fully drained
}

// PipelineData is the three-channel carrier passed between pipeline
// elements (spec.md §3 Pipeline, §4.3 "PipelineData flows between
// pipeline elements").
type PipelineData struct {
	Kind  PipelineKind
	Value value.Value
	List  *ListStream
	Bytes *ByteStream
}

// Empty returns the empty pipeline input a fresh pipeline starts from.
func Empty() PipelineData { return PipelineData{Kind: PDEmpty} }

// FromValue wraps a single materialised Value.
func FromValue(v value.Value) PipelineData { return PipelineData{Kind: PDValue, Value: v} }

// FromList wraps a lazily produced stream of Values.
func FromList(ls *ListStream) PipelineData { return PipelineData{Kind: PDListStream, List: ls} }

// FromBytes wraps an external command's raw output streams.
func FromBytes(bs *ByteStream) PipelineData { return PipelineData{Kind: PDByteStream, Bytes: bs} }

// Collect forces pd into a single materialised Value: a ListStream drains
// into a List, a ByteStream's stdout drains into a String (spec.md §4.3
// "the final stage's PipelineData is collected into a Value for display or
// for a caller that isn't itself a pipeline element").
func (pd PipelineData) Collect(at span.Span, cancelled func() bool) (value.Value, error) {
	switch pd.Kind {
	case PDEmpty:
		return value.Nothing(at), nil
	case PDValue:
		return pd.Value, nil
	case PDListStream:
		vs, err := pd.List.Collect(cancelled, at)
		if err != nil {
			return value.Value{}, err
		}
		return value.MkList(vs, at), nil
	case PDByteStream:
		defer pd.Bytes.Stdout.Close()
		b, err := io.ReadAll(pd.Bytes.Stdout)
		if err != nil {
			return value.Value{}, errors.Wrap(err, "reading byte stream")
		}
		if pd.Bytes.ExitCode != nil {
			if code, err := pd.Bytes.ExitCode(); err == nil && code != 0 {
				return value.Value{}, diag.New(diag.KindNonZeroExit, at, "external command exited with a non-zero status")
			}
		}
		return value.MkString(string(b), at), nil
	}
	return value.Nothing(at), nil
}

// AsListOfValues materialises pd as a []value.Value the way `for` and
// `each`/`where`/`par-each` need to iterate row by row, without forcing a
// Table/List distinction: a Value goes through valuesOf, so a Range
// iterates its integers and any other scalar iterates as a single-element
// sequence (spec.md §4.3 "for"/"each" over a non-list input).
func (pd PipelineData) AsListOfValues(at span.Span, cancelled func() bool) ([]value.Value, error) {
	switch pd.Kind {
	case PDEmpty:
		return nil, nil
	case PDListStream:
		return pd.List.Collect(cancelled, at)
	case PDValue:
		return valuesOf(pd.Value, at)
	case PDByteStream:
		v, err := pd.Collect(at, cancelled)
		if err != nil {
			return nil, err
		}
		return []value.Value{v}, nil
	}
	return nil, nil
}
