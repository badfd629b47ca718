package eval

import (
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// evalExternalCall runs an EExternalCall directly: a bareword head not
// resolved to any registered Declaration, run against the host's $PATH the
// same way an unrecognised command falls through in an interactive shell
// (spec.md §4.6 "external commands"). Raw arguments keep their literal
// spelling (globs, unquoted flags); non-raw arguments are evaluated and
// stringified with value.Display.
func (e *Evaluator) evalExternalCall(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	head, err := e.EvalScalar(stack, *expr.ExternalHead, input)
	if err != nil {
		return PipelineData{}, err
	}
	if head.Tag != value.TagString {
		return PipelineData{}, diag.New(diag.KindOperatorMismatch, expr.Span, "external command head must be a string")
	}
	argv := make([]string, 0, len(expr.ExternalArgs))
	for _, a := range expr.ExternalArgs {
		if a.Raw && a.Expr.Kind == ast.EString {
			argv = append(argv, a.Expr.String)
			continue
		}
		v, err := e.EvalScalar(stack, a.Expr, input)
		if err != nil {
			return PipelineData{}, err
		}
		argv = append(argv, value.Display(v))
	}
	return e.runExternal(stack, head.Str, argv, input, expr.Span)
}

// runExternal execs path via os/exec directly (spec.md §4.6 explicitly
// rules out a shell-quoting library: arguments are already a Go []string,
// so there's no re-splitting step for go-shellwords or similar to do).
// Piped input, if any, is fed to the child's stdin; the child's stdout
// becomes the outgoing ByteStream so a long-running producer can be
// consumed lazily by the next pipeline stage.
func (e *Evaluator) runExternal(stack *Stack, path string, argv []string, input PipelineData, sp span.Span) (PipelineData, error) {
	if !e.Unrestricted {
		return PipelineData{}, diag.New(diag.KindExternalNotFound, sp, "external command execution is disabled (run with --unrestricted to allow it): "+path)
	}
	cmd := exec.Command(path, argv...)
	cmd.Env = envStrings(stack.Env())
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return PipelineData{}, errors.Wrap(err, "opening external command stdout")
	}

	if input.Kind != PDEmpty {
		in, err := input.Collect(sp, e.State.Cancel)
		if err != nil {
			return PipelineData{}, err
		}
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return PipelineData{}, errors.Wrap(err, "opening external command stdin")
		}
		go func() {
			defer stdin.Close()
			stdin.Write([]byte(value.Display(in)))
		}()
	}

	if err := cmd.Start(); err != nil {
		return PipelineData{}, diag.New(diag.KindExternalNotFound, sp, "failed to start "+path+": "+err.Error())
	}

	exitCode := func() (int, error) {
		err := cmd.Wait()
		if err == nil {
			return 0, nil
		}
		if ee, ok := err.(*exec.ExitError); ok {
			return ee.ExitCode(), nil
		}
		return -1, err
	}

	return FromBytes(&ByteStream{Stdout: stdout, ExitCode: exitCode}), nil
}

// envStrings flattens the shell's $env record into a process environment
// (spec.md §4.5 "Environment"): every column becomes a NAME=value pair via
// value.Display, the same conversion used for external argument strings.
func envStrings(env value.Record) []string {
	out := make([]string, 0, env.Len())
	for i := 0; i < env.Len(); i++ {
		col, v := env.At(i)
		out = append(out, col+"="+value.Display(v))
	}
	return out
}

// redirectToFile writes a pipeline stage's materialised output to a file,
// truncating or appending per r.Kind (spec.md §4.1 "o>"/"o>>").
func (e *Evaluator) redirectToFile(stack *Stack, r *ast.Redirection, pd PipelineData, sp span.Span) (PipelineData, error) {
	v, err := pd.Collect(sp, e.State.Cancel)
	if err != nil {
		return PipelineData{}, err
	}
	pathV, err := e.EvalScalar(stack, *r.Path, Empty())
	if err != nil {
		return PipelineData{}, err
	}
	path := value.Display(pathV)
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if r.Kind == ast.RedirectAppendFile {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return PipelineData{}, diag.New(diag.KindIOError, sp, "cannot open "+path+" for writing: "+err.Error())
	}
	defer f.Close()
	text := value.Display(v)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := f.WriteString(text); err != nil {
		return PipelineData{}, diag.New(diag.KindIOError, sp, "write to "+path+" failed: "+err.Error())
	}
	return FromValue(v), nil
}
