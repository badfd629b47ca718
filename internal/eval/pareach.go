package eval

import (
	"golang.org/x/sync/errgroup"

	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// ParEach runs closure once per item concurrently, bounded by concurrency
// (0 or negative means unbounded), collecting results in input order
// (spec.md §5 "par-each fan-out"). Each CallClosure invocation already
// builds its own fresh Stack seeded only from the closure's captured
// values, so concurrent calls share no mutable state and need no locking
// beyond errgroup's own result-slice indexing.
func (e *Evaluator) ParEach(cl value.Closure, items []value.Value, concurrency int, at span.Span) ([]value.Value, error) {
	out := make([]value.Value, len(items))
	g := new(errgroup.Group)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if e.State.Cancel() {
				return diag.Interrupted(at)
			}
			pd, err := e.CallClosure(cl, []value.Value{item}, Empty())
			if err != nil {
				return err
			}
			v, err := pd.Collect(at, e.State.Cancel)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
