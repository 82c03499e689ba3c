package interval

import (
	"fmt"
	"runtime"
	"sync"
)

// Option configures CombineBatch.
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers sets the number of goroutines that process columns. Values
// below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Combine applies op to the hit sequences of one ray. The result has
// len(a)+len(b) slots; slots that are not boundaries hold Sentinel. With
// sortOutput the boundaries form a sorted prefix, otherwise they keep
// their merge position.
//
// a and b must be well formed (see Sequence.Validate); this is not checked.
func Combine(a, b Sequence, op Op, sortOutput bool) (Sequence, error) {
	r, err := ruleFor(op)
	if err != nil {
		return nil, err
	}
	out := make(Sequence, len(a)+len(b))
	combineColumn(a, b, out, r, sortOutput)
	return out, nil
}

// CombineBatch applies op column by column. Both batches must have the same
// number of columns; row counts may differ. Columns are independent and are
// spread over a pool of workers, each writing a disjoint range of the
// freshly allocated result.
func CombineBatch(a, b *Batch, op Op, sortOutput bool, opts ...Option) (*Batch, error) {
	r, err := ruleFor(op)
	if err != nil {
		return nil, err
	}
	if a.cols != b.cols {
		return nil, fmt.Errorf("interval: column count mismatch %d != %d: %w", a.cols, b.cols, ErrInvalidArgument)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}

	out := &Batch{rows: a.rows + b.rows, cols: a.cols, data: make([]float64, (a.rows+b.rows)*a.cols)}
	run := func(lo, hi int) {
		for c := lo; c < hi; c++ {
			combineColumn(a.column(c), b.column(c), out.column(c), r, sortOutput)
		}
	}

	if o.workers == 1 || a.cols < 2 {
		run(0, a.cols)
		return out, nil
	}

	// A few chunks per worker keeps the pool busy when column costs vary.
	chunk := max(1, a.cols/(o.workers*4))
	tasks := make(chan [2]int, (a.cols+chunk-1)/chunk)
	for lo := 0; lo < a.cols; lo += chunk {
		tasks <- [2]int{lo, min(lo+chunk, a.cols)}
	}
	close(tasks)

	var wg sync.WaitGroup
	for w := 0; w < min(o.workers, len(tasks)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				run(t[0], t[1])
			}
		}()
	}
	wg.Wait()
	return out, nil
}

// combineColumn merges a and b, tracks the open-interval depth and writes
// the boundaries selected by r into out, which must hold len(a)+len(b)
// values.
//
// Equal values are taken from a before b, which is the order a stable
// ascending sort of the concatenation a ++ b produces for sorted operands.
// Which crossing comes first decides whether a touching pair of intervals
// reaches depth 2, so this order must not change.
func combineColumn(a, b, out []float64, r rule, sortOutput bool) {
	i, j, w := 0, 0, 0
	prev := r.offset
	for k := range out {
		var v float64
		var fromB, exit bool
		if j >= len(b) || (i < len(a) && a[i] <= b[j]) {
			v, exit = a[i], i%2 == 1
			i++
		} else {
			v, exit, fromB = b[j], j%2 == 1, true
			j++
		}

		cur := prev + r.contribution(fromB, exit)
		keep := r.keep(prev, cur)
		prev = cur

		switch {
		case sortOutput && keep:
			// Merge order is ascending, so packing the kept values to
			// the front is the sort.
			out[w] = v
			w++
		case sortOutput:
		case keep:
			out[k] = v
		default:
			out[k] = Sentinel
		}
	}
	if sortOutput {
		for ; w < len(out); w++ {
			out[w] = Sentinel
		}
	}
}
