package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/raycsg/pkg/graph"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when evaluation exceeds the engine's timeout.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned to an evaluation whose result arrived after
	// a newer Evaluate call started.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	graph  *graph.SceneGraph
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds timeout. It uses a generation counter to
// discard stale results from previous evaluations.
//
// On timeout, the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	timeout time.Duration,
	mu *sync.Mutex,
	currentGen *uint64,
) (*graph.SceneGraph, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, ErrSuperseded
		}

		return res.graph, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
