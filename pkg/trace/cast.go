package trace

import (
	"context"
	"fmt"
	"sync"

	"github.com/chazu/raycsg/pkg/interval"
	"github.com/chazu/raycsg/pkg/kernel"
)

// castAll casts every ray against s on a pool of workers. The first error
// wins; remaining rays are skipped once it is recorded or ctx is done.
func castAll(ctx context.Context, k kernel.Kernel, s kernel.Solid, rays []kernel.Ray, workers int) ([]interval.Sequence, error) {
	out := make([]interval.Sequence, len(rays))
	if len(rays) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	tasks := make(chan int, len(rays))
	for i := range rays {
		tasks <- i
	}
	close(tasks)

	var wg sync.WaitGroup
	for w := 0; w < min(workers, len(rays)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				if ctx.Err() != nil {
					return
				}
				hits, err := k.Cast(s, rays[i])
				if err != nil {
					fail(fmt.Errorf("ray %d: %w", i, err))
					return
				}
				out[i] = hits
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	// The parent context may have been cancelled without a cast error.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
