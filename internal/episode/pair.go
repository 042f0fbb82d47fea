package episode

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/record"
)

// #region pair
// RunPair runs the controller-off and controller-on episodes of one task and seed
// in parallel. Neither run cancels the other; both errors are returned joined.
func (r *Runner) RunPair(ctx context.Context, taskID int, seed int64) (Pair, error) {
	var (
		p      Pair
		errOff error
		errOn  error
		g      errgroup.Group
	)
	g.Go(func() error {
		p.Off, errOff = r.Run(ctx, NewRunContext(r.opts.Benchmark, taskID, seed, record.ControllerOff))
		return nil
	})
	g.Go(func() error {
		p.On, errOn = r.Run(ctx, NewRunContext(r.opts.Benchmark, taskID, seed, record.ControllerOn))
		return nil
	})
	_ = g.Wait()

	if errOff != nil {
		errOff = fmt.Errorf("task %d seed %d off: %w", taskID, seed, errOff)
	}
	if errOn != nil {
		errOn = fmt.Errorf("task %d seed %d on: %w", taskID, seed, errOn)
	}
	return p, errors.Join(errOff, errOn)
}

// #endregion pair

// #region grid
// Grid is a task by seed sweep.
type Grid struct {
	Tasks    []int
	Seeds    []int64
	Parallel int // concurrent pairs; < 1 means one
}

// RunGrid runs every pair of the grid with at most Parallel pairs in flight.
// Pairs come back in task-major order. Failed pairs do not stop the sweep;
// cancelling ctx does.
func (r *Runner) RunGrid(ctx context.Context, grid Grid) ([]Pair, error) {
	if len(grid.Tasks) == 0 || len(grid.Seeds) == 0 {
		return nil, fault.Configf("episode", "grid needs at least one task and one seed")
	}
	limit := grid.Parallel
	if limit < 1 {
		limit = 1
	}

	n := len(grid.Tasks) * len(grid.Seeds)
	pairs := make([]Pair, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(limit)
	for ti, task := range grid.Tasks {
		for si, seed := range grid.Seeds {
			idx := ti*len(grid.Seeds) + si
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					errs[idx] = fault.New(fault.ClassCancelled, "episode.grid", err)
					return nil
				}
				pairs[idx], errs[idx] = r.RunPair(ctx, task, seed)
				if errs[idx] != nil {
					r.logger.Warn("pair failed", "task", task, "seed", seed, "error", errs[idx])
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return pairs, errors.Join(errs...)
}

// #endregion grid
