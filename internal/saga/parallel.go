package saga

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallel folds independent steps into one step whose forward actions run
// concurrently. Nothing may rely on an order between them. If any forward
// action fails, the ones that succeeded are compensated before the step
// reports the first error.
func Parallel(name string, steps ...Step) Step {
	var mu sync.Mutex
	succeeded := make([]bool, len(steps))

	undo := func(ctx context.Context) error {
		mu.Lock()
		done := append([]bool(nil), succeeded...)
		mu.Unlock()

		var errs []error
		for i := len(steps) - 1; i >= 0; i-- {
			if !done[i] || steps[i].Compensate == nil {
				continue
			}
			if err := runCompensate(ctx, steps[i]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return Step{
		Name: name,
		Forward: func(ctx context.Context) error {
			g, gCtx := errgroup.WithContext(ctx)
			for i, step := range steps {
				i, step := i, step
				g.Go(func() error {
					if err := runForward(gCtx, step); err != nil {
						return err
					}
					mu.Lock()
					succeeded[i] = true
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				_ = undo(context.WithoutCancel(ctx))
				return err
			}
			return nil
		},
		Compensate: undo,
	}
}
