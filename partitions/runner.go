package partitions

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ItemTask processes one work item. Tasks of different partitions run
// concurrently and must only write state owned by their item.
type ItemTask func(ctx context.Context, item int) error

// Run executes task for every item of the layout, one goroutine per
// partition. Items of a partition run in ascending order. The first error
// cancels the remaining work and is returned.
func Run(ctx context.Context, layout *PartitionLayout, task ItemTask) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for p := range layout.Partitions {
		part := &layout.Partitions[p]
		eg.Go(func() error {
			for _, item := range part.Items {
				if err := egCtx.Err(); err != nil {
					return err
				}
				if err := task(egCtx, item); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
