// Package batch drives independent per-row workers in fixed-size concurrent chunks.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is used when a non-positive size is given.
const DefaultBatchSize = 10

// ChunkArray splits items into consecutive chunks of at most size elements.
// The chunks share the backing array of items.
func ChunkArray[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, items[i:end:end])
	}
	return out
}

// Worker processes one item.
type Worker[T any] func(ctx context.Context, item T) error

// RunInBatches runs worker over every item of a chunk concurrently and waits
// for the whole chunk before starting the next. The first worker error
// cancels the rest of its chunk and stops the run. When all chunks complete,
// the result of snapshot is returned.
//
// Workers that share state must synchronize it themselves.
func RunInBatches[T, S any](ctx context.Context, items []T, batchSize int, worker Worker[T], snapshot func(context.Context) (S, error)) (S, error) {
	var zero S
	for _, chunk := range ChunkArray(items, batchSize) {
		g, gctx := errgroup.WithContext(ctx)
		for _, item := range chunk {
			g.Go(func() error {
				return worker(gctx, item)
			})
		}
		if err := g.Wait(); err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
	if snapshot == nil {
		return zero, nil
	}
	return snapshot(ctx)
}
