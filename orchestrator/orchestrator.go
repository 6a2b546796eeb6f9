// Package orchestrator connects an external chunk producer to gzstream and
// ccp4 readers, driving the single-threaded cooperative decode loop while
// letting the producer's I/O run on its own goroutine.
package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cryoden/densitystream/ccp4"
	"github.com/cryoden/densitystream/chunkbuf"
	"github.com/cryoden/densitystream/gzstream"
)

// Producer delivers ordered byte chunks of the GZIP-wrapped map on out,
// closing it once the source is exhausted, and returns any fetch error. It
// must stop and return ctx.Err() if ctx is done before it finishes.
//
// Implementations (HTTPProducer, MmapProducer) run entirely independently
// of the chunkbuf.Buffer that the decode loop owns: Produce never touches
// decoder state, only the channel, which is what lets it run concurrently
// with decoding while satisfying chunkbuf.Buffer's single-writer
// requirement.
type Producer interface {
	Produce(ctx context.Context, out chan<- []byte) error
}

// Options configures a Run.
type Options struct {
	Gzip gzstream.Options
	Ccp4 ccp4.ReadOptions

	// ChunkQueueDepth bounds how many chunks the Producer may have in
	// flight ahead of the decode loop. Defaults to 4.
	ChunkQueueDepth int

	// Checkpoints, if non-nil, receives a checkpoint cache entry for every
	// gzstream.Checkpoint recorded (see Cache).
	Checkpoints *Cache
}

// Run drives chunks → chunkbuf.Buffer → gzstream.Reader → ccp4.Reader to
// completion, returning the decoded DensityMap.
func Run(ctx context.Context, producer Producer, opts Options) (*ccp4.DensityMap, error) {
	depth := opts.ChunkQueueDepth
	if depth <= 0 {
		depth = 4
	}

	chunks := make(chan []byte, depth)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return producer.Produce(ctx, chunks)
	})

	var result *ccp4.DensityMap
	g.Go(func() error {
		cb := chunkbuf.New()
		gz := gzstream.NewReader(cb, opts.Gzip)

		decoded := chunkbuf.New()
		mr := ccp4.NewReader(decoded, opts.Ccp4)

		for {
			done, err := mr.Next()
			if err != nil {
				return err
			}
			if done {
				result = mr.Result()
				return nil
			}

			data, gzDone, err := gz.Next()
			if err != nil {
				return err
			}
			if len(data) > 0 {
				decoded.Append(data)
			}
			if opts.Checkpoints != nil {
				opts.Checkpoints.absorb(gz.Checkpoints())
			}
			if gzDone {
				decoded.CloseEnd()
				continue
			}
			if len(data) > 0 {
				continue
			}

			select {
			case chunk, ok := <-chunks:
				if !ok {
					cb.CloseEnd()
					continue
				}
				cb.Append(chunk)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
