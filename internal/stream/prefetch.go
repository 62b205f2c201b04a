package stream

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
)

// Prefetcher decodes batches ahead of the consumer on a separate
// goroutine, the equivalent of dataloader workers. Batch order is
// preserved. The consumer sees the source's error, or ErrExhausted once
// every prefetched batch has been delivered.
type Prefetcher struct {
	batches chan *replay.Batch
	group   *errgroup.Group
	cancel  context.CancelFunc
}

// NewPrefetcher starts prefetching from src. Depth bounds how many
// decoded batches may wait for the consumer; values below one are
// raised to one.
func NewPrefetcher(ctx context.Context, src Stream, depth int) *Prefetcher {
	if depth < 1 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	p := &Prefetcher{
		batches: make(chan *replay.Batch, depth),
		group:   group,
		cancel:  cancel,
	}

	group.Go(func() error {
		defer close(p.batches)
		for {
			b, err := src.Next(gctx)
			if errors.Is(err, ErrExhausted) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case p.batches <- b:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	return p
}

// Next implements Stream.
func (p *Prefetcher) Next(ctx context.Context) (*replay.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case b, ok := <-p.batches:
		if !ok {
			if err := p.group.Wait(); err != nil {
				return nil, err
			}
			return nil, ErrExhausted
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the producer and releases its goroutine. Safe to call
// after the stream is exhausted.
func (p *Prefetcher) Close() error {
	p.cancel()
	err := p.group.Wait()
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
