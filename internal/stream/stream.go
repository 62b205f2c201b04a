// Package stream feeds the trainer with ordered batches of examples.
// A stream is a sequential iterator over per-task datasets; the trainer
// consumes it batch by batch until it signals exhaustion, which ends the
// epoch normally.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
)

// ErrExhausted signals the normal end of a stream. It is not a failure;
// callers treat it as the end-of-epoch marker.
var ErrExhausted = errors.New("stream exhausted")

// Stream produces batches in a fixed order.
type Stream interface {
	// Next returns the next batch, or ErrExhausted once the stream has
	// been fully consumed.
	Next(ctx context.Context) (*replay.Batch, error)
}

// BatchStream serves an in-memory example sequence as fixed-size
// batches. The final batch may be smaller when the example count is not
// a multiple of the batch size.
type BatchStream struct {
	examples  []replay.Example
	batchSize int
	pos       int
}

// NewBatchStream creates a stream over examples with the given batch
// size. An empty example slice yields an immediately exhausted stream.
func NewBatchStream(examples []replay.Example, batchSize int) (*BatchStream, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size %d must be positive", batchSize)
	}
	return &BatchStream{examples: examples, batchSize: batchSize}, nil
}

// Next implements Stream.
func (s *BatchStream) Next(ctx context.Context) (*replay.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.examples) {
		return nil, ErrExhausted
	}

	end := s.pos + s.batchSize
	if end > len(s.examples) {
		end = len(s.examples)
	}
	b, err := replay.NewBatch(s.examples[s.pos:end])
	if err != nil {
		return nil, fmt.Errorf("materialize batch: %w", err)
	}
	s.pos = end
	return b, nil
}

// Remaining returns how many examples have not been served yet.
func (s *BatchStream) Remaining() int {
	return len(s.examples) - s.pos
}
