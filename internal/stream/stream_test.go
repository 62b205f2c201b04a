package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
)

// makeExamples builds n examples labeled 0..n-1.
func makeExamples(t *testing.T, n int) []replay.Example {
	t.Helper()
	examples := make([]replay.Example, n)
	for i := range examples {
		ex, err := replay.NewExample([]int{i, i + 1}, []int{1, 1}, i)
		if err != nil {
			t.Fatalf("NewExample() error = %v", err)
		}
		examples[i] = ex
	}
	return examples
}

func TestBatchStream_Sizes(t *testing.T) {
	tests := []struct {
		name      string
		examples  int
		batchSize int
		wantSizes []int
	}{
		{name: "even split", examples: 8, batchSize: 4, wantSizes: []int{4, 4}},
		{name: "partial final batch", examples: 10, batchSize: 4, wantSizes: []int{4, 4, 2}},
		{name: "single oversized batch", examples: 3, batchSize: 10, wantSizes: []int{3}},
		{name: "empty stream", examples: 0, batchSize: 4, wantSizes: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewBatchStream(makeExamples(t, tt.examples), tt.batchSize)
			if err != nil {
				t.Fatalf("NewBatchStream() error = %v", err)
			}

			ctx := context.Background()
			var sizes []int
			for {
				b, err := s.Next(ctx)
				if errors.Is(err, ErrExhausted) {
					break
				}
				if err != nil {
					t.Fatalf("Next() error = %v", err)
				}
				sizes = append(sizes, b.Size())
			}

			if len(sizes) != len(tt.wantSizes) {
				t.Fatalf("got %d batches %v, want %v", len(sizes), sizes, tt.wantSizes)
			}
			for i := range sizes {
				if sizes[i] != tt.wantSizes[i] {
					t.Errorf("batch %d has size %d, want %d", i, sizes[i], tt.wantSizes[i])
				}
			}

			// Exhaustion is sticky.
			if _, err := s.Next(ctx); !errors.Is(err, ErrExhausted) {
				t.Errorf("Next() after exhaustion error = %v, want ErrExhausted", err)
			}
		})
	}
}

func TestBatchStream_PreservesOrder(t *testing.T) {
	s, err := NewBatchStream(makeExamples(t, 7), 3)
	if err != nil {
		t.Fatalf("NewBatchStream() error = %v", err)
	}

	ctx := context.Background()
	var labels []int
	for {
		b, err := s.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		labels = append(labels, b.Labels...)
	}

	for i, label := range labels {
		if label != i {
			t.Errorf("example %d has label %d, want %d", i, label, i)
		}
	}
}

func TestNewBatchStream_InvalidBatchSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := NewBatchStream(makeExamples(t, 4), size); err == nil {
			t.Errorf("NewBatchStream(batchSize=%d) error = nil, want error", size)
		}
	}
}

func TestBatchStream_ContextCanceled(t *testing.T) {
	s, err := NewBatchStream(makeExamples(t, 4), 2)
	if err != nil {
		t.Fatalf("NewBatchStream() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}
