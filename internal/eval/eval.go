// Package eval measures classifier accuracy over a task stream.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/metrics"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/model"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/stream"
)

// ErrNoBatches indicates the evaluation stream produced no batches, so
// no accuracy can be reported.
var ErrNoBatches = errors.New("evaluation stream produced no batches")

// Result summarizes one evaluation pass.
type Result struct {
	// Accuracy is the mean of per-batch accuracies. Batches are equally
	// weighted regardless of size, so a short final batch counts as much
	// as a full one.
	Accuracy float64

	// Batches and Examples count what was evaluated.
	Batches  int
	Examples int

	// Elapsed is the wall-clock duration of the pass.
	Elapsed time.Duration
}

// Evaluator runs inference-only passes against a classifier.
type Evaluator struct {
	classifier model.Classifier
	log        *slog.Logger
	collector  *metrics.Collector
}

// New wires an evaluator. The logger and collector may be nil.
func New(classifier model.Classifier, log *slog.Logger, collector *metrics.Collector) (*Evaluator, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{classifier: classifier, log: log, collector: collector}, nil
}

// Run consumes the stream until exhaustion and returns the accuracy
// result. The classifier's parameters are never modified; only Infer is
// called. Classifier errors abort the pass and are returned wrapped.
func (e *Evaluator) Run(ctx context.Context, src stream.Stream) (*Result, error) {
	if src == nil {
		return nil, fmt.Errorf("stream must not be nil")
	}

	start := time.Now()
	var accuracies []float64
	examples := 0

	for {
		batch, err := src.Next(ctx)
		if errors.Is(err, stream.ErrExhausted) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pull batch %d: %w", len(accuracies)+1, err)
		}

		batchStart := time.Now()
		logits, err := e.classifier.Infer(batch.Contents, batch.AttentionMasks)
		if err != nil {
			return nil, fmt.Errorf("infer batch %d: %w", len(accuracies)+1, err)
		}
		if len(logits) != batch.Size() {
			return nil, fmt.Errorf("infer batch %d: got %d logit rows for %d examples",
				len(accuracies)+1, len(logits), batch.Size())
		}

		correct := 0
		for i, row := range logits {
			if floats.MaxIdx(row) == batch.Labels[i] {
				correct++
			}
		}
		accuracies = append(accuracies, float64(correct)/float64(batch.Size()))
		examples += batch.Size()
		if e.collector != nil {
			e.collector.RecordBatch(metrics.OpEvalBatch, time.Since(batchStart), int64(batch.Size()))
		}
	}

	if len(accuracies) == 0 {
		return nil, ErrNoBatches
	}

	result := &Result{
		Accuracy: stat.Mean(accuracies, nil),
		Batches:  len(accuracies),
		Examples: examples,
		Elapsed:  time.Since(start),
	}
	e.log.Debug("evaluation complete",
		"accuracy", result.Accuracy,
		"batches", result.Batches,
		"examples", result.Examples)
	return result, nil
}
