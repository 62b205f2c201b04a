// Package trainer drives replay-augmented training over a task stream.
//
// Each step pulls one batch from the stream, pushes it into episodic
// memory, then trains on either that batch or, on every period-th step,
// on a uniform sample drawn from memory. Exactly one optimizer update
// happens per pulled batch regardless of which batch was trained on.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/metrics"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/model"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/stream"
)

// ErrInvalidConfig indicates an unusable trainer configuration, such as
// a non-positive replay period or a missing collaborator.
var ErrInvalidConfig = errors.New("invalid trainer configuration")

// Config holds the replay cadence for a training run.
type Config struct {
	// ReplayPeriod is the step interval between replay-trained steps.
	// A period of N means steps N, 2N, 3N, ... train on memory samples.
	ReplayPeriod int

	// ReplaySampleSize is the number of examples drawn from memory on
	// each replay step.
	ReplaySampleSize int

	// OnStep, when set, is called synchronously after every optimizer
	// update. The training loop blocks on it, so it must return quickly.
	OnStep func(StepEvent)
}

// StepEvent describes one completed training step.
type StepEvent struct {
	Step       int
	Loss       float64
	Replay     bool
	MemorySize int
}

// Stats aggregates what happened during one epoch.
type Stats struct {
	// Steps counts optimizer updates, one per pulled batch.
	Steps int

	// LiveSteps and ReplaySteps partition Steps by training source.
	LiveSteps   int
	ReplaySteps int

	// Examples counts examples in live-trained batches. Replay samples
	// revisit stored examples and are not counted.
	Examples int

	// TotalLoss is the sum of per-step mean losses.
	TotalLoss float64

	// LossHistory holds the per-step mean loss in step order.
	LossHistory []float64
}

// MeanLoss returns the average per-step loss, or zero for an empty epoch.
func (s Stats) MeanLoss() float64 {
	if s.Steps == 0 {
		return 0
	}
	return s.TotalLoss / float64(s.Steps)
}

// EpochResult carries everything a caller needs to persist after an
// epoch: the trained parameters, the memory contents, and the stats.
type EpochResult struct {
	Params model.Parameters
	Memory []replay.Example
	Stats  Stats
}

// Trainer runs epochs against a classifier and its optimizer.
type Trainer struct {
	cfg        Config
	classifier model.Classifier
	optimizer  model.Optimizer
	log        *slog.Logger
	collector  *metrics.Collector
}

// New validates the configuration and wires the trainer's collaborators.
// The logger and collector may be nil.
func New(cfg Config, classifier model.Classifier, optimizer model.Optimizer, log *slog.Logger, collector *metrics.Collector) (*Trainer, error) {
	if cfg.ReplayPeriod <= 0 {
		return nil, fmt.Errorf("%w: replay period must be positive, got %d", ErrInvalidConfig, cfg.ReplayPeriod)
	}
	if cfg.ReplaySampleSize <= 0 {
		return nil, fmt.Errorf("%w: replay sample size must be positive, got %d", ErrInvalidConfig, cfg.ReplaySampleSize)
	}
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier must not be nil", ErrInvalidConfig)
	}
	if optimizer == nil {
		return nil, fmt.Errorf("%w: optimizer must not be nil", ErrInvalidConfig)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Trainer{
		cfg:        cfg,
		classifier: classifier,
		optimizer:  optimizer,
		log:        log,
		collector:  collector,
	}, nil
}

// RunEpoch consumes the stream until exhaustion and returns the epoch
// result. The memory persists across epochs; callers pass the same
// instance to every RunEpoch of a run and a fresh stream per epoch.
//
// Stream exhaustion ends the epoch normally. Every other error, from
// the stream, the classifier, the optimizer, or memory sampling, aborts
// the epoch and is returned wrapped so callers can match the cause with
// errors.Is.
func (t *Trainer) RunEpoch(ctx context.Context, src stream.Stream, memory *replay.Memory) (*EpochResult, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: stream must not be nil", ErrInvalidConfig)
	}
	if memory == nil {
		return nil, fmt.Errorf("%w: memory must not be nil", ErrInvalidConfig)
	}

	machine := newEpochMachine(t.cfg.ReplayPeriod)
	var stats Stats

	for {
		batch, err := src.Next(ctx)
		if errors.Is(err, stream.ErrExhausted) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pull batch at step %d: %w", machine.step+1, err)
		}
		if err := machine.pullBatch(); err != nil {
			return nil, err
		}

		pushStart := time.Now()
		memory.Push(batch)
		t.record(metrics.OpMemoryPush, pushStart)
		if err := machine.pushed(); err != nil {
			return nil, err
		}

		replayStep, err := machine.chooseTraining()
		if err != nil {
			return nil, err
		}
		trainBatch := batch
		if replayStep {
			sampleStart := time.Now()
			trainBatch, err = memory.Sample(t.cfg.ReplaySampleSize)
			if err != nil {
				return nil, fmt.Errorf("replay sample at step %d: %w", machine.step, err)
			}
			t.recordBatch(metrics.OpReplaySample, sampleStart, trainBatch.Size())
			t.log.Debug("replay step",
				"step", machine.step,
				"sampled", trainBatch.Size(),
				"memory_size", memory.Len())
		}

		stepStart := time.Now()
		t.optimizer.ZeroGrad()
		loss, _, err := t.classifier.Classify(trainBatch.Contents, trainBatch.AttentionMasks, trainBatch.Labels)
		if err != nil {
			return nil, fmt.Errorf("classify at step %d: %w", machine.step, err)
		}
		if err := t.optimizer.Step(); err != nil {
			return nil, fmt.Errorf("optimizer step at step %d: %w", machine.step, err)
		}
		t.recordBatch(metrics.OpTrainStep, stepStart, trainBatch.Size())
		if err := machine.stepApplied(); err != nil {
			return nil, err
		}

		stats.Steps++
		stats.TotalLoss += loss
		stats.LossHistory = append(stats.LossHistory, loss)
		if replayStep {
			stats.ReplaySteps++
		} else {
			stats.LiveSteps++
			stats.Examples += batch.Size()
		}

		if err := machine.completeStep(); err != nil {
			return nil, err
		}
		if t.cfg.OnStep != nil {
			t.cfg.OnStep(StepEvent{
				Step:       machine.step,
				Loss:       loss,
				Replay:     replayStep,
				MemorySize: memory.Len(),
			})
		}
	}
	if err := machine.finish(); err != nil {
		return nil, err
	}

	t.log.Debug("epoch complete",
		"steps", stats.Steps,
		"replay_steps", stats.ReplaySteps,
		"examples", stats.Examples,
		"mean_loss", stats.MeanLoss(),
		"memory_size", memory.Len())

	return &EpochResult{
		Params: t.classifier.SaveState(),
		Memory: memory.Snapshot(),
		Stats:  stats,
	}, nil
}

func (t *Trainer) record(op string, start time.Time) {
	if t.collector != nil {
		t.collector.Record(op, time.Since(start), nil)
	}
}

func (t *Trainer) recordBatch(op string, start time.Time, examples int) {
	if t.collector != nil {
		t.collector.RecordBatch(op, time.Since(start), int64(examples))
	}
}
