package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/checkpoint"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/metrics"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/model"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/stream"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/trainer"
)

var (
	trainOrder      int
	trainEpochs     int
	trainBatchSize  int
	trainPeriod     int
	trainSampleSize int
	trainMemoryCap  int
	trainLR         float64
	trainWorkers    int
	trainSeed       int64
	trainResume     bool
	trainNoUI       bool
	trainShowStats  bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a classifier over one task order with periodic replay",
	Long: `Train runs the classifier over the task order's datasets in sequence,
one batch at a time. Every pulled batch enters the episodic memory;
every replay-period-th step trains on a uniform memory sample instead
of the live batch. A checkpoint is written after each epoch, and the
per-step loss curve is exported as CSV when the run finishes.

Interrupting with Ctrl+C stops after the current step; checkpoints of
completed epochs are kept, so the run can be continued with --resume.

Examples:
  replay train --order 1
  replay train --order 2 --epochs 2 --replay-period 90
  replay train --order 1 --resume
  replay train --order 3 --workers 4 --stats`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().IntVar(&trainOrder, "order", 1, "task order to train on (1-4)")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 4, "number of passes over the task stream")
	trainCmd.Flags().IntVar(&trainBatchSize, "batch-size", 32, "examples per stream batch")
	trainCmd.Flags().IntVar(&trainPeriod, "replay-period", 180, "steps between replay-trained steps")
	trainCmd.Flags().IntVar(&trainSampleSize, "replay-sample-size", 64, "examples drawn from memory per replay step")
	trainCmd.Flags().IntVar(&trainMemoryCap, "memory-capacity", 10000, "maximum examples retained in episodic memory")
	trainCmd.Flags().Float64Var(&trainLR, "lr", 3e-5, "optimizer learning rate")
	trainCmd.Flags().IntVar(&trainWorkers, "workers", 0, "batches to prefetch ahead of the trainer (0 disables)")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 0, "parameter init seed (0 picks one)")
	trainCmd.Flags().BoolVar(&trainResume, "resume", false, "continue from the order's latest checkpoint")
	trainCmd.Flags().BoolVar(&trainNoUI, "no-progress", false, "disable the interactive progress display")
	trainCmd.Flags().BoolVar(&trainShowStats, "stats", false, "print run statistics when done")
}

// trainingRun carries the state of one train invocation across epochs.
type trainingRun struct {
	order      int
	epochs     int
	startEpoch int
	batchSize  int
	workers    int

	softmax   *model.Softmax
	optimizer *model.AdamW
	memory    *replay.Memory

	losses []float64
}

func runTrain(cmd *cobra.Command, args []string) error {
	if _, err := stream.TaskOrder(trainOrder); err != nil {
		return err
	}
	if trainEpochs < 1 {
		return fmt.Errorf("epochs must be positive, got %d", trainEpochs)
	}
	if trainBatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", trainBatchSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	smCfg := model.DefaultSoftmaxConfig()
	smCfg.Seed = trainSeed
	softmax, err := model.NewSoftmax(smCfg)
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}
	memory, err := replay.NewMemory(trainMemoryCap)
	if err != nil {
		return fmt.Errorf("init memory: %w", err)
	}

	startEpoch := 1
	if trainResume {
		cp, err := store.Latest(ctx, trainOrder)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			logger.Warn("no checkpoint to resume from, starting fresh", "order", trainOrder)
		case err != nil:
			return fmt.Errorf("resume: %w", err)
		default:
			softmax, err = model.NewSoftmaxFromParameters(cp.Params)
			if err != nil {
				return fmt.Errorf("resume: restore parameters: %w", err)
			}
			if err := memory.Restore(cp.Memory); err != nil {
				return fmt.Errorf("resume: restore memory: %w", err)
			}
			startEpoch = cp.Epoch + 1
			logger.Info("resuming from checkpoint",
				"order", cp.Order, "epoch", cp.Epoch, "memory_size", len(cp.Memory))
		}
	}
	if startEpoch > trainEpochs {
		logger.Info("all epochs already trained", "order", trainOrder, "epochs", trainEpochs)
		return nil
	}

	adamCfg := model.DefaultAdamWConfig()
	adamCfg.LearningRate = trainLR
	optimizer, err := model.NewAdamW(softmax, adamCfg)
	if err != nil {
		return fmt.Errorf("init optimizer: %w", err)
	}

	run := &trainingRun{
		order:      trainOrder,
		epochs:     trainEpochs,
		startEpoch: startEpoch,
		batchSize:  trainBatchSize,
		workers:    trainWorkers,
		softmax:    softmax,
		optimizer:  optimizer,
		memory:     memory,
	}

	interactive := !trainNoUI && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		err = runTrainWithUI(ctx, run)
	} else {
		err = run.execute(ctx, &logSink{})
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("training interrupted", "order", run.order, "completed_steps", len(run.losses))
		err = nil
	}
	if err != nil {
		return err
	}

	if len(run.losses) > 0 {
		path := lossCSVPath(cfg.LossDir, run.order)
		if err := writeLossCSV(path, run.losses); err != nil {
			return err
		}
		logger.Info("loss curve written", "path", path, "steps", len(run.losses))
	}

	if trainShowStats {
		printRunStats(collector.Snapshot())
	}
	return nil
}

// execute runs the remaining epochs, reporting progress through the sink.
func (r *trainingRun) execute(ctx context.Context, sink progressSink) error {
	tr, err := trainer.New(trainer.Config{
		ReplayPeriod:     trainPeriod,
		ReplaySampleSize: trainSampleSize,
		OnStep:           sink.step,
	}, r.softmax, r.optimizer, logger, collector)
	if err != nil {
		return err
	}

	start := time.Now()
	for epoch := r.startEpoch; epoch <= r.epochs; epoch++ {
		// The stream stays sequential: tasks must arrive in order.
		src, err := stream.OpenTaskStream(cfg.DataDir, r.order, stream.SplitTrain, r.batchSize, stream.OpenOptions{})
		if err != nil {
			return fmt.Errorf("open training stream: %w", err)
		}
		sink.epochStarted(epoch, r.epochs, src.Remaining())

		var epochStream stream.Stream = src
		var prefetcher *stream.Prefetcher
		if r.workers > 0 {
			prefetcher = stream.NewPrefetcher(ctx, src, r.workers)
			epochStream = prefetcher
		}

		result, err := tr.RunEpoch(ctx, epochStream, r.memory)
		if prefetcher != nil {
			if cerr := prefetcher.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		r.losses = append(r.losses, result.Stats.LossHistory...)

		saveStart := time.Now()
		cp := &checkpoint.Checkpoint{
			Order:    r.order,
			Epoch:    epoch,
			Steps:    result.Stats.Steps,
			Examples: result.Stats.Examples,
			MeanLoss: result.Stats.MeanLoss(),
			Params:   result.Params,
			Memory:   result.Memory,
		}
		err = store.Save(ctx, cp)
		collector.Record(metrics.OpCheckpointSave, time.Since(saveStart), err)
		if err != nil {
			return fmt.Errorf("save checkpoint for epoch %d: %w", epoch, err)
		}

		logger.Info("epoch complete",
			"order", r.order,
			"epoch", epoch,
			"steps", result.Stats.Steps,
			"replay_steps", result.Stats.ReplaySteps,
			"examples", result.Stats.Examples,
			"mean_loss", result.Stats.MeanLoss(),
			"memory_size", len(result.Memory),
			"checkpoint", cp.ID,
			"elapsed", time.Since(start).Round(time.Second).String())
		sink.epochFinished(epoch, result.Stats)
	}
	return nil
}

// progressSink receives training progress events. Implementations must
// be fast; the training loop blocks on them.
type progressSink interface {
	epochStarted(epoch, totalEpochs, totalSteps int)
	step(e trainer.StepEvent)
	epochFinished(epoch int, stats trainer.Stats)
}

// logSink reports progress through the structured logger, for
// non-interactive runs.
type logSink struct {
	epoch int
}

func (s *logSink) epochStarted(epoch, totalEpochs, totalSteps int) {
	s.epoch = epoch
	logger.Info("epoch started", "epoch", epoch, "total_epochs", totalEpochs, "steps", totalSteps)
}

func (s *logSink) step(e trainer.StepEvent) {
	if e.Step%40 == 0 {
		logger.Info("training",
			"epoch", s.epoch, "step", e.Step, "loss", e.Loss, "memory_size", e.MemorySize)
	}
}

func (s *logSink) epochFinished(epoch int, stats trainer.Stats) {}

func lossCSVPath(dir string, order int) string {
	return filepath.Join(dir, fmt.Sprintf("order_%d_train_loss.csv", order))
}

// writeLossCSV exports the per-step training losses with 1-based step
// numbers, one row per optimizer update.
func writeLossCSV(path string, losses []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create loss directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create loss file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"step", "loss"}); err != nil {
		f.Close()
		return fmt.Errorf("write loss header: %w", err)
	}
	for i, loss := range losses {
		row := []string{strconv.Itoa(i + 1), strconv.FormatFloat(loss, 'g', -1, 64)}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write loss row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush loss file: %w", err)
	}
	return f.Close()
}
