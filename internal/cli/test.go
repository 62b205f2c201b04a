package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/checkpoint"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/eval"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/model"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/stream"
)

var (
	testOrder     int
	testEpoch     int
	testBatchSize int
	testSeed      int64
	testShowStats bool
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Evaluate a saved checkpoint on a task order's test split",
	Long: `Test loads a checkpoint, rebuilds the classifier from its saved
parameters and measures accuracy over the task order's test datasets.
The test stream is shuffled so every batch mixes examples from all
tasks; accuracy is the mean of per-batch accuracies.

Without --epoch the order's latest checkpoint is used.

Examples:
  replay test --order 1
  replay test --order 1 --epoch 2
  replay test --order 4 --seed 7`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().IntVar(&testOrder, "order", 1, "task order to evaluate (1-4)")
	testCmd.Flags().IntVar(&testEpoch, "epoch", 0, "checkpoint epoch (0 uses the latest)")
	testCmd.Flags().IntVar(&testBatchSize, "batch-size", 32, "examples per evaluation batch")
	testCmd.Flags().Int64Var(&testSeed, "seed", 0, "test stream shuffle seed (0 picks one)")
	testCmd.Flags().BoolVar(&testShowStats, "stats", false, "print run statistics when done")
}

// barStream counts delivered batches on a progress bar.
type barStream struct {
	src stream.Stream
	bar *progressbar.ProgressBar
}

func (s *barStream) Next(ctx context.Context) (*replay.Batch, error) {
	b, err := s.src.Next(ctx)
	if err == nil {
		_ = s.bar.Add(1)
	}
	return b, err
}

func runTest(cmd *cobra.Command, args []string) error {
	if _, err := stream.TaskOrder(testOrder); err != nil {
		return err
	}
	if testBatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", testBatchSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cp, err := loadCheckpoint(ctx, testOrder, testEpoch)
	if err != nil {
		return err
	}
	logger.Info("evaluating checkpoint",
		"order", cp.Order, "epoch", cp.Epoch, "checkpoint", cp.ID, "train_loss", cp.MeanLoss)

	softmax, err := model.NewSoftmaxFromParameters(cp.Params)
	if err != nil {
		return fmt.Errorf("restore parameters: %w", err)
	}
	evaluator, err := eval.New(softmax, logger, collector)
	if err != nil {
		return err
	}

	seed := testSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	src, err := stream.OpenTaskStream(cfg.DataDir, testOrder, stream.SplitTest, testBatchSize, stream.OpenOptions{
		Shuffle: true,
		Seed:    seed,
	})
	if err != nil {
		return fmt.Errorf("open test stream: %w", err)
	}

	var evalStream stream.Stream = src
	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.Default(int64(src.Remaining()), "evaluating")
		evalStream = &barStream{src: src, bar: bar}
	}

	result, err := evaluator.Run(ctx, evalStream)
	if err != nil {
		return fmt.Errorf("evaluate order %d epoch %d: %w", cp.Order, cp.Epoch, err)
	}

	fmt.Printf("Checkpoint: order %d, epoch %d (%s)\n", cp.Order, cp.Epoch, shortID(cp.ID))
	fmt.Printf("Validation accuracy: %.4f\n", result.Accuracy)
	fmt.Printf("Batches: %d, examples: %d\n", result.Batches, result.Examples)
	fmt.Printf("Time taken for validation: %.2f minutes\n", result.Elapsed.Minutes())

	if testShowStats {
		fmt.Println()
		printRunStats(collector.Snapshot())
	}
	return nil
}

// loadCheckpoint fetches a specific epoch, or the order's latest when
// epoch is zero.
func loadCheckpoint(ctx context.Context, order, epoch int) (*checkpoint.Checkpoint, error) {
	if epoch > 0 {
		cp, err := store.Load(ctx, order, epoch)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		return cp, nil
	}
	cp, err := store.Latest(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	return cp, nil
}
