package cli

import (
	"fmt"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/metrics"
)

// printRunStats displays run statistics from the in-memory collector.
func printRunStats(snap metrics.Snapshot) {
	fmt.Printf("Run Statistics (in-memory)\n")
	fmt.Printf("═══════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if snap.MemoryPush != nil {
		fmt.Printf("\nMemory Push:\n")
		printOpStats(snap.MemoryPush)
	}

	if snap.ReplaySample != nil {
		fmt.Printf("\nReplay Sample:\n")
		printOpStats(snap.ReplaySample)
		printBatchStats(snap.ReplaySample)
	}

	if snap.TrainStep != nil {
		fmt.Printf("\nTrain Step:\n")
		printOpStats(snap.TrainStep)
		printBatchStats(snap.TrainStep)
	}

	if snap.EvalBatch != nil {
		fmt.Printf("\nEval Batch:\n")
		printOpStats(snap.EvalBatch)
		printBatchStats(snap.EvalBatch)
	}

	if snap.CheckpointSave != nil {
		fmt.Printf("\nCheckpoint Save:\n")
		printOpStats(snap.CheckpointSave)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.Errors > 0 {
		fmt.Printf("  Errors: %d\n", op.Errors)
	}
}

// printBatchStats displays example throughput if available.
func printBatchStats(op *metrics.OperationSnapshot) {
	if op.TotalExamples == nil {
		return
	}
	fmt.Printf("  Examples: %d total", *op.TotalExamples)
	if op.AvgBatchSize != nil {
		fmt.Printf(", avg batch %.0f", *op.AvgBatchSize)
	}
	if op.MinBatchSize != nil && op.MaxBatchSize != nil {
		fmt.Printf(", min %d, max %d", *op.MinBatchSize, *op.MaxBatchSize)
	}
	fmt.Println()
}
