// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Batch size metrics (only for operations that process examples)
	TotalExamples int64
	MinBatchSize  int64
	MaxBatchSize  int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Errors      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Batch stats (nil if not applicable)
	TotalExamples *int64
	AvgBatchSize  *float64
	MinBatchSize  *int64
	MaxBatchSize  *int64
}

// Snapshot represents the full run statistics at a point in time.
type Snapshot struct {
	UptimeSeconds  float64
	MemoryPush     *OperationSnapshot
	ReplaySample   *OperationSnapshot
	TrainStep      *OperationSnapshot
	EvalBatch      *OperationSnapshot
	CheckpointSave *OperationSnapshot
}

// Operation names for the collector.
const (
	OpMemoryPush     = "memory_push"
	OpReplaySample   = "replay_sample"
	OpTrainStep      = "train_step"
	OpEvalBatch      = "eval_batch"
	OpCheckpointSave = "checkpoint_save"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime:      time.Duration(math.MaxInt64),
			MinBatchSize: math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

// Record records timing and outcome for an operation.
func (c *Collector) Record(op string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if err != nil {
		m.Errors++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordBatch records timing and example throughput for an operation
// that processes a batch.
func (c *Collector) RecordBatch(op string, duration time.Duration, examples int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}

	m.TotalExamples += examples

	if examples < m.MinBatchSize {
		m.MinBatchSize = examples
	}
	if examples > m.MaxBatchSize {
		m.MaxBatchSize = examples
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeBatches bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeBatches && m.TotalExamples > 0 {
		total := m.TotalExamples
		avg := float64(m.TotalExamples) / float64(m.Count)
		minBatch := m.MinBatchSize
		maxBatch := m.MaxBatchSize

		// Reset sentinel values for display
		if minBatch == math.MaxInt64 {
			minBatch = 0
		}

		snap.TotalExamples = &total
		snap.AvgBatchSize = &avg
		snap.MinBatchSize = &minBatch
		snap.MaxBatchSize = &maxBatch
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:  time.Since(c.startTime).Seconds(),
		MemoryPush:     snapshotOp(c.ops[OpMemoryPush], false),
		ReplaySample:   snapshotOp(c.ops[OpReplaySample], true),
		TrainStep:      snapshotOp(c.ops[OpTrainStep], true),
		EvalBatch:      snapshotOp(c.ops[OpEvalBatch], true),
		CheckpointSave: snapshotOp(c.ops[OpCheckpointSave], false),
	}
}
