// Package replay implements the episodic memory used for sparse
// experience replay: a bounded buffer that retains a uniform reservoir
// sample of every example seen so far and serves uniform random batches
// from it during training.
package replay

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Memory is a bounded multiset of Examples with reservoir-sampling
// insertion and uniform with-replacement sampling.
//
// After N examples have been observed, every one of them is present with
// probability capacity/N, independent of arrival order. This holds
// without knowing the stream length in advance, which is what makes the
// buffer safe for an unbounded sequence of tasks.
//
// All methods are safe for concurrent use. Sequences that must be atomic
// as a whole (such as push-then-sample within one training step) still
// need coordination by the caller, because the retention probabilities
// assume one consistent observation count across the sequence.
type Memory struct {
	mu       sync.Mutex
	capacity int
	store    []Example
	observed int64
	rng      *rand.Rand
}

// NewMemory creates an empty memory with the given fixed capacity.
func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Memory{
		capacity: capacity,
		store:    make([]Example, 0, capacity),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Push applies reservoir insertion to every example in the batch. Until
// the memory is full each example is appended; afterwards an incoming
// example replaces a uniformly chosen slot with probability capacity/N,
// where N counts all examples ever observed. Stored examples are deep
// copies, so the batch remains usable by the caller.
func (m *Memory) Push(b *Batch) {
	if b == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < b.Size(); i++ {
		m.insert(Example{
			Content:       b.Contents[i],
			AttentionMask: b.AttentionMasks[i],
			Label:         b.Labels[i],
		})
	}
}

// insert applies one reservoir step. Caller must hold the lock.
func (m *Memory) insert(ex Example) {
	m.observed++
	if len(m.store) < m.capacity {
		m.store = append(m.store, ex.clone())
		return
	}
	// One draw decides both the replacement (j < capacity happens with
	// probability capacity/observed) and the evicted slot (j is uniform
	// over the slots given that it hits).
	if j := m.rng.Int63n(m.observed); j < int64(m.capacity) {
		m.store[j] = ex.clone()
	}
}

// Sample returns a batch of exactly k examples drawn uniformly at random
// with replacement, so k may exceed the number of stored examples. The
// returned batch owns deep copies. Sampling an empty memory fails with
// ErrEmptyMemory and leaves the memory untouched.
func (m *Memory) Sample(k int) (*Batch, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleSize, k)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.store) == 0 {
		return nil, ErrEmptyMemory
	}
	examples := make([]Example, k)
	for i := range examples {
		examples[i] = m.store[m.rng.Intn(len(m.store))].clone()
	}
	return NewBatch(examples)
}

// Snapshot returns a deep copy of the current contents for persistence.
// The live memory is unaffected by anything the caller does with it.
func (m *Memory) Snapshot() []Example {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := make([]Example, len(m.store))
	for i, ex := range m.store {
		snap[i] = ex.clone()
	}
	return snap
}

// Restore replaces the current contents with a previously snapshotted
// state, for resuming a run from a checkpoint. The observation count is
// reset to the number of restored examples.
func (m *Memory) Restore(examples []Example) error {
	if len(examples) > m.capacity {
		return fmt.Errorf("%w: %d examples exceed capacity %d",
			ErrInvalidCapacity, len(examples), m.capacity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = m.store[:0]
	for _, ex := range examples {
		m.store = append(m.store, ex.clone())
	}
	m.observed = int64(len(m.store))
	return nil
}

// Len returns the number of examples currently stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// Observed returns the total number of examples ever pushed.
func (m *Memory) Observed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observed
}

// Capacity returns the fixed maximum number of stored examples.
func (m *Memory) Capacity() int {
	return m.capacity
}
