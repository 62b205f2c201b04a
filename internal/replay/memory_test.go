package replay

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// makeExample builds a small example whose first token and label both
// carry the given id, so tests can track individual examples.
func makeExample(t *testing.T, id int) Example {
	t.Helper()
	ex, err := NewExample([]int{id, 1, 2}, []int{1, 1, 0}, id)
	if err != nil {
		t.Fatalf("NewExample() error = %v", err)
	}
	return ex
}

// makeBatch builds a batch with one example per id.
func makeBatch(t *testing.T, ids ...int) *Batch {
	t.Helper()
	examples := make([]Example, len(ids))
	for i, id := range ids {
		examples[i] = makeExample(t, id)
	}
	b, err := NewBatch(examples)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	return b
}

func TestNewMemory_Capacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{name: "positive", capacity: 100},
		{name: "one", capacity: 1},
		{name: "zero", capacity: 0, wantErr: true},
		{name: "negative", capacity: -5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMemory(tt.capacity)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCapacity) {
					t.Errorf("NewMemory(%d) error = %v, want ErrInvalidCapacity", tt.capacity, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMemory(%d) error = %v", tt.capacity, err)
			}
			if got := m.Capacity(); got != tt.capacity {
				t.Errorf("Capacity() = %d, want %d", got, tt.capacity)
			}
		})
	}
}

func TestMemory_CapacityInvariant(t *testing.T) {
	const capacity = 100
	m, err := NewMemory(capacity)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}

	// 150 distinct single-example batches, size checked after every push.
	for id := 0; id < 150; id++ {
		m.Push(makeBatch(t, id))
		if got := m.Len(); got > capacity {
			t.Fatalf("Len() = %d after %d pushes, want <= %d", got, id+1, capacity)
		}
	}

	if got := m.Len(); got != capacity {
		t.Errorf("Len() = %d, want %d", got, capacity)
	}
	if got := m.Observed(); got != 150 {
		t.Errorf("Observed() = %d, want 150", got)
	}
}

func TestMemory_FillsBeforeEvicting(t *testing.T) {
	const capacity = 20
	m, err := NewMemory(capacity)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}

	for id := 0; id < capacity; id++ {
		m.Push(makeBatch(t, id))
	}

	seen := make(map[int]bool)
	for _, ex := range m.Snapshot() {
		seen[ex.Label] = true
	}
	for id := 0; id < capacity; id++ {
		if !seen[id] {
			t.Errorf("example %d missing before capacity was reached", id)
		}
	}
}

// TestMemory_ReservoirFairness pushes N distinct examples into a memory
// of capacity C many times over and checks that each example ends up
// present with empirical frequency close to C/N.
func TestMemory_ReservoirFairness(t *testing.T) {
	const (
		capacity = 50
		total    = 250
		trials   = 400
	)
	want := float64(capacity) / float64(total)

	presence := make([]int, total)
	for trial := 0; trial < trials; trial++ {
		m, err := NewMemory(capacity)
		if err != nil {
			t.Fatalf("NewMemory() error = %v", err)
		}
		m.rng = rand.New(rand.NewSource(int64(trial + 1)))

		for id := 0; id < total; id++ {
			m.Push(makeBatch(t, id))
		}
		for _, ex := range m.Snapshot() {
			presence[ex.Label]++
		}
	}

	var sumDev float64
	for id, count := range presence {
		freq := float64(count) / float64(trials)
		dev := math.Abs(freq - want)
		sumDev += dev
		if dev > 0.10 {
			t.Errorf("example %d present with frequency %.3f, want %.3f +- 0.10", id, freq, want)
		}
	}
	if mean := sumDev / float64(total); mean > 0.02 {
		t.Errorf("mean frequency deviation = %.4f, want <= 0.02", mean)
	}
}

func TestMemory_SampleSizeContract(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	m.Push(makeBatch(t, 0, 1, 2, 3, 4))

	tests := []struct {
		name string
		k    int
	}{
		{name: "single", k: 1},
		{name: "below stored count", k: 3},
		{name: "equal to stored count", k: 5},
		{name: "above stored count", k: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := m.Sample(tt.k)
			if err != nil {
				t.Fatalf("Sample(%d) error = %v", tt.k, err)
			}
			if got := b.Size(); got != tt.k {
				t.Errorf("Sample(%d) returned %d examples, want %d", tt.k, got, tt.k)
			}
			for i, label := range b.Labels {
				if label < 0 || label > 4 {
					t.Errorf("sampled example %d has label %d, want one of the stored labels", i, label)
				}
			}
		})
	}
}

func TestMemory_SampleInvalidSize(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	m.Push(makeBatch(t, 1))

	for _, k := range []int{0, -3} {
		if _, err := m.Sample(k); !errors.Is(err, ErrInvalidSampleSize) {
			t.Errorf("Sample(%d) error = %v, want ErrInvalidSampleSize", k, err)
		}
	}
}

func TestMemory_SampleEmpty(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}

	if _, err := m.Sample(10); !errors.Is(err, ErrEmptyMemory) {
		t.Errorf("Sample(10) error = %v, want ErrEmptyMemory", err)
	}
	if got := m.Len(); got != 0 {
		t.Errorf("Len() = %d after failed sample, want 0", got)
	}
	if got := m.Observed(); got != 0 {
		t.Errorf("Observed() = %d after failed sample, want 0", got)
	}
}

func TestMemory_PushCopiesExamples(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}

	b := makeBatch(t, 7)
	m.Push(b)

	// Corrupt the pushed batch; the stored copy must be unaffected.
	b.Contents[0][0] = -999

	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() returned %d examples, want 1", len(snap))
	}
	if got := snap[0].Content[0]; got != 7 {
		t.Errorf("stored content[0] = %d after mutating source batch, want 7", got)
	}
}

func TestMemory_SampleCopiesExamples(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	m.Push(makeBatch(t, 7))

	b, err := m.Sample(1)
	if err != nil {
		t.Fatalf("Sample(1) error = %v", err)
	}
	b.Contents[0][0] = -999

	snap := m.Snapshot()
	if got := snap[0].Content[0]; got != 7 {
		t.Errorf("stored content[0] = %d after mutating sampled batch, want 7", got)
	}
}

func TestMemory_SnapshotIsolation(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	m.Push(makeBatch(t, 7))

	snap := m.Snapshot()
	snap[0].Content[0] = -999

	again := m.Snapshot()
	if got := again[0].Content[0]; got != 7 {
		t.Errorf("stored content[0] = %d after mutating snapshot, want 7", got)
	}
}

func TestMemory_Restore(t *testing.T) {
	m, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	m.Push(makeBatch(t, 1, 2, 3))
	snap := m.Snapshot()

	restored, err := NewMemory(10)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := restored.Len(); got != 3 {
		t.Errorf("Len() = %d after restore, want 3", got)
	}
	if got := restored.Observed(); got != 3 {
		t.Errorf("Observed() = %d after restore, want 3", got)
	}

	small, err := NewMemory(2)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	if err := small.Restore(snap); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("Restore() into capacity 2 error = %v, want ErrInvalidCapacity", err)
	}
}
