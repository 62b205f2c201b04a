package model

import (
	"math"
	"testing"
)

// newTestSoftmax builds a small deterministic classifier.
func newTestSoftmax(t *testing.T) *Softmax {
	t.Helper()
	s, err := NewSoftmax(SoftmaxConfig{
		VocabSize:  10,
		EmbedDim:   8,
		NumClasses: 2,
		Seed:       42,
	})
	if err != nil {
		t.Fatalf("NewSoftmax() error = %v", err)
	}
	return s
}

func TestNewSoftmax_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  SoftmaxConfig
	}{
		{name: "zero vocab", cfg: SoftmaxConfig{EmbedDim: 8, NumClasses: 2}},
		{name: "zero dim", cfg: SoftmaxConfig{VocabSize: 10, NumClasses: 2}},
		{name: "zero classes", cfg: SoftmaxConfig{VocabSize: 10, EmbedDim: 8}},
		{name: "negative vocab", cfg: SoftmaxConfig{VocabSize: -1, EmbedDim: 8, NumClasses: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSoftmax(tt.cfg); err == nil {
				t.Error("NewSoftmax() error = nil, want error")
			}
		})
	}
}

func TestSoftmax_ClassifyShapes(t *testing.T) {
	s := newTestSoftmax(t)

	contents := [][]int{{1, 2, 3}, {4, 5, 0}}
	masks := [][]int{{1, 1, 1}, {1, 1, 0}}
	labels := []int{0, 1}

	loss, logits, err := s.Classify(contents, masks, labels)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) || loss <= 0 {
		t.Errorf("Classify() loss = %v, want finite positive", loss)
	}
	if len(logits) != 2 {
		t.Fatalf("Classify() returned %d logit rows, want 2", len(logits))
	}
	for i, row := range logits {
		if len(row) != 2 {
			t.Errorf("logits[%d] has %d classes, want 2", i, len(row))
		}
	}
}

func TestSoftmax_ClassifyValidation(t *testing.T) {
	s := newTestSoftmax(t)

	tests := []struct {
		name     string
		contents [][]int
		masks    [][]int
		labels   []int
	}{
		{
			name: "empty batch",
		},
		{
			name:     "mismatched slice counts",
			contents: [][]int{{1}, {2}},
			masks:    [][]int{{1}},
			labels:   []int{0, 1},
		},
		{
			name:     "content and mask length differ",
			contents: [][]int{{1, 2}},
			masks:    [][]int{{1}},
			labels:   []int{0},
		},
		{
			name:     "label out of range",
			contents: [][]int{{1}},
			masks:    [][]int{{1}},
			labels:   []int{2},
		},
		{
			name:     "negative label",
			contents: [][]int{{1}},
			masks:    [][]int{{1}},
			labels:   []int{-1},
		},
		{
			name:     "token out of vocabulary",
			contents: [][]int{{99}},
			masks:    [][]int{{1}},
			labels:   []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := s.Classify(tt.contents, tt.masks, tt.labels); err == nil {
				t.Error("Classify() error = nil, want error")
			}
		})
	}
}

func TestSoftmax_TrainingReducesLoss(t *testing.T) {
	s := newTestSoftmax(t)
	opt, err := NewAdamW(s, AdamWConfig{
		LearningRate: 0.1,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	})
	if err != nil {
		t.Fatalf("NewAdamW() error = %v", err)
	}

	// Token 1 predicts class 0, token 2 predicts class 1.
	contents := [][]int{{1}, {2}}
	masks := [][]int{{1}, {1}}
	labels := []int{0, 1}

	opt.ZeroGrad()
	first, _, err := s.Classify(contents, masks, labels)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if err := opt.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	var last float64
	for i := 0; i < 200; i++ {
		opt.ZeroGrad()
		last, _, err = s.Classify(contents, masks, labels)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if err := opt.Step(); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}

	if last >= first {
		t.Errorf("loss after training = %v, want below initial %v", last, first)
	}
	if last > 0.2 {
		t.Errorf("loss after training = %v, want <= 0.2", last)
	}
}

func TestSoftmax_InferMatchesClassify(t *testing.T) {
	s := newTestSoftmax(t)

	contents := [][]int{{1, 2}, {3, 4}}
	masks := [][]int{{1, 1}, {1, 1}}

	_, trainLogits, err := s.Classify(contents, masks, []int{0, 1})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	inferLogits, err := s.Infer(contents, masks)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	for i := range trainLogits {
		for k := range trainLogits[i] {
			if diff := math.Abs(trainLogits[i][k] - inferLogits[i][k]); diff > 1e-12 {
				t.Errorf("logits[%d][%d] differ between Classify and Infer by %v", i, k, diff)
			}
		}
	}
}

func TestSoftmax_InferDoesNotMutate(t *testing.T) {
	s := newTestSoftmax(t)
	before := s.SaveState()

	if _, err := s.Infer([][]int{{1, 2, 3}}, [][]int{{1, 1, 1}}); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	after := s.SaveState()
	if !parametersEqual(before, after) {
		t.Error("parameters changed after Infer()")
	}
}

func TestSoftmax_AllMaskedExample(t *testing.T) {
	s := newTestSoftmax(t)

	loss, logits, err := s.Classify([][]int{{1, 2}}, [][]int{{0, 0}}, []int{0})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.Errorf("Classify() loss = %v for all-masked example, want finite", loss)
	}
	if len(logits) != 1 || len(logits[0]) != 2 {
		t.Errorf("Classify() logits shape = %dx%d, want 1x2", len(logits), len(logits[0]))
	}
}

func TestSoftmax_SaveStateDeepCopy(t *testing.T) {
	s := newTestSoftmax(t)

	snap := s.SaveState()
	original := snap.Embedding[0]
	snap.Embedding[0] = 12345

	again := s.SaveState()
	if again.Embedding[0] != original {
		t.Errorf("Embedding[0] = %v after mutating snapshot, want %v", again.Embedding[0], original)
	}
}

func TestNewSoftmaxFromParameters(t *testing.T) {
	s := newTestSoftmax(t)
	contents := [][]int{{1, 2, 3}}
	masks := [][]int{{1, 1, 1}}

	want, err := s.Infer(contents, masks)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	restored, err := NewSoftmaxFromParameters(s.SaveState())
	if err != nil {
		t.Fatalf("NewSoftmaxFromParameters() error = %v", err)
	}
	got, err := restored.Infer(contents, masks)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	for k := range want[0] {
		if want[0][k] != got[0][k] {
			t.Errorf("restored logits[0][%d] = %v, want %v", k, got[0][k], want[0][k])
		}
	}
}

func TestNewSoftmaxFromParameters_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params Parameters
	}{
		{
			name:   "zero dims",
			params: Parameters{},
		},
		{
			name: "embedding size mismatch",
			params: Parameters{
				VocabSize: 2, EmbedDim: 2, NumClasses: 2,
				Embedding: make([]float64, 3),
				Weight:    make([]float64, 4),
				Bias:      make([]float64, 2),
			},
		},
		{
			name: "bias size mismatch",
			params: Parameters{
				VocabSize: 2, EmbedDim: 2, NumClasses: 2,
				Embedding: make([]float64, 4),
				Weight:    make([]float64, 4),
				Bias:      make([]float64, 1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSoftmaxFromParameters(tt.params); err == nil {
				t.Error("NewSoftmaxFromParameters() error = nil, want error")
			}
		})
	}
}

func parametersEqual(a, b Parameters) bool {
	if a.VocabSize != b.VocabSize || a.EmbedDim != b.EmbedDim || a.NumClasses != b.NumClasses {
		return false
	}
	for i := range a.Embedding {
		if a.Embedding[i] != b.Embedding[i] {
			return false
		}
	}
	for i := range a.Weight {
		if a.Weight[i] != b.Weight[i] {
			return false
		}
	}
	for i := range a.Bias {
		if a.Bias[i] != b.Bias[i] {
			return false
		}
	}
	return true
}
