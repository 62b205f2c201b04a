// Package model defines the classifier contract the training loop works
// against and provides a small self-contained reference implementation.
// The trainer never looks inside a classifier; it only requests losses,
// predictions and parameter snapshots.
package model

// Classifier is the opaque text classifier the trainer and evaluator
// drive. Implementations own their parameters and gradient state.
type Classifier interface {
	// Classify runs a training-mode forward pass over a batch and
	// accumulates gradients for a following optimizer step. Returns the
	// mean loss over the batch and the per-example prediction logits.
	Classify(contents, masks [][]int, labels []int) (loss float64, logits [][]float64, err error)

	// Infer runs an inference-only forward pass. No gradient state is
	// touched.
	Infer(contents, masks [][]int) ([][]float64, error)

	// SaveState returns a deep copy of the current parameters, safe to
	// persist while training continues.
	SaveState() Parameters
}

// Optimizer applies accumulated gradients to a classifier's parameters.
type Optimizer interface {
	// ZeroGrad clears accumulated gradients before a forward pass.
	ZeroGrad()

	// Step applies one parameter update from the accumulated gradients.
	Step() error
}

// Parameters is a flat, serializable snapshot of classifier weights.
type Parameters struct {
	VocabSize  int       `json:"vocab_size"`
	EmbedDim   int       `json:"embed_dim"`
	NumClasses int       `json:"num_classes"`
	Embedding  []float64 `json:"embedding"` // VocabSize x EmbedDim, row-major
	Weight     []float64 `json:"weight"`    // NumClasses x EmbedDim, row-major
	Bias       []float64 `json:"bias"`      // NumClasses
}

// Clone returns a deep copy of the parameters.
func (p Parameters) Clone() Parameters {
	c := Parameters{
		VocabSize:  p.VocabSize,
		EmbedDim:   p.EmbedDim,
		NumClasses: p.NumClasses,
		Embedding:  make([]float64, len(p.Embedding)),
		Weight:     make([]float64, len(p.Weight)),
		Bias:       make([]float64, len(p.Bias)),
	}
	copy(c.Embedding, p.Embedding)
	copy(c.Weight, p.Weight)
	copy(c.Bias, p.Bias)
	return c
}
