package model

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SoftmaxConfig configures the reference classifier.
type SoftmaxConfig struct {
	VocabSize  int
	EmbedDim   int
	NumClasses int
	// Seed for weight initialization; 0 uses the current time.
	Seed int64
}

// DefaultSoftmaxConfig returns the configuration used by the CLI: a
// BERT-sized vocabulary and the merged 33-class label space of the five
// benchmark datasets.
func DefaultSoftmaxConfig() SoftmaxConfig {
	return SoftmaxConfig{
		VocabSize:  30522,
		EmbedDim:   64,
		NumClasses: 33,
	}
}

// Softmax is the reference Classifier: a mean-pooled embedding bag over
// the unmasked token positions followed by a linear layer with softmax
// cross-entropy. It is deliberately small; the training loop treats it
// the same as any heavyweight encoder behind the Classifier interface.
type Softmax struct {
	cfg SoftmaxConfig

	embedding *mat.Dense    // VocabSize x EmbedDim
	weight    *mat.Dense    // NumClasses x EmbedDim
	bias      *mat.VecDense // NumClasses

	gradEmbedding *mat.Dense
	gradWeight    *mat.Dense
	gradBias      *mat.VecDense
}

// NewSoftmax creates a classifier with small random weights.
func NewSoftmax(cfg SoftmaxConfig) (*Softmax, error) {
	if cfg.VocabSize <= 0 || cfg.EmbedDim <= 0 || cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("softmax config: vocab %d, dim %d, classes %d must all be positive",
			cfg.VocabSize, cfg.EmbedDim, cfg.NumClasses)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	s := &Softmax{cfg: cfg}
	s.embedding = randDense(rng, cfg.VocabSize, cfg.EmbedDim, 0.02)
	s.weight = randDense(rng, cfg.NumClasses, cfg.EmbedDim, 0.02)
	s.bias = mat.NewVecDense(cfg.NumClasses, nil)
	s.gradEmbedding = mat.NewDense(cfg.VocabSize, cfg.EmbedDim, nil)
	s.gradWeight = mat.NewDense(cfg.NumClasses, cfg.EmbedDim, nil)
	s.gradBias = mat.NewVecDense(cfg.NumClasses, nil)
	return s, nil
}

// NewSoftmaxFromParameters restores a classifier from a snapshot, as
// when resuming from a checkpoint for evaluation.
func NewSoftmaxFromParameters(p Parameters) (*Softmax, error) {
	if p.VocabSize <= 0 || p.EmbedDim <= 0 || p.NumClasses <= 0 {
		return nil, fmt.Errorf("parameters: vocab %d, dim %d, classes %d must all be positive",
			p.VocabSize, p.EmbedDim, p.NumClasses)
	}
	if len(p.Embedding) != p.VocabSize*p.EmbedDim {
		return nil, fmt.Errorf("parameters: embedding has %d values, want %d",
			len(p.Embedding), p.VocabSize*p.EmbedDim)
	}
	if len(p.Weight) != p.NumClasses*p.EmbedDim {
		return nil, fmt.Errorf("parameters: weight has %d values, want %d",
			len(p.Weight), p.NumClasses*p.EmbedDim)
	}
	if len(p.Bias) != p.NumClasses {
		return nil, fmt.Errorf("parameters: bias has %d values, want %d",
			len(p.Bias), p.NumClasses)
	}

	c := p.Clone()
	s := &Softmax{
		cfg: SoftmaxConfig{
			VocabSize:  p.VocabSize,
			EmbedDim:   p.EmbedDim,
			NumClasses: p.NumClasses,
		},
	}
	s.embedding = mat.NewDense(p.VocabSize, p.EmbedDim, c.Embedding)
	s.weight = mat.NewDense(p.NumClasses, p.EmbedDim, c.Weight)
	s.bias = mat.NewVecDense(p.NumClasses, c.Bias)
	s.gradEmbedding = mat.NewDense(p.VocabSize, p.EmbedDim, nil)
	s.gradWeight = mat.NewDense(p.NumClasses, p.EmbedDim, nil)
	s.gradBias = mat.NewVecDense(p.NumClasses, nil)
	return s, nil
}

func randDense(rng *rand.Rand, rows, cols int, stddev float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * stddev
	}
	return mat.NewDense(rows, cols, data)
}

// Classify implements Classifier. The forward pass and the gradient
// accumulation happen together; call the optimizer's ZeroGrad before and
// Step after.
func (s *Softmax) Classify(contents, masks [][]int, labels []int) (float64, [][]float64, error) {
	if err := s.checkBatch(contents, masks, labels); err != nil {
		return 0, nil, err
	}

	batch := len(contents)
	scale := 1.0 / float64(batch)
	logits := make([][]float64, batch)
	var totalLoss float64

	pooled := mat.NewVecDense(s.cfg.EmbedDim, nil)
	dlogits := mat.NewVecDense(s.cfg.NumClasses, nil)
	dpooled := mat.NewVecDense(s.cfg.EmbedDim, nil)

	for i := range contents {
		active, err := s.pool(pooled, contents[i], masks[i])
		if err != nil {
			return 0, nil, err
		}

		exLogits, logZ := s.head(pooled)
		logits[i] = exLogits
		totalLoss += logZ - exLogits[labels[i]]

		// dlogits = softmax(logits) - onehot(label), averaged over the batch.
		for k := 0; k < s.cfg.NumClasses; k++ {
			p := math.Exp(exLogits[k] - logZ)
			if k == labels[i] {
				p -= 1
			}
			dlogits.SetVec(k, p*scale)
		}

		s.gradWeight.RankOne(s.gradWeight, 1, dlogits, pooled)
		s.gradBias.AddVec(s.gradBias, dlogits)

		if len(active) > 0 {
			dpooled.MulVec(s.weight.T(), dlogits)
			tokenScale := 1.0 / float64(len(active))
			for _, tok := range active {
				floats.AddScaled(s.gradEmbedding.RawRowView(tok), tokenScale, dpooled.RawVector().Data)
			}
		}
	}

	return totalLoss * scale, logits, nil
}

// Infer implements Classifier.
func (s *Softmax) Infer(contents, masks [][]int) ([][]float64, error) {
	if len(contents) != len(masks) {
		return nil, fmt.Errorf("infer: %d contents but %d masks", len(contents), len(masks))
	}

	logits := make([][]float64, len(contents))
	pooled := mat.NewVecDense(s.cfg.EmbedDim, nil)
	for i := range contents {
		if len(contents[i]) != len(masks[i]) {
			return nil, fmt.Errorf("infer: example %d has content length %d but mask length %d",
				i, len(contents[i]), len(masks[i]))
		}
		if _, err := s.pool(pooled, contents[i], masks[i]); err != nil {
			return nil, err
		}
		logits[i], _ = s.head(pooled)
	}
	return logits, nil
}

// SaveState implements Classifier.
func (s *Softmax) SaveState() Parameters {
	p := Parameters{
		VocabSize:  s.cfg.VocabSize,
		EmbedDim:   s.cfg.EmbedDim,
		NumClasses: s.cfg.NumClasses,
		Embedding:  make([]float64, s.cfg.VocabSize*s.cfg.EmbedDim),
		Weight:     make([]float64, s.cfg.NumClasses*s.cfg.EmbedDim),
		Bias:       make([]float64, s.cfg.NumClasses),
	}
	copy(p.Embedding, s.embedding.RawMatrix().Data)
	copy(p.Weight, s.weight.RawMatrix().Data)
	copy(p.Bias, s.bias.RawVector().Data)
	return p
}

// Config returns the dimensions the classifier was built with.
func (s *Softmax) Config() SoftmaxConfig {
	return s.cfg
}

// pool writes the mean of the embedding rows at unmasked positions into
// dst and returns the unmasked token ids. An all-masked example pools to
// the zero vector.
func (s *Softmax) pool(dst *mat.VecDense, content, mask []int) ([]int, error) {
	dst.Zero()
	active := make([]int, 0, len(content))
	for t, tok := range content {
		if mask[t] == 0 {
			continue
		}
		if tok < 0 || tok >= s.cfg.VocabSize {
			return nil, fmt.Errorf("token %d out of vocabulary range [0,%d)", tok, s.cfg.VocabSize)
		}
		dst.AddVec(dst, s.embedding.RowView(tok))
		active = append(active, tok)
	}
	if len(active) > 0 {
		dst.ScaleVec(1.0/float64(len(active)), dst)
	}
	return active, nil
}

// head computes logits = W*pooled + bias and the log-partition term.
func (s *Softmax) head(pooled *mat.VecDense) ([]float64, float64) {
	out := mat.NewVecDense(s.cfg.NumClasses, nil)
	out.MulVec(s.weight, pooled)
	out.AddVec(out, s.bias)

	logits := make([]float64, s.cfg.NumClasses)
	copy(logits, out.RawVector().Data)
	return logits, floats.LogSumExp(logits)
}

func (s *Softmax) checkBatch(contents, masks [][]int, labels []int) error {
	if len(contents) == 0 {
		return fmt.Errorf("classify: empty batch")
	}
	if len(contents) != len(masks) || len(contents) != len(labels) {
		return fmt.Errorf("classify: batch slices have lengths %d/%d/%d, want equal",
			len(contents), len(masks), len(labels))
	}
	for i := range contents {
		if len(contents[i]) != len(masks[i]) {
			return fmt.Errorf("classify: example %d has content length %d but mask length %d",
				i, len(contents[i]), len(masks[i]))
		}
		if labels[i] < 0 || labels[i] >= s.cfg.NumClasses {
			return fmt.Errorf("classify: example %d has label %d out of range [0,%d)",
				i, labels[i], s.cfg.NumClasses)
		}
	}
	return nil
}
