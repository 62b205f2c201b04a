package model

import (
	"fmt"
	"math"
)

// AdamWConfig configures the optimizer.
type AdamWConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	// WeightDecay applies decoupled decay to the embedding and weight
	// tensors. The bias is never decayed, matching the usual exclusion
	// of bias and normalization parameters from decay.
	WeightDecay float64
	// Schedule scales the learning rate per step when set.
	Schedule *WarmupLinear
}

// DefaultAdamWConfig returns the training defaults: learning rate 3e-5,
// decay 0.01 and a 100/1000 warmup-linear schedule.
func DefaultAdamWConfig() AdamWConfig {
	sched := DefaultWarmupLinear()
	return AdamWConfig{
		LearningRate: 3e-5,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.01,
		Schedule:     &sched,
	}
}

// tensor pairs a parameter buffer with its gradient and moment buffers.
type tensor struct {
	param []float64
	grad  []float64
	m     []float64
	v     []float64
	decay bool
}

// AdamW implements the Adam optimizer with decoupled weight decay for
// the reference classifier. Moments are bias-corrected; elements whose
// gradient is NaN or Inf are skipped for that step.
type AdamW struct {
	cfg     AdamWConfig
	step    int
	tensors []tensor
}

// NewAdamW binds an optimizer to a classifier's parameters.
func NewAdamW(s *Softmax, cfg AdamWConfig) (*AdamW, error) {
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("adamw: learning rate %g must be positive", cfg.LearningRate)
	}
	if cfg.Beta1 <= 0 || cfg.Beta1 >= 1 || cfg.Beta2 <= 0 || cfg.Beta2 >= 1 {
		return nil, fmt.Errorf("adamw: betas %g/%g must be in (0,1)", cfg.Beta1, cfg.Beta2)
	}
	if cfg.Epsilon <= 0 {
		return nil, fmt.Errorf("adamw: epsilon %g must be positive", cfg.Epsilon)
	}

	a := &AdamW{cfg: cfg}
	bind := func(param, grad []float64, decay bool) {
		a.tensors = append(a.tensors, tensor{
			param: param,
			grad:  grad,
			m:     make([]float64, len(param)),
			v:     make([]float64, len(param)),
			decay: decay,
		})
	}
	bind(s.embedding.RawMatrix().Data, s.gradEmbedding.RawMatrix().Data, true)
	bind(s.weight.RawMatrix().Data, s.gradWeight.RawMatrix().Data, true)
	bind(s.bias.RawVector().Data, s.gradBias.RawVector().Data, false)
	return a, nil
}

// ZeroGrad implements Optimizer.
func (a *AdamW) ZeroGrad() {
	for _, t := range a.tensors {
		for i := range t.grad {
			t.grad[i] = 0
		}
	}
}

// Step implements Optimizer.
func (a *AdamW) Step() error {
	a.step++
	lr := a.cfg.LearningRate
	if a.cfg.Schedule != nil {
		lr *= a.cfg.Schedule.Factor(a.step)
	}
	// Fold bias correction into the step size.
	correction := math.Sqrt(1-math.Pow(a.cfg.Beta2, float64(a.step))) /
		(1 - math.Pow(a.cfg.Beta1, float64(a.step)))
	stepSize := lr * correction

	for _, t := range a.tensors {
		for i, g := range t.grad {
			if math.IsNaN(g) || math.IsInf(g, 0) {
				continue
			}
			t.m[i] = a.cfg.Beta1*t.m[i] + (1-a.cfg.Beta1)*g
			t.v[i] = a.cfg.Beta2*t.v[i] + (1-a.cfg.Beta2)*g*g
			t.param[i] -= stepSize * t.m[i] / (math.Sqrt(t.v[i]) + a.cfg.Epsilon)
			if t.decay && a.cfg.WeightDecay > 0 {
				t.param[i] -= lr * a.cfg.WeightDecay * t.param[i]
			}
		}
	}
	return nil
}

// Steps returns how many updates have been applied.
func (a *AdamW) Steps() int {
	return a.step
}
