package model

// WarmupLinear scales the learning rate linearly from zero to its full
// value over the warmup steps, then linearly back down to zero at the
// total step count. Steps past the total are clamped at zero.
type WarmupLinear struct {
	WarmupSteps int
	TotalSteps  int
}

// DefaultWarmupLinear returns the 100-step warmup over a 1000-step
// horizon used by the training defaults.
func DefaultWarmupLinear() WarmupLinear {
	return WarmupLinear{WarmupSteps: 100, TotalSteps: 1000}
}

// Factor returns the learning-rate multiplier for a 1-based step.
func (w WarmupLinear) Factor(step int) float64 {
	if step <= 0 {
		return 0
	}
	if w.WarmupSteps > 0 && step <= w.WarmupSteps {
		return float64(step) / float64(w.WarmupSteps)
	}
	if w.TotalSteps <= w.WarmupSteps {
		return 1
	}
	if step >= w.TotalSteps {
		return 0
	}
	return float64(w.TotalSteps-step) / float64(w.TotalSteps-w.WarmupSteps)
}
