package model

import (
	"math"
	"testing"
)

func TestWarmupLinear_Factor(t *testing.T) {
	sched := WarmupLinear{WarmupSteps: 100, TotalSteps: 1000}

	tests := []struct {
		name string
		step int
		want float64
	}{
		{name: "before first step", step: 0, want: 0},
		{name: "first warmup step", step: 1, want: 0.01},
		{name: "mid warmup", step: 50, want: 0.5},
		{name: "warmup complete", step: 100, want: 1.0},
		{name: "mid decay", step: 550, want: 0.5},
		{name: "horizon reached", step: 1000, want: 0},
		{name: "past horizon", step: 1500, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sched.Factor(tt.step); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Factor(%d) = %v, want %v", tt.step, got, tt.want)
			}
		})
	}
}

func TestWarmupLinear_NoWarmup(t *testing.T) {
	sched := WarmupLinear{WarmupSteps: 0, TotalSteps: 10}

	if got := sched.Factor(5); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Factor(5) = %v, want 0.5", got)
	}
	if got := sched.Factor(10); got != 0 {
		t.Errorf("Factor(10) = %v, want 0", got)
	}
}

func TestWarmupLinear_TotalInsideWarmup(t *testing.T) {
	// A horizon shorter than the warmup never decays.
	sched := WarmupLinear{WarmupSteps: 100, TotalSteps: 50}

	if got := sched.Factor(200); got != 1 {
		t.Errorf("Factor(200) = %v, want 1", got)
	}
}
