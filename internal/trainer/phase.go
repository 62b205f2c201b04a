package trainer

import "fmt"

// phase is the position of the training loop within one step cycle.
type phase int

const (
	phaseAwaitingBatch phase = iota
	phaseBatchPulled
	phasePushed
	phaseLiveTrain
	phaseReplayTrain
	phaseStepApplied
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseAwaitingBatch:
		return "awaiting_batch"
	case phaseBatchPulled:
		return "batch_pulled"
	case phasePushed:
		return "pushed_to_memory"
	case phaseLiveTrain:
		return "live_train"
	case phaseReplayTrain:
		return "replay_train"
	case phaseStepApplied:
		return "step_applied"
	case phaseDone:
		return "epoch_done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// epochMachine enforces the step cycle
//
//	awaiting_batch -> batch_pulled -> pushed_to_memory ->
//	(live_train | replay_train) -> step_applied -> awaiting_batch
//
// with epoch_done terminal once the stream is exhausted. It owns the
// 1-based step counter and the periodic replay decision, so the cadence
// is a property of the machine rather than a condition buried in the
// loop body.
type epochMachine struct {
	phase  phase
	period int
	step   int
}

func newEpochMachine(period int) *epochMachine {
	return &epochMachine{phase: phaseAwaitingBatch, period: period}
}

func (m *epochMachine) transition(from, to phase) error {
	if m.phase != from {
		return fmt.Errorf("illegal transition to %s: in phase %s, want %s", to, m.phase, from)
	}
	m.phase = to
	return nil
}

// pullBatch records that a batch was taken from the stream and advances
// the step counter.
func (m *epochMachine) pullBatch() error {
	if err := m.transition(phaseAwaitingBatch, phaseBatchPulled); err != nil {
		return err
	}
	m.step++
	return nil
}

// pushed records that the pulled batch entered memory. Pushing always
// happens before the training decision, so every stream example is
// eligible for later replay even when this step trains on a sample.
func (m *epochMachine) pushed() error {
	return m.transition(phaseBatchPulled, phasePushed)
}

// chooseTraining decides between the live batch and a memory sample for
// the current step: every period-th step replays.
func (m *epochMachine) chooseTraining() (replayStep bool, err error) {
	if m.step%m.period == 0 {
		return true, m.transition(phasePushed, phaseReplayTrain)
	}
	return false, m.transition(phasePushed, phaseLiveTrain)
}

// stepApplied records the optimizer update for this step.
func (m *epochMachine) stepApplied() error {
	if m.phase != phaseLiveTrain && m.phase != phaseReplayTrain {
		return fmt.Errorf("illegal transition to %s: in phase %s, want %s or %s",
			phaseStepApplied, m.phase, phaseLiveTrain, phaseReplayTrain)
	}
	m.phase = phaseStepApplied
	return nil
}

// completeStep closes the cycle and waits for the next batch.
func (m *epochMachine) completeStep() error {
	return m.transition(phaseStepApplied, phaseAwaitingBatch)
}

// finish marks the epoch done. Only legal between step cycles.
func (m *epochMachine) finish() error {
	return m.transition(phaseAwaitingBatch, phaseDone)
}
