// Package checkpoint persists trained parameters and episodic memory
// snapshots, one checkpoint per task order and epoch.
package checkpoint

import (
	"time"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/model"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
)

// Checkpoint is the full persisted state after one training epoch.
type Checkpoint struct {
	// ID is assigned on save and identifies this save uniquely even
	// when a (order, epoch) slot is overwritten by a later run.
	ID string

	// Order and Epoch key the checkpoint. Saving to an occupied slot
	// replaces the previous checkpoint.
	Order int
	Epoch int

	// Summary statistics from the epoch that produced this state.
	Steps    int
	Examples int
	MeanLoss float64

	CreatedAt time.Time

	// Params holds the trained classifier state.
	Params model.Parameters

	// Memory holds the episodic memory snapshot taken after the epoch,
	// so a later run can resume with the same replay buffer.
	Memory []replay.Example
}

// Summary is checkpoint metadata without the parameter and memory
// payloads, for listings.
type Summary struct {
	ID        string
	Order     int
	Epoch     int
	Steps     int
	Examples  int
	MeanLoss  float64
	CreatedAt time.Time
}
