package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/replay"
)

// maxLineBytes bounds a single JSONL record; sequences of a few hundred
// tokens stay far below this.
const maxLineBytes = 1 << 20

// datasetLine is the on-disk JSONL record for one example.
type datasetLine struct {
	Content       []int `json:"content"`
	AttentionMask []int `json:"attention_mask"`
	Label         int   `json:"label"`
}

// DatasetPath returns the JSONL file for a dataset split, laid out as
// <dataDir>/<name>.<split>.jsonl.
func DatasetPath(dataDir, name, split string) string {
	return filepath.Join(dataDir, name+"."+split+".jsonl")
}

// LoadJSONL reads a dataset file with one JSON example per line. Blank
// lines are skipped; malformed records fail with their line number.
func LoadJSONL(path string) ([]replay.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var examples []replay.Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec datasetLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		ex, err := replay.NewExample(rec.Content, rec.AttentionMask, rec.Label)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return examples, nil
}

// OpenOptions adjusts how a task stream is materialized.
type OpenOptions struct {
	// Shuffle randomizes the example order before batching, seeded so
	// evaluation runs are reproducible. Training streams stay
	// sequential to preserve the task order.
	Shuffle bool
	Seed    int64
}

// OpenTaskStream loads every dataset of a task order in sequence and
// returns a batch stream over the concatenated examples.
func OpenTaskStream(dataDir string, orderID int, split string, batchSize int, opts OpenOptions) (*BatchStream, error) {
	names, err := TaskOrder(orderID)
	if err != nil {
		return nil, err
	}

	var examples []replay.Example
	for _, name := range names {
		part, err := LoadJSONL(DatasetPath(dataDir, name, split))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		examples = append(examples, part...)
	}

	if opts.Shuffle {
		rng := rand.New(rand.NewSource(opts.Seed))
		rng.Shuffle(len(examples), func(i, j int) {
			examples[i], examples[j] = examples[j], examples[i]
		})
	}

	return NewBatchStream(examples, batchSize)
}
