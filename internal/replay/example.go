package replay

import "fmt"

// Example is one unit of training data: a fixed-length token sequence,
// its attention mask and a class label. An Example is immutable once
// created; every container that stores one keeps its own copy.
type Example struct {
	Content       []int `json:"content"`
	AttentionMask []int `json:"attention_mask"`
	Label         int   `json:"label"`
}

// NewExample builds an Example from a token sequence, its attention mask
// and a label. The slices are copied so the caller may reuse its buffers.
func NewExample(content, attentionMask []int, label int) (Example, error) {
	if len(content) != len(attentionMask) {
		return Example{}, fmt.Errorf("%w: content %d, attention mask %d",
			ErrLengthMismatch, len(content), len(attentionMask))
	}
	ex := Example{
		Content:       make([]int, len(content)),
		AttentionMask: make([]int, len(attentionMask)),
		Label:         label,
	}
	copy(ex.Content, content)
	copy(ex.AttentionMask, attentionMask)
	return ex, nil
}

// clone returns a deep copy so two containers never share backing arrays.
func (e Example) clone() Example {
	c := Example{
		Content:       make([]int, len(e.Content)),
		AttentionMask: make([]int, len(e.AttentionMask)),
		Label:         e.Label,
	}
	copy(c.Content, e.Content)
	copy(c.AttentionMask, e.AttentionMask)
	return c
}

// Batch is an ordered group of Examples materialized as three parallel
// slices of equal length. A batch is produced by a task stream or by
// sampling from Memory and is consumed by exactly one optimization step.
type Batch struct {
	Contents       [][]int
	AttentionMasks [][]int
	Labels         []int
}

// NewBatch materializes a batch from examples. At least one example is
// required; the batch references the examples' backing arrays, so callers
// hand over ownership.
func NewBatch(examples []Example) (*Batch, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("batch needs at least one example")
	}
	b := &Batch{
		Contents:       make([][]int, len(examples)),
		AttentionMasks: make([][]int, len(examples)),
		Labels:         make([]int, len(examples)),
	}
	for i, ex := range examples {
		b.Contents[i] = ex.Content
		b.AttentionMasks[i] = ex.AttentionMask
		b.Labels[i] = ex.Label
	}
	return b, nil
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Examples converts the batch back into individual examples. The returned
// examples share the batch's backing arrays.
func (b *Batch) Examples() []Example {
	examples := make([]Example, b.Size())
	for i := range examples {
		examples[i] = Example{
			Content:       b.Contents[i],
			AttentionMask: b.AttentionMasks[i],
			Label:         b.Labels[i],
		}
	}
	return examples
}
