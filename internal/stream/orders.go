package stream

import (
	"errors"
	"fmt"
)

// Split names for dataset files.
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// ErrUnknownOrder indicates a task order id outside the benchmark set.
var ErrUnknownOrder = errors.New("unknown task order")

// taskOrders are the four benchmark permutations in which the five text
// classification datasets are presented to the trainer.
var taskOrders = map[int][]string{
	1: {"yelp", "agnews", "dbpedia", "amazon", "yahoo"},
	2: {"dbpedia", "yahoo", "agnews", "amazon", "yelp"},
	3: {"yelp", "yahoo", "amazon", "dbpedia", "agnews"},
	4: {"agnews", "yelp", "amazon", "yahoo", "dbpedia"},
}

// TaskOrder returns the dataset sequence for an order id (1 through 4).
func TaskOrder(id int) ([]string, error) {
	order, ok := taskOrders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d (valid orders are 1-4)", ErrUnknownOrder, id)
	}
	out := make([]string, len(order))
	copy(out, order)
	return out, nil
}
