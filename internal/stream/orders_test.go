package stream

import (
	"errors"
	"testing"
)

func TestTaskOrder_Permutations(t *testing.T) {
	canonical := map[string]bool{
		"agnews": true, "amazon": true, "dbpedia": true, "yahoo": true, "yelp": true,
	}

	for id := 1; id <= 4; id++ {
		names, err := TaskOrder(id)
		if err != nil {
			t.Fatalf("TaskOrder(%d) error = %v", id, err)
		}
		if len(names) != 5 {
			t.Fatalf("TaskOrder(%d) returned %d datasets, want 5", id, len(names))
		}
		seen := make(map[string]bool, 5)
		for _, name := range names {
			if !canonical[name] {
				t.Errorf("TaskOrder(%d) contains unknown dataset %q", id, name)
			}
			if seen[name] {
				t.Errorf("TaskOrder(%d) repeats dataset %q", id, name)
			}
			seen[name] = true
		}
	}
}

func TestTaskOrder_Unknown(t *testing.T) {
	for _, id := range []int{0, 5, -1} {
		if _, err := TaskOrder(id); !errors.Is(err, ErrUnknownOrder) {
			t.Errorf("TaskOrder(%d) error = %v, want ErrUnknownOrder", id, err)
		}
	}
}

func TestTaskOrder_ReturnsCopy(t *testing.T) {
	names, err := TaskOrder(1)
	if err != nil {
		t.Fatalf("TaskOrder(1) error = %v", err)
	}
	names[0] = "tampered"

	again, err := TaskOrder(1)
	if err != nil {
		t.Fatalf("TaskOrder(1) error = %v", err)
	}
	if again[0] == "tampered" {
		t.Error("TaskOrder() exposes internal slice")
	}
}
