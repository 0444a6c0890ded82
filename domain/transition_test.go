package domain

import (
	"errors"
	"testing"
)

func TestTransitionEdges(t *testing.T) {
	cats := Categories()
	for _, from := range cats {
		for _, to := range cats {
			task := Task{ID: "t1", Category: from}
			got, err := Transition(task, to)
			allowed := (from == CategoryToDo && to == CategoryInProgress) ||
				(from == CategoryInProgress && to == CategoryDone)
			if allowed {
				if err != nil {
					t.Fatalf("%s -> %s: unexpected error %v", from, to, err)
				}
				if got.Category != to {
					t.Fatalf("%s -> %s: category not applied, got %s", from, to, got.Category)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
			if got.Category != from {
				t.Fatalf("%s -> %s: rejected move mutated category to %s", from, to, got.Category)
			}
		}
	}
}

func TestTransitionLocksOnDone(t *testing.T) {
	task := Task{ID: "t1", Category: CategoryToDo}

	task, err := Transition(task, CategoryInProgress)
	if err != nil {
		t.Fatalf("ToDo -> InProgress: %v", err)
	}
	if task.IsLocked {
		t.Fatal("entering InProgress must not lock the task")
	}

	task, err = Transition(task, CategoryDone)
	if err != nil {
		t.Fatalf("InProgress -> Done: %v", err)
	}
	if !task.IsLocked {
		t.Fatal("entering Done must lock the task")
	}

	if _, err = Transition(task, CategoryInProgress); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Done -> InProgress: expected ErrInvalidTransition, got %v", err)
	}
}

func TestLockedTaskRejectsEverything(t *testing.T) {
	for _, to := range Categories() {
		task := Task{ID: "t1", Category: CategoryInProgress, IsLocked: true}
		if _, err := Transition(task, to); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("locked task -> %s: expected ErrInvalidTransition, got %v", to, err)
		}
	}
	if CanReorder(Task{IsLocked: true}) {
		t.Fatal("locked task must not be reorderable")
	}
	if !CanReorder(Task{}) {
		t.Fatal("unlocked task must be reorderable")
	}
}
