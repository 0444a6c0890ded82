package domain

// allowedEdges is the directed set of legal category moves. Done is terminal;
// InProgress cannot return to ToDo; ToDo cannot skip straight to Done.
var allowedEdges = map[Category]Category{
	CategoryToDo:       CategoryInProgress,
	CategoryInProgress: CategoryDone,
}

// CanTransition reports whether moving a task from one category to another is
// a legal edge. It says nothing about locking; Transition checks that first.
func CanTransition(from, to Category) bool {
	return allowedEdges[from] == to
}

// Transition applies a category move to a copy of the task. The lock check
// precedes the edge table: a locked task rejects every requested destination.
// Entering Done locks the task permanently.
func Transition(t Task, to Category) (Task, error) {
	if t.IsLocked {
		return t, ErrInvalidTransition
	}
	if !CanTransition(t.Category, to) {
		return t, ErrInvalidTransition
	}
	t.Category = to
	if to == CategoryDone {
		t.IsLocked = true
	}
	return t, nil
}

// CanReorder reports whether a task may participate in a same-partition
// reorder. Locked tasks never move again.
func CanReorder(t Task) bool {
	return !t.IsLocked
}
