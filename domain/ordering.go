package domain

// Renumber assigns dense 1..N serials following the slice order. The slice is
// mutated in place and returned. Applying it to an already dense partition is
// a no-op.
func Renumber(tasks []Task) []Task {
	for i := range tasks {
		tasks[i].Serial = i + 1
	}
	return tasks
}

// Reorder moves the task at index from to index to within one partition and
// renumbers the result. Out-of-range target indexes clamp to the ends.
func Reorder(tasks []Task, from, to int) []Task {
	if from < 0 || from >= len(tasks) {
		return Renumber(tasks)
	}
	moved := tasks[from]
	rest := append(tasks[:from], tasks[from+1:]...)
	return Insert(rest, moved, to)
}

// Insert places task at index at within the partition and renumbers. An index
// beyond the current length appends; a negative index prepends.
func Insert(tasks []Task, task Task, at int) []Task {
	if at < 0 {
		at = 0
	}
	if at > len(tasks) {
		at = len(tasks)
	}
	tasks = append(tasks, Task{})
	copy(tasks[at+1:], tasks[at:])
	tasks[at] = task
	return Renumber(tasks)
}

// NextSerial returns the serial for a task appended to the partition. Serials
// are not assumed dense here: creation ranks after the highest existing value.
func NextSerial(tasks []Task) int {
	max := 0
	for _, t := range tasks {
		if t.Serial > max {
			max = t.Serial
		}
	}
	return max + 1
}
