package client

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Board maintains the local, category-partitioned view of the signed-in
// user's tasks. Gestures update it optimistically, then persist through the
// API; on persistence failure the board resyncs from the server rather than
// trusting stale optimistic state. The server re-validates every move.
type Board struct {
	api     *Client
	logger  *log.Logger
	columns map[domain.Category][]domain.Task
}

// NewBoard creates an empty board bound to the given API client.
func NewBoard(api *Client, logger *log.Logger) *Board {
	if logger == nil {
		logger = log.New()
	}
	return &Board{
		api:     api,
		logger:  logger,
		columns: emptyColumns(),
	}
}

func emptyColumns() map[domain.Category][]domain.Task {
	cols := make(map[domain.Category][]domain.Task, 3)
	for _, c := range domain.Categories() {
		cols[c] = nil
	}
	return cols
}

// Load fetches the full task list and partitions it by category. Tasks with
// a category outside the board columns are dropped, not rendered.
func (b *Board) Load(ctx context.Context) error {
	tasks, err := b.api.Tasks(ctx)
	if err != nil {
		return err
	}
	cols := emptyColumns()
	for _, task := range tasks {
		if _, ok := cols[task.Category]; !ok {
			continue
		}
		cols[task.Category] = append(cols[task.Category], task)
	}
	b.columns = cols
	return nil
}

// Column returns a copy of one board column in serial order.
func (b *Board) Column(category domain.Category) []domain.Task {
	return append([]domain.Task(nil), b.columns[category]...)
}

// DragEnd applies a drag gesture: a same-column reorder or a category move.
// Gestures the transition policy forbids are dropped without an API call;
// the server enforces the same rules and remains the authority of record.
func (b *Board) DragEnd(ctx context.Context, source, destination domain.Category, from, to int) error {
	if source == domain.CategoryDone {
		return nil
	}
	if from < 0 || from >= len(b.columns[source]) {
		return nil
	}
	if source == destination {
		return b.reorder(ctx, source, from, to)
	}
	if !domain.CanTransition(source, destination) {
		return nil
	}
	return b.move(ctx, source, destination, from, to)
}

func (b *Board) reorder(ctx context.Context, category domain.Category, from, to int) error {
	if from == to {
		return nil
	}
	tasks := append([]domain.Task(nil), b.columns[category]...)
	tasks = domain.Reorder(tasks, from, to)
	b.columns[category] = tasks

	if _, err := b.api.UpdateOrder(ctx, tasks); err != nil {
		b.logger.WithError(err).Error("reorder rejected, resyncing board")
		b.resync(ctx)
		return err
	}
	return nil
}

func (b *Board) move(ctx context.Context, source, destination domain.Category, from, to int) error {
	sourceTasks := append([]domain.Task(nil), b.columns[source]...)
	moved := sourceTasks[from]

	moved, err := domain.Transition(moved, destination)
	if err != nil {
		// Locked task; nothing to persist.
		return nil
	}

	sourceTasks = append(sourceTasks[:from], sourceTasks[from+1:]...)
	b.columns[source] = domain.Renumber(sourceTasks)
	b.columns[destination] = domain.Insert(append([]domain.Task(nil), b.columns[destination]...), moved, to)

	if _, err := b.api.UpdateCategory(ctx, moved.ID, destination, moved.IsLocked); err != nil {
		b.logger.WithError(err).Error("category move rejected, resyncing board")
		b.resync(ctx)
		return err
	}
	return nil
}

// Add creates a task and refreshes the board from the server.
func (b *Board) Add(ctx context.Context, title, description string, dueDate time.Time) error {
	if _, err := b.api.AddTask(ctx, title, description, dueDate, domain.CategoryToDo); err != nil {
		return err
	}
	return b.Load(ctx)
}

// Delete removes a task and refreshes the board from the server.
func (b *Board) Delete(ctx context.Context, id string) error {
	if err := b.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	return b.Load(ctx)
}

func (b *Board) resync(ctx context.Context) {
	if err := b.Load(ctx); err != nil {
		b.logger.WithError(err).Error("board resync failed")
	}
}
