package domain

const (
	TaskCreated   = "task-created"
	TaskMoved     = "task-moved"
	TaskReordered = "task-reordered"
	TaskDeleted   = "task-deleted"
)

// BoardEvent describes a completed board mutation, published for downstream
// consumers after the store write succeeds.
type BoardEvent struct {
	Type       string   `json:"type"`
	TaskID     string   `json:"taskId,omitempty"`
	OwnerEmail string   `json:"ownerEmail"`
	Category   Category `json:"category,omitempty"`
	Serial     int      `json:"serial,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}
