package domain

import "time"

// Category identifies the board column a task lives in.
type Category string

const (
	CategoryToDo       Category = "ToDo"
	CategoryInProgress Category = "InProgress"
	CategoryDone       Category = "Done"
)

// Categories lists the board columns in display order.
func Categories() []Category {
	return []Category{CategoryToDo, CategoryInProgress, CategoryDone}
}

// ParseCategory validates a raw category value against the board columns.
func ParseCategory(raw string) (Category, error) {
	switch Category(raw) {
	case CategoryToDo, CategoryInProgress, CategoryDone:
		return Category(raw), nil
	}
	return "", ValidationError{Field: "category", Reason: "unknown category"}
}

const (
	titleMaxLen       = 50
	descriptionMaxLen = 200
)

// Task represents a single board item. Serial is its dense 1-based rank
// within the (OwnerEmail, Category) partition.
type Task struct {
	ID          string    `json:"_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	DueDate     time.Time `json:"dueDate"`
	Category    Category  `json:"category"`
	OwnerName   string    `json:"userName"`
	OwnerEmail  string    `json:"userEmail"`
	Serial      int       `json:"serial"`
	IsLocked    bool      `json:"isLocked"`
}

// Validate checks the user-supplied fields of a task.
func (t Task) Validate() error {
	if t.Title == "" {
		return ValidationError{Field: "title", Reason: "required"}
	}
	if len(t.Title) > titleMaxLen {
		return ValidationError{Field: "title", Reason: "too long"}
	}
	if t.Description == "" {
		return ValidationError{Field: "description", Reason: "required"}
	}
	if len(t.Description) > descriptionMaxLen {
		return ValidationError{Field: "description", Reason: "too long"}
	}
	if t.DueDate.IsZero() {
		return ValidationError{Field: "dueDate", Reason: "required"}
	}
	if _, err := ParseCategory(string(t.Category)); err != nil {
		return err
	}
	return nil
}

// SerialUpdate carries a single entry of a batch serial rewrite.
type SerialUpdate struct {
	ID       string
	Serial   int
	Category Category
}
