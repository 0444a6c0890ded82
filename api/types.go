package api

import (
	"context"

	"taskboard-api/domain"
)

// Storage abstracts task persistence for handlers.
type Storage interface {
	CreateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	// TasksByOwner returns the owner's tasks sorted by (category, serial).
	// An empty category returns every column.
	TasksByOwner(ctx context.Context, ownerEmail string, category domain.Category) ([]domain.Task, error)
	FindTask(ctx context.Context, id string) (domain.Task, error)
	// BulkUpdateSerials rewrites serials inside one owner partition and
	// returns the number of entities updated.
	BulkUpdateSerials(ctx context.Context, ownerEmail string, updates []domain.SerialUpdate) (int, error)
	DeleteTask(ctx context.Context, ownerEmail, id string) error
	UpdateCategoryAndLock(ctx context.Context, ownerEmail, id string, category domain.Category, isLocked bool) (domain.Task, error)
}

// UserStore abstracts account persistence.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User, passwordHash []byte) error
	FindUser(ctx context.Context, email string) (domain.User, []byte, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Authenticator extracts the calling identity from an Authorization header.
type Authenticator interface {
	IdentityFromAuthHeader(header string) (domain.Identity, error)
}

// EventPublisher forwards board events to downstream consumers. Publishing is
// best-effort: handlers never fail a request over it.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.BoardEvent) error
}
