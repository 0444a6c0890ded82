package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	CreateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	TasksByOwner(ctx context.Context, ownerEmail string, category domain.Category) ([]domain.Task, error)
	FindTask(ctx context.Context, id string) (domain.Task, error)
	BulkUpdateSerials(ctx context.Context, ownerEmail string, updates []domain.SerialUpdate) (int, error)
	DeleteTask(ctx context.Context, ownerEmail, id string) error
	UpdateCategoryAndLock(ctx context.Context, ownerEmail, id string, category domain.Category, isLocked bool) (domain.Task, error)
}

// Cache wraps a task store with Redis-backed caching of the full-board read.
// Category-filtered reads and lookups pass through; every mutation evicts the
// owner's cached board.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) TasksByOwner(ctx context.Context, ownerEmail string, category domain.Category) ([]domain.Task, error) {
	if category != "" {
		return c.base.TasksByOwner(ctx, ownerEmail, category)
	}
	if tasks, ok := c.loadBoard(ctx, ownerEmail); ok {
		return tasks, nil
	}
	tasks, err := c.base.TasksByOwner(ctx, ownerEmail, "")
	if err != nil {
		return nil, err
	}
	c.storeBoard(ctx, ownerEmail, tasks)
	return tasks, nil
}

func (c *Cache) FindTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.FindTask(ctx, id)
}

func (c *Cache) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	created, err := c.base.CreateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, created.OwnerEmail)
	return created, nil
}

func (c *Cache) BulkUpdateSerials(ctx context.Context, ownerEmail string, updates []domain.SerialUpdate) (int, error) {
	modified, err := c.base.BulkUpdateSerials(ctx, ownerEmail, updates)
	if err != nil {
		return modified, err
	}
	c.evict(ctx, ownerEmail)
	return modified, nil
}

func (c *Cache) DeleteTask(ctx context.Context, ownerEmail, id string) error {
	if err := c.base.DeleteTask(ctx, ownerEmail, id); err != nil {
		return err
	}
	c.evict(ctx, ownerEmail)
	return nil
}

func (c *Cache) UpdateCategoryAndLock(ctx context.Context, ownerEmail, id string, category domain.Category, isLocked bool) (domain.Task, error) {
	updated, err := c.base.UpdateCategoryAndLock(ctx, ownerEmail, id, category, isLocked)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, ownerEmail)
	return updated, nil
}

func (c *Cache) loadBoard(ctx context.Context, ownerEmail string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(ownerEmail)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(ownerEmail)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(ownerEmail)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeBoard(ctx context.Context, ownerEmail string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(ownerEmail), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, ownerEmail string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, boardCacheKey(ownerEmail)).Err()
}

func boardCacheKey(ownerEmail string) string {
	return "board:" + ownerEmail
}
