package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

// Azure table transactions accept at most 100 operations.
const transactionMaxActions = 100

// Storage persists tasks and users in Azure Table storage. Tasks are
// partitioned by owner email with the task id as row key, so a whole board
// lives in one partition and serial rewrites can run as a single transaction.
type Storage struct {
	taskTable *aztables.Client
	userTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, usersTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable: svc.NewClient(tasksTable),
		userTable: svc.NewClient(usersTable),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	CreatedAt   string `json:"CreatedAt"`
	DueDate     string `json:"DueDate"`
	Category    string `json:"Category"`
	OwnerName   string `json:"OwnerName"`
	Serial      int    `json:"Serial"`
	IsLocked    bool   `json:"IsLocked"`
}

func (e taskEntity) toTask() domain.Task {
	createdAt, _ := time.Parse(time.RFC3339Nano, e.CreatedAt)
	dueDate, _ := time.Parse(time.RFC3339Nano, e.DueDate)
	return domain.Task{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		CreatedAt:   createdAt,
		DueDate:     dueDate,
		Category:    domain.Category(e.Category),
		OwnerName:   e.OwnerName,
		OwnerEmail:  e.PartitionKey,
		Serial:      e.Serial,
		IsLocked:    e.IsLocked,
	}
}

func taskToEntity(t domain.Task) taskEntity {
	return taskEntity{
		Entity:      aztables.Entity{PartitionKey: t.OwnerEmail, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		DueDate:     t.DueDate.UTC().Format(time.RFC3339Nano),
		Category:    string(t.Category),
		OwnerName:   t.OwnerName,
		Serial:      t.Serial,
		IsLocked:    t.IsLocked,
	}
}

// CreateTask assigns the id and creation time, then inserts the task.
func (s *Storage) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	task.ID = uuid.NewString()
	task.CreatedAt = time.Now().UTC()
	data, err := json.Marshal(taskToEntity(task))
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, data, nil); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// TasksByOwner returns the owner's tasks sorted by (category, serial). An
// empty category returns the whole board.
func (s *Storage) TasksByOwner(ctx context.Context, ownerEmail string, category domain.Category) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + escapeKey(ownerEmail) + "'"
	if category != "" {
		filter += " and Category eq '" + escapeKey(string(category)) + "'"
	}
	tasks, err := s.queryTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Category != tasks[j].Category {
			return tasks[i].Category < tasks[j].Category
		}
		return tasks[i].Serial < tasks[j].Serial
	})
	return tasks, nil
}

// FindTask resolves a task by id alone, across all owner partitions. The
// caller decides ownership, so lookups must find foreign tasks too.
func (s *Storage) FindTask(ctx context.Context, id string) (domain.Task, error) {
	tasks, err := s.queryTasks(ctx, "RowKey eq '"+escapeKey(id)+"'")
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, domain.ErrNotFound
	}
	return tasks[0], nil
}

func (s *Storage) queryTasks(ctx context.Context, filter string) ([]domain.Task, error) {
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toTask())
		}
	}
	return tasks, nil
}

type serialUpdateEntity struct {
	aztables.Entity
	Serial   int    `json:"Serial"`
	Category string `json:"Category"`
}

// BulkUpdateSerials rewrites serials inside one owner partition. Updates run
// as table transactions chunked at the service limit; a chunk applies fully
// or not at all, and the returned count covers only committed chunks.
func (s *Storage) BulkUpdateSerials(ctx context.Context, ownerEmail string, updates []domain.SerialUpdate) (int, error) {
	applied := 0
	for start := 0; start < len(updates); start += transactionMaxActions {
		end := start + transactionMaxActions
		if end > len(updates) {
			end = len(updates)
		}
		actions := make([]aztables.TransactionAction, 0, end-start)
		for _, upd := range updates[start:end] {
			data, err := json.Marshal(serialUpdateEntity{
				Entity:   aztables.Entity{PartitionKey: ownerEmail, RowKey: upd.ID},
				Serial:   upd.Serial,
				Category: string(upd.Category),
			})
			if err != nil {
				return applied, err
			}
			actions = append(actions, aztables.TransactionAction{
				ActionType: aztables.TransactionTypeUpdateMerge,
				Entity:     data,
			})
		}
		if _, err := s.taskTable.SubmitTransaction(ctx, actions, nil); err != nil {
			if hasStatus(err, 404) {
				return applied, domain.ErrNotFound
			}
			return applied, err
		}
		applied += len(actions)
	}
	return applied, nil
}

// DeleteTask removes a task from its owner partition.
func (s *Storage) DeleteTask(ctx context.Context, ownerEmail, id string) error {
	if _, err := s.taskTable.DeleteEntity(ctx, ownerEmail, id, nil); err != nil {
		if hasStatus(err, 404) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

type categoryUpdateEntity struct {
	aztables.Entity
	Category string `json:"Category"`
	IsLocked bool   `json:"IsLocked"`
}

// UpdateCategoryAndLock persists an approved category move and returns the
// updated task.
func (s *Storage) UpdateCategoryAndLock(ctx context.Context, ownerEmail, id string, category domain.Category, isLocked bool) (domain.Task, error) {
	data, err := json.Marshal(categoryUpdateEntity{
		Entity:   aztables.Entity{PartitionKey: ownerEmail, RowKey: id},
		Category: string(category),
		IsLocked: isLocked,
	})
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge}); err != nil {
		if hasStatus(err, 404) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}

	resp, err := s.taskTable.GetEntity(ctx, ownerEmail, id, nil)
	if err != nil {
		if hasStatus(err, 404) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Task{}, err
	}
	return ent.toTask(), nil
}

type userEntity struct {
	aztables.Entity
	Name         string `json:"Name"`
	PasswordHash string `json:"PasswordHash"`
	CreatedAt    string `json:"CreatedAt"`
}

func (e userEntity) toUser() domain.User {
	createdAt, _ := time.Parse(time.RFC3339Nano, e.CreatedAt)
	return domain.User{Name: e.Name, Email: e.RowKey, CreatedAt: createdAt}
}

// CreateUser inserts a new account; a duplicate email reports ErrConflict.
func (s *Storage) CreateUser(ctx context.Context, user domain.User, passwordHash []byte) error {
	data, err := json.Marshal(userEntity{
		Entity:       aztables.Entity{PartitionKey: user.Email, RowKey: user.Email},
		Name:         user.Name,
		PasswordHash: string(passwordHash),
		CreatedAt:    user.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	if _, err := s.userTable.AddEntity(ctx, data, nil); err != nil {
		if hasStatus(err, 409) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

// FindUser loads an account and its password hash by email.
func (s *Storage) FindUser(ctx context.Context, email string) (domain.User, []byte, error) {
	resp, err := s.userTable.GetEntity(ctx, email, email, nil)
	if err != nil {
		if hasStatus(err, 404) {
			return domain.User{}, nil, domain.ErrNotFound
		}
		return domain.User{}, nil, err
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.User{}, nil, err
	}
	return ent.toUser(), []byte(ent.PasswordHash), nil
}

// ListUsers returns every account without credential material.
func (s *Storage) ListUsers(ctx context.Context) ([]domain.User, error) {
	pager := s.userTable.NewListEntitiesPager(nil)
	users := []domain.User{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent userEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			users = append(users, ent.toUser())
		}
	}
	return users, nil
}

func hasStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// escapeKey doubles single quotes for OData filter literals.
func escapeKey(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
