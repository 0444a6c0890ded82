package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"taskboard-api/domain"
)

// APIError is a non-2xx response decoded from the server's message payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client talks to the task API on behalf of one session.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	session *Session
}

// New creates a Client bound to the given session. Login and Signup update
// the session in place.
func New(baseURL string, session *Session) *Client {
	if session == nil {
		session = &Session{}
	}
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 30 * time.Second}, session: session}
}

// Session returns the bound session.
func (c *Client) Session() *Session {
	return c.session
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Signup registers an account and signs the session in.
func (c *Client) Signup(ctx context.Context, name, email, password string) error {
	var resp authResponse
	body := domain.Credentials{Name: name, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/signup", body, &resp); err != nil {
		return err
	}
	c.session.Token = resp.Token
	c.session.Name = resp.User.Name
	c.session.Email = resp.User.Email
	return nil
}

// Login authenticates and signs the session in.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp authResponse
	body := domain.Credentials{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return err
	}
	c.session.Token = resp.Token
	c.session.Name = resp.User.Name
	c.session.Email = resp.User.Email
	return nil
}

// Tasks fetches the signed-in user's full board, sorted by (category, serial).
func (c *Client) Tasks(ctx context.Context) ([]domain.Task, error) {
	path := "/tasks?email=" + url.QueryEscape(c.session.Email)
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

type addTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
	Category    string    `json:"category,omitempty"`
}

type addTaskResponse struct {
	Message    string      `json:"message"`
	InsertedID string      `json:"insertedId"`
	Task       domain.Task `json:"task"`
}

// AddTask creates a task; an empty category lands in ToDo.
func (c *Client) AddTask(ctx context.Context, title, description string, dueDate time.Time, category domain.Category) (domain.Task, error) {
	var resp addTaskResponse
	body := addTaskRequest{Title: title, Description: description, DueDate: dueDate, Category: string(category)}
	if err := c.do(ctx, http.MethodPost, "/addTask", body, &resp); err != nil {
		return domain.Task{}, err
	}
	return resp.Task, nil
}

// DeleteTask removes an owned task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

type updateOrderRequest struct {
	Tasks []domain.Task `json:"tasks"`
}

type updateOrderResponse struct {
	Message       string `json:"message"`
	ModifiedCount int    `json:"modifiedCount"`
}

// UpdateOrder persists a same-column reorder.
func (c *Client) UpdateOrder(ctx context.Context, tasks []domain.Task) (int, error) {
	var resp updateOrderResponse
	if err := c.do(ctx, http.MethodPut, "/tasksUpdateOrder", updateOrderRequest{Tasks: tasks}, &resp); err != nil {
		return 0, err
	}
	return resp.ModifiedCount, nil
}

type updateCategoryRequest struct {
	TaskID   string `json:"taskId"`
	Category string `json:"category"`
	IsLocked *bool  `json:"isLocked,omitempty"`
}

type updateCategoryResponse struct {
	Message string      `json:"message"`
	Task    domain.Task `json:"task"`
}

// UpdateCategory moves a task along a transition edge.
func (c *Client) UpdateCategory(ctx context.Context, id string, category domain.Category, isLocked bool) (domain.Task, error) {
	var resp updateCategoryResponse
	body := updateCategoryRequest{TaskID: id, Category: string(category), IsLocked: &isLocked}
	if err := c.do(ctx, http.MethodPut, "/tasksUpdateCategory", body, &resp); err != nil {
		return domain.Task{}, err
	}
	return resp.Task, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
