// Package tracker is a thin client for the Todoist REST API. The assistant
// only needs list/create/update/close; everything else stays out.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.todoist.com/rest/v2"

// ErrUnavailable signals a failed call to the tracker service. Callers log
// and degrade; there is no retry at this layer.
var ErrUnavailable = errors.New("tracker: service unavailable")

// Due is the task due descriptor.
type Due struct {
	Date     string `json:"date,omitempty"`     // "2006-01-02"
	Datetime string `json:"datetime,omitempty"` // RFC 3339
	String   string `json:"string,omitempty"`   // human form, e.g. "tomorrow 14:00"
}

// Duration is the task's estimated duration.
type Duration struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"` // "minute" or "day"
}

// Task is the subset of tracker task fields the assistant uses.
type Task struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Completed bool      `json:"is_completed"`
	Priority  int       `json:"priority"` // 1 (normal) .. 4 (urgent)
	Labels    []string  `json:"labels,omitempty"`
	Due       *Due      `json:"due,omitempty"`
	Duration  *Duration `json:"duration,omitempty"`
}

// Client talks to the tracker REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a tracker client with the given API token.
func New(token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "tracker"),
	}
}

// ListTasks returns active tasks matching the given filter expression
// (empty filter = all active tasks).
func (c *Client) ListTasks(ctx context.Context, filter string) ([]Task, error) {
	endpoint := c.baseURL + "/tasks"
	if filter != "" {
		endpoint += "?filter=" + url.QueryEscape(filter)
	}
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task from the given fields (content, due_string,
// priority, labels, duration, ...) and returns the created task.
func (c *Client) CreateTask(ctx context.Context, fields map[string]any) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/tasks", fields, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies partial field updates to an existing task.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) error {
	return c.do(ctx, http.MethodPost, c.baseURL+"/tasks/"+url.PathEscape(id), fields, nil)
}

// CloseTask marks a task complete.
func (c *Client) CloseTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, c.baseURL+"/tasks/"+url.PathEscape(id)+"/close", nil, nil)
}

// do performs one API call. Single attempt; transport and server errors all
// map to ErrUnavailable with the detail preserved for logs.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("tracker: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("tracker: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("tracker request failed", "method", method, "url", endpoint, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("tracker request rejected",
			"method", method, "url", endpoint, "status", resp.StatusCode, "body", string(detail))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	return nil
}
