package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/taskhero/internal/model"
)

// TaskInput is the body of a task create or update.
type TaskInput struct {
	Title    string         `json:"title" validate:"required,max=100"`
	Priority model.Priority `json:"priority" validate:"required,oneof=low medium high"`
}

// ListTasks returns the tasks of a goal.
func (c *Client) ListTasks(ctx context.Context, goalID int64) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/goals/%d/tasks", goalID), nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks for goal %d: %w", goalID, err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// CreateTask adds a task to a goal.
func (c *Client) CreateTask(ctx context.Context, goalID int64, in TaskInput) (*model.Task, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var t model.Task
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/goals/%d/tasks", goalID), in, &t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &t, nil
}

// UpdateTask replaces a task's title and priority.
func (c *Client) UpdateTask(ctx context.Context, id int64, in TaskInput) (*model.Task, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var t model.Task
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/tasks/%d", id), in, &t); err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return &t, nil
}

// ToggleTask flips a task's completion flag and returns the stored task.
func (c *Client) ToggleTask(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d/toggle", id), nil, &t); err != nil {
		return nil, fmt.Errorf("toggle task %d: %w", id, err)
	}
	return &t, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}
