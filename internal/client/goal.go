package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dukerupert/taskhero/internal/model"
)

// GoalInput is the body of a goal create or update. The end date must
// follow the start date.
type GoalInput struct {
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description" validate:"max=500"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

// ListGoals returns the user's goals.
func (c *Client) ListGoals(ctx context.Context) ([]model.Goal, error) {
	var goals []model.Goal
	if err := c.do(ctx, http.MethodGet, "/goals", nil, &goals); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	if goals == nil {
		goals = []model.Goal{}
	}
	return goals, nil
}

// GetGoal returns a single goal.
func (c *Client) GetGoal(ctx context.Context, id int64) (*model.Goal, error) {
	var g model.Goal
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/goals/%d", id), nil, &g); err != nil {
		return nil, fmt.Errorf("get goal %d: %w", id, err)
	}
	return &g, nil
}

// CreateGoal creates a goal.
func (c *Client) CreateGoal(ctx context.Context, in GoalInput) (*model.Goal, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var g model.Goal
	if err := c.do(ctx, http.MethodPost, "/goals", in, &g); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return &g, nil
}

// UpdateGoal replaces a goal's editable fields.
func (c *Client) UpdateGoal(ctx context.Context, id int64, in GoalInput) (*model.Goal, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var g model.Goal
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/goals/%d", id), in, &g); err != nil {
		return nil, fmt.Errorf("update goal %d: %w", id, err)
	}
	return &g, nil
}

// DeleteGoal removes a goal.
func (c *Client) DeleteGoal(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/goals/%d", id), nil, nil); err != nil {
		return fmt.Errorf("delete goal %d: %w", id, err)
	}
	return nil
}

// CompleteGoal marks a goal complete. The backend stamps completed_at and
// does the coin/XP accounting.
func (c *Client) CompleteGoal(ctx context.Context, id int64) (*model.Goal, error) {
	var g model.Goal
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/goals/%d/complete", id), nil, &g); err != nil {
		return nil, fmt.Errorf("complete goal %d: %w", id, err)
	}
	return &g, nil
}
