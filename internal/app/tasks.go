package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/goal"
	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/toast"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrGoalClosed   = errors.New("goal is already completed")
)

// Tasks caches tasks per goal.
type Tasks struct {
	mu     sync.RWMutex
	api    *client.Client
	goals  *Goals
	auth   *Auth
	toasts *toast.Queue
	logger *slog.Logger
	now    func() time.Time
	byGoal map[int64][]model.Task
}

// NewTasks creates an empty task cache.
func NewTasks(api *client.Client, goals *Goals, auth *Auth, toasts *toast.Queue, logger *slog.Logger) *Tasks {
	return &Tasks{
		api:    api,
		goals:  goals,
		auth:   auth,
		toasts: toasts,
		logger: logger,
		now:    time.Now,
		byGoal: make(map[int64][]model.Task),
	}
}

// Load fetches the tasks of a goal and refreshes the goal's counters.
func (t *Tasks) Load(ctx context.Context, goalID int64) ([]model.Task, error) {
	tasks, err := t.api.ListTasks(ctx, goalID)
	if err != nil {
		t.logger.Error("load tasks", "goal_id", goalID, "error", err)
		return nil, err
	}
	t.mu.Lock()
	t.byGoal[goalID] = tasks
	t.mu.Unlock()
	t.syncCounts(goalID)
	return t.List(goalID), nil
}

// List returns the cached tasks of a goal.
func (t *Tasks) List(goalID int64) []model.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	src := t.byGoal[goalID]
	out := make([]model.Task, len(src))
	copy(out, src)
	return out
}

// Create adds a task to an open goal.
func (t *Tasks) Create(ctx context.Context, goalID int64, in client.TaskInput) (model.Task, error) {
	if err := t.checkOpen(goalID); err != nil {
		return model.Task{}, err
	}
	created, err := t.api.CreateTask(ctx, goalID, in)
	if err != nil {
		t.toasts.Show(toast.KindError, "Could not add task")
		return model.Task{}, err
	}
	if created.GoalID == 0 {
		created.GoalID = goalID
	}
	t.mu.Lock()
	t.byGoal[goalID] = append(t.byGoal[goalID], *created)
	t.mu.Unlock()
	t.syncCounts(goalID)
	return *created, nil
}

// Update edits a cached task.
func (t *Tasks) Update(ctx context.Context, id int64, in client.TaskInput) (model.Task, error) {
	current, ok := t.find(id)
	if !ok {
		return model.Task{}, ErrTaskNotFound
	}
	updated, err := t.api.UpdateTask(ctx, id, in)
	if err != nil {
		t.toasts.Show(toast.KindError, "Could not update task")
		return model.Task{}, err
	}
	if updated.GoalID == 0 {
		updated.GoalID = current.GoalID
	}
	t.put(*updated)
	return *updated, nil
}

// Delete removes a task and refreshes the goal's counters.
func (t *Tasks) Delete(ctx context.Context, id int64) error {
	current, ok := t.find(id)
	if !ok {
		return ErrTaskNotFound
	}
	if err := t.api.DeleteTask(ctx, id); err != nil {
		t.toasts.Show(toast.KindError, "Could not delete task")
		return err
	}
	t.mu.Lock()
	list := t.byGoal[current.GoalID]
	for i := range list {
		if list[i].ID == id {
			t.byGoal[current.GoalID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	t.syncCounts(current.GoalID)
	return nil
}

// Toggle flips a task's completion optimistically, crediting or reversing
// the task reward at once. If the server rejects the change the task,
// counters and reward are rolled back.
func (t *Tasks) Toggle(ctx context.Context, id int64) (model.Task, error) {
	prev, ok := t.find(id)
	if !ok {
		return model.Task{}, ErrTaskNotFound
	}
	if err := t.checkOpen(prev.GoalID); err != nil {
		return model.Task{}, err
	}

	next := prev
	next.Completed = !prev.Completed
	if next.Completed {
		now := t.now()
		next.CompletedAt = &now
	} else {
		next.CompletedAt = nil
	}
	reward := goal.TaskReward(next.Completed)

	t.put(next)
	t.auth.ApplyReward(reward)

	saved, err := t.api.ToggleTask(ctx, id)
	if err != nil {
		t.put(prev)
		t.auth.ApplyReward(reward.Negate())
		t.logger.Warn("task toggle rolled back", "task_id", id, "error", err)
		t.toasts.Show(toast.KindError, "Could not update task")
		return prev, err
	}

	if saved.GoalID == 0 {
		saved.GoalID = prev.GoalID
	}
	if saved.Completed != next.Completed {
		// Server disagreed with the optimistic flip; undo the credit.
		t.auth.ApplyReward(reward.Negate())
	}
	t.put(*saved)
	return *saved, nil
}

// Reset drops every cached task.
func (t *Tasks) Reset() {
	t.mu.Lock()
	t.byGoal = make(map[int64][]model.Task)
	t.mu.Unlock()
}

func (t *Tasks) checkOpen(goalID int64) error {
	gs, ok := t.goals.Get(goalID)
	if !ok {
		return ErrGoalNotFound
	}
	if gs.CompletedAt != nil {
		return ErrGoalClosed
	}
	return nil
}

func (t *Tasks) find(id int64) (model.Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, list := range t.byGoal {
		for _, task := range list {
			if task.ID == id {
				return task, true
			}
		}
	}
	return model.Task{}, false
}

func (t *Tasks) put(task model.Task) {
	t.mu.Lock()
	list := t.byGoal[task.GoalID]
	replaced := false
	for i := range list {
		if list[i].ID == task.ID {
			list[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		t.byGoal[task.GoalID] = append(list, task)
	}
	t.mu.Unlock()
	t.syncCounts(task.GoalID)
}

func (t *Tasks) syncCounts(goalID int64) {
	t.mu.RLock()
	list := t.byGoal[goalID]
	total := len(list)
	done := 0
	for _, task := range list {
		if task.Completed {
			done++
		}
	}
	t.mu.RUnlock()
	t.goals.SetTaskCounts(goalID, done, total)
}
