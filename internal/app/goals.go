package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/goal"
	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/toast"
)

var (
	ErrGoalNotFound     = errors.New("goal not found")
	ErrCannotDelete     = errors.New("completed goals cannot be deleted")
	ErrAlreadyCompleted = errors.New("goal already completed")
)

// Goals caches the user's goals as last fetched. Status is always derived
// at read time.
type Goals struct {
	mu      sync.RWMutex
	api     *client.Client
	auth    *Auth
	toasts  *toast.Queue
	logger  *slog.Logger
	now     func() time.Time
	goals   []model.Goal
	expired map[int64]bool
}

// NewGoals creates an empty goal cache.
func NewGoals(api *client.Client, auth *Auth, toasts *toast.Queue, logger *slog.Logger) *Goals {
	return &Goals{
		api:     api,
		auth:    auth,
		toasts:  toasts,
		logger:  logger,
		now:     time.Now,
		expired: make(map[int64]bool),
	}
}

// Load replaces the cache with the server's list. On failure the previous
// list stays in place.
func (g *Goals) Load(ctx context.Context) error {
	goals, err := g.api.ListGoals(ctx)
	if err != nil {
		g.logger.Error("load goals", "error", err)
		return err
	}
	g.mu.Lock()
	g.goals = goals
	g.expired = make(map[int64]bool)
	g.mu.Unlock()
	return nil
}

// derive decorates m with its status, taking the read lock.
func (g *Goals) derive(m model.Goal, now time.Time) goal.GoalWithStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.deriveLocked(m, now)
}

// deriveLocked is derive for callers already holding g.mu.
func (g *Goals) deriveLocked(m model.Goal, now time.Time) goal.GoalWithStatus {
	gs := goal.WithStatus(m, now)
	if gs.Status == goal.StatusInProgress && g.expired[m.ID] {
		gs.Status = goal.StatusExpired
		gs.Goal.Status = string(goal.StatusExpired)
	}
	return gs
}

// List returns all cached goals with derived status.
func (g *Goals) List() []goal.GoalWithStatus {
	now := g.now()
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]goal.GoalWithStatus, 0, len(g.goals))
	for _, m := range g.goals {
		out = append(out, g.deriveLocked(m, now))
	}
	return out
}

// ListByStatus filters List by status.
func (g *Goals) ListByStatus(s goal.Status) []goal.GoalWithStatus {
	var out []goal.GoalWithStatus
	for _, gs := range g.List() {
		if gs.Status == s {
			out = append(out, gs)
		}
	}
	return out
}

// Get returns the cached goal with the given id.
func (g *Goals) Get(id int64) (goal.GoalWithStatus, bool) {
	now := g.now()
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, m := range g.goals {
		if m.ID == id {
			return g.deriveLocked(m, now), true
		}
	}
	return goal.GoalWithStatus{}, false
}

// Create adds a goal on the server and caches it.
func (g *Goals) Create(ctx context.Context, in client.GoalInput) (goal.GoalWithStatus, error) {
	created, err := g.api.CreateGoal(ctx, in)
	if err != nil {
		g.toasts.Show(toast.KindError, "Could not create goal")
		return goal.GoalWithStatus{}, err
	}
	g.mu.Lock()
	g.goals = append(g.goals, *created)
	g.mu.Unlock()

	g.toasts.Show(toast.KindSuccess, "Goal created")
	return g.derive(*created, g.now()), nil
}

// Update edits an open goal. Completed goals are refused with
// ErrAlreadyCompleted.
func (g *Goals) Update(ctx context.Context, id int64, in client.GoalInput) (goal.GoalWithStatus, error) {
	current, ok := g.Get(id)
	if !ok {
		return goal.GoalWithStatus{}, ErrGoalNotFound
	}
	if current.CompletedAt != nil {
		return goal.GoalWithStatus{}, ErrAlreadyCompleted
	}

	updated, err := g.api.UpdateGoal(ctx, id, in)
	if err != nil {
		g.toasts.Show(toast.KindError, "Could not update goal")
		return goal.GoalWithStatus{}, err
	}
	g.replace(*updated)
	g.toasts.Show(toast.KindSuccess, "Goal updated")
	return g.derive(*updated, g.now()), nil
}

// Delete removes a goal. Only in-progress and expired goals may be deleted.
func (g *Goals) Delete(ctx context.Context, id int64) error {
	current, ok := g.Get(id)
	if !ok {
		return ErrGoalNotFound
	}
	if !goal.CanDelete(current.Status) {
		g.toasts.Show(toast.KindError, "Completed goals cannot be deleted")
		return ErrCannotDelete
	}

	if err := g.api.DeleteGoal(ctx, id); err != nil {
		g.toasts.Show(toast.KindError, "Could not delete goal")
		return err
	}

	g.mu.Lock()
	for i, m := range g.goals {
		if m.ID == id {
			g.goals = append(g.goals[:i], g.goals[i+1:]...)
			break
		}
	}
	delete(g.expired, id)
	g.mu.Unlock()

	g.toasts.Show(toast.KindSuccess, "Goal deleted")
	return nil
}

// Complete records the completion of a goal and credits the reward its
// timing earns. Goals past their end date complete late.
func (g *Goals) Complete(ctx context.Context, id int64) (goal.GoalWithStatus, model.Reward, error) {
	current, ok := g.Get(id)
	if !ok {
		return goal.GoalWithStatus{}, model.Reward{}, ErrGoalNotFound
	}
	if current.CompletedAt != nil {
		return goal.GoalWithStatus{}, model.Reward{}, ErrAlreadyCompleted
	}

	completed, err := g.api.CompleteGoal(ctx, id)
	if err != nil {
		g.toasts.Show(toast.KindError, "Could not complete goal")
		return goal.GoalWithStatus{}, model.Reward{}, err
	}
	if completed.CompletedAt == nil {
		now := g.now()
		completed.CompletedAt = &now
	}
	g.replace(*completed)

	gs := g.derive(*completed, g.now())
	reward := goal.CompletionReward(gs.Status)
	leveled := g.auth.RecordGoalCompletion(gs.Status)

	switch gs.Status {
	case goal.StatusCompleted:
		g.toasts.Show(toast.KindSuccess, fmt.Sprintf("Goal complete! +%d coins, +%d XP", reward.Coins, reward.XP))
	case goal.StatusCompletedLate:
		g.toasts.Show(toast.KindInfo, fmt.Sprintf("Goal completed late. +%d coins", reward.Coins))
	}
	if leveled {
		if u := g.auth.User(); u != nil {
			g.toasts.Show(toast.KindAchievement, fmt.Sprintf("Level up! You reached level %d", u.Level))
		}
	}
	return gs, reward, nil
}

// MarkExpired records a server notice that a goal expired. It reports
// whether the goal was known and still open.
func (g *Goals) MarkExpired(id int64) bool {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.goals {
		if m.ID != id {
			continue
		}
		if g.deriveLocked(m, now).Status.Done() {
			return false
		}
		g.expired[id] = true
		return true
	}
	return false
}

// SetTaskCounts updates the cached task counters of a goal.
func (g *Goals) SetTaskCounts(id int64, completed, total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.goals {
		if g.goals[i].ID == id {
			g.goals[i].CompletedTasks = completed
			g.goals[i].TotalTasks = total
			return
		}
	}
}

// Reset drops every cached goal.
func (g *Goals) Reset() {
	g.mu.Lock()
	g.goals = nil
	g.expired = make(map[int64]bool)
	g.mu.Unlock()
}

func (g *Goals) replace(m model.Goal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.goals {
		if g.goals[i].ID == m.ID {
			g.goals[i] = m
			return
		}
	}
	g.goals = append(g.goals, m)
}
