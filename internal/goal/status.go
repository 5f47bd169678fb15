package goal

import (
	"time"

	"github.com/dukerupert/taskhero/internal/model"
)

type Status string

const (
	StatusInProgress    Status = "in_progress"
	StatusCompleted     Status = "completed"
	StatusCompletedLate Status = "completed_late"
	StatusExpired       Status = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusCompletedLate, StatusExpired:
		return true
	}
	return false
}

// Done reports whether the goal has been completed, on time or late.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusCompletedLate
}

const (
	taskCoins = 10
	taskXP    = 10
)

type GoalWithStatus struct {
	model.Goal
	Status        Status
	Progress      int
	DaysRemaining int
}

// ComputeStatus derives a goal's status. A completion timestamp always wins;
// without one, a past end date means the goal either slipped through late
// (all tasks done) or expired.
func ComputeStatus(endDate time.Time, completedAt *time.Time, completedTasks, totalTasks int, now time.Time) Status {
	if completedAt != nil {
		if completedAt.After(endDate) {
			return StatusCompletedLate
		}
		return StatusCompleted
	}

	if now.After(endDate) {
		if totalTasks > 0 && completedTasks >= totalTasks {
			return StatusCompletedLate
		}
		return StatusExpired
	}

	return StatusInProgress
}

// ComputeProgress returns the share of completed tasks as a percentage.
func ComputeProgress(completedTasks, totalTasks int) int {
	if totalTasks <= 0 || completedTasks <= 0 {
		return 0
	}
	if completedTasks >= totalTasks {
		return 100
	}
	return completedTasks * 100 / totalTasks
}

// CompletionReward is what completing a goal with the given status grants.
func CompletionReward(s Status) model.Reward {
	switch s {
	case StatusCompleted:
		return model.Reward{Coins: 100, XP: 100}
	case StatusCompletedLate:
		return model.Reward{Coins: 50, XP: 0}
	}
	return model.Reward{}
}

// TaskReward is the delta applied when a task is checked (completed=true)
// or unchecked.
func TaskReward(completed bool) model.Reward {
	r := model.Reward{Coins: taskCoins, XP: taskXP}
	if !completed {
		return r.Negate()
	}
	return r
}

// CanDelete reports whether a goal in status s may be deleted. Completed
// goals are part of the user's history and stay.
func CanDelete(s Status) bool {
	return s == StatusInProgress || s == StatusExpired
}

// DaysRemaining returns whole days until endDate, rounded up, or 0 once the
// deadline has passed.
func DaysRemaining(endDate, now time.Time) int {
	if !endDate.After(now) {
		return 0
	}
	d := endDate.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// WithStatus decorates g with its derived status and progress. Any status
// the backend sent is ignored.
func WithStatus(g model.Goal, now time.Time) GoalWithStatus {
	s := ComputeStatus(g.EndDate, g.CompletedAt, g.CompletedTasks, g.TotalTasks, now)
	p := ComputeProgress(g.CompletedTasks, g.TotalTasks)
	g.Status = string(s)
	g.Progress = p
	return GoalWithStatus{
		Goal:          g,
		Status:        s,
		Progress:      p,
		DaysRemaining: DaysRemaining(g.EndDate, now),
	}
}
