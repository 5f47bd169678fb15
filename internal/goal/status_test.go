package goal

import (
	"testing"
	"time"

	"github.com/dukerupert/taskhero/internal/model"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestFutureEndDateInProgress(t *testing.T) {
	for _, days := range []int{0, 1, 7, 365} {
		end := now.Add(time.Duration(days)*24*time.Hour + time.Minute)
		for _, tasks := range [][2]int{{0, 0}, {0, 3}, {3, 3}} {
			s := ComputeStatus(end, nil, tasks[0], tasks[1], now)
			if s != StatusInProgress {
				t.Errorf("end +%dd tasks %v: status = %q, want %q", days, tasks, s, StatusInProgress)
			}
		}
	}
}

func TestPastEndDateIncompleteExpired(t *testing.T) {
	for _, days := range []int{1, 30} {
		end := now.Add(-time.Duration(days) * 24 * time.Hour)
		for _, tasks := range [][2]int{{0, 0}, {0, 3}, {2, 3}} {
			s := ComputeStatus(end, nil, tasks[0], tasks[1], now)
			if s != StatusExpired {
				t.Errorf("end -%dd tasks %v: status = %q, want %q", days, tasks, s, StatusExpired)
			}
		}
	}
}

func TestPastEndDateAllTasksDoneCompletedLate(t *testing.T) {
	end := now.Add(-time.Hour)
	if s := ComputeStatus(end, nil, 4, 4, now); s != StatusCompletedLate {
		t.Errorf("status = %q, want %q", s, StatusCompletedLate)
	}
}

func TestCompletedOnTime(t *testing.T) {
	end := now.Add(-time.Hour)
	completed := end.Add(-time.Minute)

	s := ComputeStatus(end, &completed, 0, 3, now)
	if s != StatusCompleted {
		t.Fatalf("status = %q, want %q", s, StatusCompleted)
	}
	r := CompletionReward(s)
	if r.Coins != 100 || r.XP != 100 {
		t.Errorf("reward = %+v, want 100/100", r)
	}
}

func TestCompletedExactlyAtDeadlineIsOnTime(t *testing.T) {
	end := now.Add(time.Hour)
	if s := ComputeStatus(end, ptr(end), 1, 1, now); s != StatusCompleted {
		t.Errorf("status = %q, want %q", s, StatusCompleted)
	}
}

func TestCompletedLate(t *testing.T) {
	end := now.Add(-48 * time.Hour)
	completed := end.Add(time.Second)

	s := ComputeStatus(end, &completed, 3, 3, now)
	if s != StatusCompletedLate {
		t.Fatalf("status = %q, want %q", s, StatusCompletedLate)
	}
	r := CompletionReward(s)
	if r.Coins != 50 || r.XP != 0 {
		t.Errorf("reward = %+v, want 50/0", r)
	}
}

func TestCompletionWinsOverFutureDeadline(t *testing.T) {
	end := now.Add(72 * time.Hour)
	if s := ComputeStatus(end, ptr(now), 0, 5, now); s != StatusCompleted {
		t.Errorf("status = %q, want %q", s, StatusCompleted)
	}
}

func TestNoRewardForOpenGoals(t *testing.T) {
	for _, s := range []Status{StatusInProgress, StatusExpired} {
		if r := CompletionReward(s); r != (model.Reward{}) {
			t.Errorf("CompletionReward(%q) = %+v, want zero", s, r)
		}
	}
}

func TestTaskRewardReversible(t *testing.T) {
	on := TaskReward(true)
	if on.Coins != 10 || on.XP != 10 {
		t.Errorf("check reward = %+v, want 10/10", on)
	}
	off := TaskReward(false)
	if off.Coins != -10 || off.XP != -10 {
		t.Errorf("uncheck reward = %+v, want -10/-10", off)
	}
	if sum := on.Add(off); sum != (model.Reward{}) {
		t.Errorf("check+uncheck = %+v, want zero", sum)
	}
}

func TestCanDelete(t *testing.T) {
	cases := map[Status]bool{
		StatusInProgress:    true,
		StatusExpired:       true,
		StatusCompleted:     false,
		StatusCompletedLate: false,
	}
	for s, want := range cases {
		if got := CanDelete(s); got != want {
			t.Errorf("CanDelete(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestComputeProgress(t *testing.T) {
	cases := []struct {
		done, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 4, 0},
		{1, 4, 25},
		{1, 3, 33},
		{4, 4, 100},
		{5, 4, 100},
	}
	for _, c := range cases {
		if got := ComputeProgress(c.done, c.total); got != c.want {
			t.Errorf("ComputeProgress(%d, %d) = %d, want %d", c.done, c.total, got, c.want)
		}
	}
}

func TestDaysRemaining(t *testing.T) {
	if got := DaysRemaining(now.Add(-time.Hour), now); got != 0 {
		t.Errorf("past deadline = %d, want 0", got)
	}
	if got := DaysRemaining(now.Add(24*time.Hour), now); got != 1 {
		t.Errorf("exactly one day = %d, want 1", got)
	}
	if got := DaysRemaining(now.Add(25*time.Hour), now); got != 2 {
		t.Errorf("a day and an hour = %d, want 2", got)
	}
}

func TestWithStatusIgnoresStoredStatus(t *testing.T) {
	g := model.Goal{
		ID:             7,
		Title:          "Read a book",
		EndDate:        now.Add(-time.Hour),
		Status:         "in_progress",
		TotalTasks:     4,
		CompletedTasks: 2,
	}

	gs := WithStatus(g, now)
	if gs.Status != StatusExpired {
		t.Errorf("status = %q, want %q", gs.Status, StatusExpired)
	}
	if gs.Goal.Status != string(StatusExpired) {
		t.Errorf("goal.Status = %q, want %q", gs.Goal.Status, StatusExpired)
	}
	if gs.Progress != 50 {
		t.Errorf("progress = %d, want 50", gs.Progress)
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusExpired.Valid() {
		t.Error("expected expired to be valid")
	}
	if Status("archived").Valid() {
		t.Error("expected archived to be invalid")
	}
	if !StatusCompletedLate.Done() || StatusExpired.Done() {
		t.Error("Done() mismatch")
	}
}
