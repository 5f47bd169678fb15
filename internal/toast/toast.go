// Package toast keeps the short-lived notifications shown to the user.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSuccess     Kind = "success"
	KindError       Kind = "error"
	KindInfo        Kind = "info"
	KindAchievement Kind = "achievement"
)

// DefaultDuration is how long a toast lives unless told otherwise.
const DefaultDuration = 3 * time.Second

type Toast struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
}

// Queue holds visible toasts. Each toast removes itself once its duration
// elapses.
type Queue struct {
	mu       sync.Mutex
	toasts   []Toast
	timers   map[string]*time.Timer
	onChange func([]Toast)
	closed   bool
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{timers: make(map[string]*time.Timer)}
}

// OnChange registers a callback invoked with a snapshot whenever the set of
// visible toasts changes. It is called without the queue lock held.
func (q *Queue) OnChange(fn func([]Toast)) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Show adds a toast that expires after DefaultDuration.
func (q *Queue) Show(kind Kind, message string) Toast {
	return q.ShowFor(kind, message, DefaultDuration)
}

// ShowFor adds a toast that expires after d.
func (q *Queue) ShowFor(kind Kind, message string, d time.Duration) Toast {
	if d <= 0 {
		d = DefaultDuration
	}
	t := Toast{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  d,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return t
	}
	q.toasts = append(q.toasts, t)
	q.timers[t.ID] = time.AfterFunc(d, func() { q.Dismiss(t.ID) })
	snapshot, fn := q.snapshotLocked()
	q.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return t
}

// Dismiss removes a toast early. Unknown IDs are ignored.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	idx := -1
	for i, t := range q.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	q.toasts = append(q.toasts[:idx], q.toasts[idx+1:]...)
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
	snapshot, fn := q.snapshotLocked()
	q.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// List returns the visible toasts, oldest first.
func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

// Close stops pending timers and drops all toasts.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.toasts = nil
	q.closed = true
}

func (q *Queue) snapshotLocked() ([]Toast, func([]Toast)) {
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out, q.onChange
}
