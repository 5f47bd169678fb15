package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/taskhero/internal/model"
)

type EventType string

// Event types pushed by the backend.
const (
	EventBadgeUnlocked EventType = "EMBLEMA_DESBLOQUEADO"
	EventGoalExpired   EventType = "META_EXPIRADA"
	EventStatsUpdated  EventType = "ESTATISTICAS_ATUALIZADAS"
)

// BadgeUnlocked identifies the badge in an EMBLEMA_DESBLOQUEADO event.
type BadgeUnlocked struct {
	ID         int64      `json:"badge_id"`
	Name       string     `json:"badge_name"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// GoalExpired identifies the goal in a META_EXPIRADA event.
type GoalExpired struct {
	ID    int64  `json:"goal_id"`
	Title string `json:"goal_title"`
}

// Event is a decoded push notification.
type Event struct {
	Type    EventType
	Message string
	Badge   *BadgeUnlocked
	Goal    *GoalExpired
	Stats   model.Stats
}

// HasStats reports whether the event carries any progression field.
func (e Event) HasStats() bool {
	return !e.Stats.Empty()
}

type payload struct {
	BadgeUnlocked
	GoalExpired
	model.Stats
}

type wireEvent struct {
	Type    EventType       `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	payload
}

// ParseEvent decodes a push message. Payload fields may sit under "data" or
// at the top level; "data" wins when both are present. A message with stat
// fields and no type is treated as a stats update.
func ParseEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	var p payload
	if len(w.Data) > 0 && string(w.Data) != "null" {
		if err := json.Unmarshal(w.Data, &p); err != nil {
			return Event{}, fmt.Errorf("decode event data: %w", err)
		}
	}

	ev := Event{
		Type:    w.Type,
		Message: w.Message,
		Stats:   mergeStats(w.Stats, p.Stats),
	}

	switch w.Type {
	case EventBadgeUnlocked:
		b := mergeBadge(w.BadgeUnlocked, p.BadgeUnlocked)
		if b.ID == 0 {
			return Event{}, fmt.Errorf("%s without badge_id", w.Type)
		}
		ev.Badge = &b
	case EventGoalExpired:
		g := mergeGoal(w.GoalExpired, p.GoalExpired)
		if g.ID == 0 {
			return Event{}, fmt.Errorf("%s without goal_id", w.Type)
		}
		ev.Goal = &g
	case "":
		if ev.HasStats() {
			ev.Type = EventStatsUpdated
		}
	}

	return ev, nil
}

func mergeStats(top, data model.Stats) model.Stats {
	out := top
	if data.Level != nil {
		out.Level = data.Level
	}
	if data.XPPoints != nil {
		out.XPPoints = data.XPPoints
	}
	if data.TaskCoins != nil {
		out.TaskCoins = data.TaskCoins
	}
	if data.GoalsOnTime != nil {
		out.GoalsOnTime = data.GoalsOnTime
	}
	return out
}

func mergeBadge(top, data BadgeUnlocked) BadgeUnlocked {
	out := top
	if data.ID != 0 {
		out.ID = data.ID
	}
	if data.Name != "" {
		out.Name = data.Name
	}
	if data.UnlockedAt != nil {
		out.UnlockedAt = data.UnlockedAt
	}
	return out
}

func mergeGoal(top, data GoalExpired) GoalExpired {
	out := top
	if data.ID != 0 {
		out.ID = data.ID
	}
	if data.Title != "" {
		out.Title = data.Title
	}
	return out
}
