package model

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Token        string `json:"token,omitempty"`
	Level        int    `json:"level"`
	CurrentXP    int    `json:"current_xp"`
	RequiredXP   int    `json:"required_xp"`
	Points       int    `json:"xp_points"`
	Coins        int    `json:"task_coins"`
	GoalsOnTime  int    `json:"goals_completed_on_time"`
	GoalsLate    int    `json:"goals_completed_late"`
	GoalsExpired int    `json:"goals_expired"`
	AvatarID     *int64 `json:"avatar_id"`
}

// Stats is the subset of user progression the backend pushes over the
// notification channel. Nil fields were not present in the payload.
type Stats struct {
	Level       *int `json:"level,omitempty"`
	XPPoints    *int `json:"xp_points,omitempty"`
	TaskCoins   *int `json:"task_coins,omitempty"`
	GoalsOnTime *int `json:"goals_completed_on_time,omitempty"`
}

// Empty reports whether no stat field is set.
func (s Stats) Empty() bool {
	return s.Level == nil && s.XPPoints == nil && s.TaskCoins == nil && s.GoalsOnTime == nil
}
