package model

import "time"

// Session is the last known authenticated state cached on the device.
type Session struct {
	Token           string    `json:"token"`
	User            *User     `json:"user"`
	UnlockedAvatars []int64   `json:"unlocked_avatars"`
	LastLogin       time.Time `json:"last_login"`
}
