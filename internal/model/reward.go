package model

import "time"

// Reward is a coin/XP delta. Negative values reverse an earlier award.
type Reward struct {
	Coins int `json:"coins"`
	XP    int `json:"xp"`
}

// Add returns the sum of two rewards.
func (r Reward) Add(o Reward) Reward {
	return Reward{Coins: r.Coins + o.Coins, XP: r.XP + o.XP}
}

// Negate returns the reversal of r.
func (r Reward) Negate() Reward {
	return Reward{Coins: -r.Coins, XP: -r.XP}
}

type Avatar struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Price    int    `json:"price"`
	Unlocked bool   `json:"unlocked"`
}

type Badge struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlocked_at"`
}
