// Package token reads the claims the backend embeds in its auth token.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/taskhero/internal/level"
	"github.com/dukerupert/taskhero/internal/model"
)

var ErrExpired = errors.New("token expired")

// Claims mirrors the payload of the backend's access token.
type Claims struct {
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Points       int    `json:"xp_points"`
	Coins        int    `json:"task_coins"`
	GoalsOnTime  int    `json:"goals_completed_on_time"`
	GoalsLate    int    `json:"goals_completed_late"`
	GoalsExpired int    `json:"goals_expired"`
	AvatarID     *int64 `json:"avatar_id,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses the token payload without verifying the signature. The
// client never holds the signing key; the backend verifies on every call.
func Decode(raw string, now time.Time) (*Claims, error) {
	var c Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &c); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time) {
		return &c, ErrExpired
	}
	return &c, nil
}

// User builds the user snapshot encoded in the claims. Level and XP are
// derived from the on-time goal count.
func (c *Claims) User(raw string) *model.User {
	p := level.ForGoals(c.GoalsOnTime)
	return &model.User{
		ID:           c.UserID,
		Name:         c.Name,
		Email:        c.Email,
		Token:        raw,
		Level:        p.Level,
		CurrentXP:    p.CurrentXP,
		RequiredXP:   p.RequiredXP,
		Points:       c.Points,
		Coins:        c.Coins,
		GoalsOnTime:  c.GoalsOnTime,
		GoalsLate:    c.GoalsLate,
		GoalsExpired: c.GoalsExpired,
		AvatarID:     c.AvatarID,
	}
}
