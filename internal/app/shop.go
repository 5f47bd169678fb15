package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/model"
)

var ErrAvatarNotFound = errors.New("avatar not found")

// Shop caches the avatar catalogue and the badge collection.
type Shop struct {
	mu      sync.RWMutex
	api     *client.Client
	auth    *Auth
	logger  *slog.Logger
	now     func() time.Time
	avatars []model.Avatar
	badges  []model.Badge
}

// NewShop creates an empty shop cache.
func NewShop(api *client.Client, auth *Auth, logger *slog.Logger) *Shop {
	return &Shop{api: api, auth: auth, logger: logger, now: time.Now}
}

// LoadAvatars fetches the catalogue. Avatars flagged unlocked by the server
// are merged with the ids already owned on this device.
func (s *Shop) LoadAvatars(ctx context.Context) error {
	avatars, err := s.api.ListAvatars(ctx)
	if err != nil {
		s.logger.Error("load avatars", "error", err)
		return err
	}

	owned := s.auth.UnlockedAvatars()
	for _, a := range avatars {
		if a.Unlocked && !slices.Contains(owned, a.ID) {
			owned = append(owned, a.ID)
		}
	}
	slices.Sort(owned)
	s.auth.SetUnlockedAvatars(owned)

	s.mu.Lock()
	s.avatars = avatars
	s.mu.Unlock()
	return nil
}

// Avatars returns the catalogue with Unlocked reflecting the owned list.
func (s *Shop) Avatars() []model.Avatar {
	owned := s.auth.UnlockedAvatars()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Avatar, len(s.avatars))
	for i, a := range s.avatars {
		a.Unlocked = a.Unlocked || slices.Contains(owned, a.ID)
		out[i] = a
	}
	return out
}

func (s *Shop) avatar(id int64) (model.Avatar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.avatars {
		if a.ID == id {
			return a, true
		}
	}
	return model.Avatar{}, false
}

// Purchase buys an avatar from the loaded catalogue.
func (s *Shop) Purchase(ctx context.Context, id int64) error {
	a, ok := s.avatar(id)
	if !ok {
		return ErrAvatarNotFound
	}
	return s.auth.PurchaseAvatar(ctx, id, a.Price)
}

// Select equips an owned avatar.
func (s *Shop) Select(ctx context.Context, id int64) error {
	return s.auth.SelectAvatar(ctx, id)
}

// LoadBadges fetches the badge collection.
func (s *Shop) LoadBadges(ctx context.Context) error {
	badges, err := s.api.ListBadges(ctx)
	if err != nil {
		s.logger.Error("load badges", "error", err)
		return err
	}
	s.mu.Lock()
	s.badges = badges
	s.mu.Unlock()
	return nil
}

// Badges returns the cached badge collection.
func (s *Shop) Badges() []model.Badge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.badges)
}

// UnlockBadge marks a badge as earned. Unknown badges are added so the
// collection reflects the push even before the next load. It reports false
// when the badge was already unlocked.
func (s *Shop) UnlockBadge(id int64, name string, at *time.Time) bool {
	when := s.now()
	if at != nil {
		when = *at
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.badges {
		if s.badges[i].ID != id {
			continue
		}
		if s.badges[i].Unlocked {
			return false
		}
		s.badges[i].Unlocked = true
		s.badges[i].UnlockedAt = &when
		return true
	}
	s.badges = append(s.badges, model.Badge{ID: id, Name: name, Unlocked: true, UnlockedAt: &when})
	return true
}

// Reset drops the cached catalogue and badges.
func (s *Shop) Reset() {
	s.mu.Lock()
	s.avatars = nil
	s.badges = nil
	s.mu.Unlock()
}
