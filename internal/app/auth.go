// Package app holds the client-side state caches that sit between the
// screens and the API: the signed-in user, goals, tasks and the shop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/goal"
	"github.com/dukerupert/taskhero/internal/level"
	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/store"
	"github.com/dukerupert/taskhero/internal/toast"
	"github.com/dukerupert/taskhero/internal/token"
)

// SessionMaxAge is how long a login stays valid on the device before the
// user must sign in again.
const SessionMaxAge = 29 * 24 * time.Hour

var (
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrSessionExpired    = errors.New("session expired")
	ErrAvatarLocked      = errors.New("avatar not unlocked")
	ErrInsufficientCoins = errors.New("not enough task coins")
)

// Auth caches the signed-in user and mirrors it to device storage.
type Auth struct {
	mu       sync.RWMutex
	api      *client.Client
	store    *store.SessionStore
	toasts   *toast.Queue
	logger   *slog.Logger
	now      func() time.Time
	user     *model.User
	unlocked []int64
}

// NewAuth creates an Auth backed by api and the device session store.
func NewAuth(api *client.Client, st *store.SessionStore, toasts *toast.Queue, logger *slog.Logger) *Auth {
	return &Auth{
		api:    api,
		store:  st,
		toasts: toasts,
		logger: logger,
		now:    time.Now,
	}
}

// User returns a copy of the current user, or nil when signed out.
func (a *Auth) User() *model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

// LoggedIn reports whether a user is signed in.
func (a *Auth) LoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user != nil
}

// UnlockedAvatars returns the ids of avatars the user owns.
func (a *Auth) UnlockedAvatars() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.unlocked)
}

// Restore resumes the session cached on the device. Sessions older than
// SessionMaxAge are wiped.
func (a *Auth) Restore(ctx context.Context) error {
	sess, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return ErrNotLoggedIn
	}

	if sess.LastLogin.IsZero() || a.now().Sub(sess.LastLogin) > SessionMaxAge {
		a.logger.Info("stored session too old, signing out", "last_login", sess.LastLogin)
		if err := a.store.Clear(); err != nil {
			a.logger.Error("clear expired session", "error", err)
		}
		return ErrSessionExpired
	}

	u := sess.User
	if u == nil {
		claims, err := token.Decode(sess.Token, a.now())
		if err != nil && !errors.Is(err, token.ErrExpired) {
			if cerr := a.store.Clear(); cerr != nil {
				a.logger.Error("clear undecodable session", "error", cerr)
			}
			return fmt.Errorf("decode stored token: %w", err)
		}
		u = claims.User(sess.Token)
	}
	u.Token = sess.Token
	applyLevel(u)

	a.api.SetToken(sess.Token)
	a.mu.Lock()
	a.user = u
	a.unlocked = sess.UnlockedAvatars
	a.mu.Unlock()

	if err := a.RefreshProfile(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			a.Logout()
			return ErrSessionExpired
		}
		// Offline: keep the cached user.
		a.logger.Warn("refresh profile on restore", "error", err)
	}
	return nil
}

// Login signs in with email and password and persists the session.
func (a *Auth) Login(ctx context.Context, email, password string) (*model.User, error) {
	resp, err := a.api.Login(ctx, client.LoginInput{Email: email, Password: password})
	if err != nil {
		a.toasts.Show(toast.KindError, "Login failed")
		return nil, err
	}
	u := a.signIn(resp)
	a.toasts.Show(toast.KindSuccess, fmt.Sprintf("Welcome back, %s!", u.Name))
	return u, nil
}

// Register creates an account and signs it in.
func (a *Auth) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	resp, err := a.api.Register(ctx, client.RegisterInput{Name: name, Email: email, Password: password})
	if err != nil {
		a.toasts.Show(toast.KindError, "Sign up failed")
		return nil, err
	}
	u := a.signIn(resp)
	a.toasts.Show(toast.KindSuccess, fmt.Sprintf("Welcome, %s!", u.Name))
	return u, nil
}

// signIn derives the user from the token claims when they decode, falling
// back to the user object in the response.
func (a *Auth) signIn(resp *client.AuthResponse) *model.User {
	u := &resp.User
	if claims, err := token.Decode(resp.Token, a.now()); err == nil && claims.UserID != 0 {
		u = claims.User(resp.Token)
	} else if err != nil {
		a.logger.Debug("token claims unavailable, using response user", "error", err)
	}
	u.Token = resp.Token
	applyLevel(u)

	a.api.SetToken(resp.Token)
	a.mu.Lock()
	a.user = u
	a.unlocked = nil
	a.mu.Unlock()

	err := a.store.Save(model.Session{
		Token:     resp.Token,
		User:      u,
		LastLogin: a.now(),
	})
	if err != nil {
		a.logger.Error("persist session", "error", err)
	}

	cp := *u
	return &cp
}

// Logout forgets the user locally. The backend holds no session to end.
func (a *Auth) Logout() error {
	a.api.SetToken("")
	a.mu.Lock()
	a.user = nil
	a.unlocked = nil
	a.mu.Unlock()

	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// RefreshProfile replaces the cached user with the server copy.
func (a *Auth) RefreshProfile(ctx context.Context) error {
	if !a.LoggedIn() {
		return ErrNotLoggedIn
	}
	u, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	a.replaceUser(u)
	return nil
}

// UpdateProfile changes the user's name and email.
func (a *Auth) UpdateProfile(ctx context.Context, name, email string) (*model.User, error) {
	if !a.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	u, err := a.api.UpdateProfile(ctx, client.ProfileInput{Name: name, Email: email})
	if err != nil {
		a.toasts.Show(toast.KindError, "Could not update profile")
		return nil, err
	}
	a.replaceUser(u)
	a.toasts.Show(toast.KindSuccess, "Profile updated")
	return a.User(), nil
}

// ChangePassword replaces the account password.
func (a *Auth) ChangePassword(ctx context.Context, current, next string) error {
	if !a.LoggedIn() {
		return ErrNotLoggedIn
	}
	if err := a.api.ChangePassword(ctx, client.PasswordInput{CurrentPassword: current, NewPassword: next}); err != nil {
		a.toasts.Show(toast.KindError, "Could not change password")
		return err
	}
	a.toasts.Show(toast.KindSuccess, "Password changed")
	return nil
}

// replaceUser swaps in a fresh server copy, keeping the token.
func (a *Auth) replaceUser(u *model.User) {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return
	}
	u.Token = a.user.Token
	applyLevel(u)
	a.user = u
	cp := *u
	a.mu.Unlock()
	a.persistUser(&cp)
}

// ApplyStats merges a pushed stats update and reports whether the user
// gained a level.
func (a *Auth) ApplyStats(s model.Stats) bool {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return false
	}
	before := a.user.Level

	goals := a.user.GoalsOnTime
	if s.GoalsOnTime != nil {
		goals = *s.GoalsOnTime
	} else if s.Level != nil && level.For(goals) != *s.Level {
		goals = level.Threshold(*s.Level)
	}
	a.user.GoalsOnTime = goals
	if s.XPPoints != nil {
		a.user.Points = *s.XPPoints
	}
	if s.TaskCoins != nil {
		a.user.Coins = *s.TaskCoins
	}
	applyLevel(a.user)

	leveled := a.user.Level > before
	cp := *a.user
	a.mu.Unlock()

	a.persistUser(&cp)
	return leveled
}

// ApplyReward adds a coin/XP delta to the cached user.
func (a *Auth) ApplyReward(r model.Reward) {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return
	}
	a.user.Coins += r.Coins
	a.user.Points += r.XP
	cp := *a.user
	a.mu.Unlock()

	a.persistUser(&cp)
}

// RecordGoalCompletion updates goal counters and applies the completion
// reward. It reports whether the user gained a level.
func (a *Auth) RecordGoalCompletion(s goal.Status) bool {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return false
	}
	before := a.user.Level
	switch s {
	case goal.StatusCompleted:
		a.user.GoalsOnTime++
	case goal.StatusCompletedLate:
		a.user.GoalsLate++
	}
	r := goal.CompletionReward(s)
	a.user.Coins += r.Coins
	a.user.Points += r.XP
	applyLevel(a.user)
	leveled := a.user.Level > before
	cp := *a.user
	a.mu.Unlock()

	a.persistUser(&cp)
	return leveled
}

// RecordGoalExpired bumps the expired goal counter.
func (a *Auth) RecordGoalExpired() {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return
	}
	a.user.GoalsExpired++
	cp := *a.user
	a.mu.Unlock()

	a.persistUser(&cp)
}

// SelectAvatar switches the avatar immediately and rolls back if the server
// refuses.
func (a *Auth) SelectAvatar(ctx context.Context, id int64) error {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return ErrNotLoggedIn
	}
	if !slices.Contains(a.unlocked, id) {
		a.mu.Unlock()
		return ErrAvatarLocked
	}
	prev := a.user.AvatarID
	a.user.AvatarID = &id
	cp := *a.user
	a.mu.Unlock()
	a.persistUser(&cp)

	if err := a.api.SelectAvatar(ctx, id); err != nil {
		a.mu.Lock()
		if a.user != nil {
			a.user.AvatarID = prev
			cp = *a.user
		}
		a.mu.Unlock()
		a.persistUser(&cp)
		a.logger.Warn("avatar selection rolled back", "avatar_id", id, "error", err)
		a.toasts.Show(toast.KindError, "Could not change avatar")
		return err
	}
	return nil
}

// PurchaseAvatar buys an avatar. The server's coin balance replaces the local one.
func (a *Auth) PurchaseAvatar(ctx context.Context, id int64, price int) error {
	a.mu.RLock()
	u := a.user
	var coins int
	owned := false
	if u != nil {
		coins = u.Coins
		owned = slices.Contains(a.unlocked, id)
	}
	a.mu.RUnlock()

	if u == nil {
		return ErrNotLoggedIn
	}
	if owned {
		return nil
	}
	if coins < price {
		a.toasts.Show(toast.KindError, "Not enough TaskCoins")
		return ErrInsufficientCoins
	}

	resp, err := a.api.PurchaseAvatar(ctx, id)
	if err != nil {
		a.toasts.Show(toast.KindError, "Purchase failed")
		return err
	}

	a.mu.Lock()
	if a.user != nil {
		a.user.Coins = resp.TaskCoins
	}
	if !slices.Contains(a.unlocked, id) {
		a.unlocked = append(a.unlocked, id)
	}
	unlocked := slices.Clone(a.unlocked)
	var cp *model.User
	if a.user != nil {
		c := *a.user
		cp = &c
	}
	a.mu.Unlock()

	a.persistUser(cp)
	if err := a.store.SaveUnlockedAvatars(unlocked); err != nil {
		a.logger.Error("persist unlocked avatars", "error", err)
	}
	a.toasts.Show(toast.KindSuccess, "Avatar unlocked!")
	return nil
}

// SetUnlockedAvatars replaces the unlocked avatar list, e.g. after loading the shop.
func (a *Auth) SetUnlockedAvatars(ids []int64) {
	a.mu.Lock()
	if a.user == nil {
		a.mu.Unlock()
		return
	}
	a.unlocked = slices.Clone(ids)
	a.mu.Unlock()

	if err := a.store.SaveUnlockedAvatars(ids); err != nil {
		a.logger.Error("persist unlocked avatars", "error", err)
	}
}

func (a *Auth) persistUser(u *model.User) {
	if u == nil {
		return
	}
	if err := a.store.SaveUser(u); err != nil {
		a.logger.Error("persist user", "error", err)
	}
}

// applyLevel derives level and XP from the on-time goal count.
func applyLevel(u *model.User) {
	p := level.ForGoals(u.GoalsOnTime)
	u.Level = p.Level
	u.CurrentXP = p.CurrentXP
	u.RequiredXP = p.RequiredXP
}
