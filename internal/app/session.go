package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/store"
	"github.com/dukerupert/taskhero/internal/toast"
	"github.com/dukerupert/taskhero/internal/websocket"
)

// Config configures a Session.
type Config struct {
	WSURL          string
	ReconnectDelay time.Duration
	// AutoConnect starts the relay after every successful sign-in.
	AutoConnect bool
}

// Session wires the caches, the toast queue and the notification relay.
type Session struct {
	Auth   *Auth
	Goals  *Goals
	Tasks  *Tasks
	Shop   *Shop
	Toasts *toast.Queue
	Hub    *websocket.Hub

	relay       *websocket.Relay
	autoConnect bool
	logger      *slog.Logger
}

// New wires the caches, toast queue, hub and relay for one user session.
func New(api *client.Client, st *store.SessionStore, cfg Config, logger *slog.Logger) *Session {
	toasts := toast.NewQueue()
	auth := NewAuth(api, st, toasts, logger.With("component", "auth"))
	goals := NewGoals(api, auth, toasts, logger.With("component", "goals"))
	s := &Session{
		Auth:   auth,
		Goals:  goals,
		Tasks:  NewTasks(api, goals, auth, toasts, logger.With("component", "tasks")),
		Shop:   NewShop(api, auth, logger.With("component", "shop")),
		Toasts: toasts,
		Hub:    websocket.NewHub(logger.With("component", "hub")),

		autoConnect: cfg.AutoConnect,
		logger:      logger,
	}
	s.relay = websocket.NewRelay(websocket.Config{
		URL:            cfg.WSURL,
		ReconnectDelay: cfg.ReconnectDelay,
	}, s.HandleEvent, logger.With("component", "relay"))
	s.relay.OnState(func(state websocket.State) {
		if state == websocket.StateGaveUp {
			toasts.Show(toast.KindError, "Lost connection to live updates")
		}
	})
	return s
}

// Relay exposes the notification relay, mainly for state inspection.
func (s *Session) Relay() *websocket.Relay {
	return s.relay
}

// Restore resumes a stored session and loads its data.
func (s *Session) Restore(ctx context.Context) error {
	if err := s.Auth.Restore(ctx); err != nil {
		return err
	}
	s.signedIn(ctx)
	return nil
}

// Login signs in and loads the user's data.
func (s *Session) Login(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.signedIn(ctx)
	return u, nil
}

// Register creates an account, signs in and loads its data.
func (s *Session) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	u, err := s.Auth.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	s.signedIn(ctx)
	return u, nil
}

func (s *Session) signedIn(ctx context.Context) {
	s.LoadAll(ctx)
	if !s.autoConnect {
		return
	}
	if err := s.StartRelay(ctx); err != nil {
		s.logger.Warn("live updates unavailable", "error", err)
	}
}

// Logout stops live updates and forgets everything cached for the user.
func (s *Session) Logout() error {
	s.relay.Stop()
	s.Goals.Reset()
	s.Tasks.Reset()
	s.Shop.Reset()
	return s.Auth.Logout()
}

// LoadAll runs the initial fetches concurrently and returns the first
// failure. The group has no shared context, so one failed fetch does not
// cancel the others; each cache that fails keeps its defaults.
func (s *Session) LoadAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		if err := s.Auth.RefreshProfile(ctx); err != nil {
			s.logger.Warn("refresh profile", "error", err)
			return fmt.Errorf("refresh profile: %w", err)
		}
		return nil
	})
	g.Go(func() error { return s.Goals.Load(ctx) })
	g.Go(func() error { return s.Shop.LoadAvatars(ctx) })
	g.Go(func() error { return s.Shop.LoadBadges(ctx) })

	err := g.Wait()
	if err != nil {
		s.Toasts.Show(toast.KindError, "Some data could not be loaded")
	}
	return err
}

// StartRelay connects live updates with the current token.
func (s *Session) StartRelay(ctx context.Context) error {
	u := s.Auth.User()
	if u == nil {
		return ErrNotLoggedIn
	}
	s.relay.SetToken(u.Token)
	if err := s.relay.Start(ctx); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	return nil
}

// HandleEvent applies a push event to the caches, raises a toast and
// forwards the event to hub subscribers.
func (s *Session) HandleEvent(ev websocket.Event) {
	switch ev.Type {
	case websocket.EventBadgeUnlocked:
		if s.Shop.UnlockBadge(ev.Badge.ID, ev.Badge.Name, ev.Badge.UnlockedAt) {
			s.Toasts.Show(toast.KindAchievement, badgeMessage(ev))
		}
	case websocket.EventGoalExpired:
		if s.Goals.MarkExpired(ev.Goal.ID) {
			s.Auth.RecordGoalExpired()
		}
		s.Toasts.Show(toast.KindInfo, expiredMessage(ev))
	default:
		if !ev.HasStats() {
			s.logger.Debug("ignoring event", "type", ev.Type)
		}
	}

	if ev.HasStats() && s.Auth.ApplyStats(ev.Stats) {
		if u := s.Auth.User(); u != nil {
			s.Toasts.Show(toast.KindAchievement, fmt.Sprintf("Level up! You reached level %d", u.Level))
		}
	}

	s.Hub.Publish(ev)
}

// Close stops the relay and pending toast timers.
func (s *Session) Close() {
	s.relay.Stop()
	s.Toasts.Close()
}

func badgeMessage(ev websocket.Event) string {
	if ev.Message != "" {
		return ev.Message
	}
	if ev.Badge.Name != "" {
		return fmt.Sprintf("Badge unlocked: %s", ev.Badge.Name)
	}
	return "Badge unlocked!"
}

func expiredMessage(ev websocket.Event) string {
	if ev.Message != "" {
		return ev.Message
	}
	if ev.Goal.Title != "" {
		return fmt.Sprintf("Goal expired: %s", ev.Goal.Title)
	}
	return "A goal has expired"
}
