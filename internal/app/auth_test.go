package app

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/level"
	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/token"
)

func TestLoginPersistsSession(t *testing.T) {
	f := newFakeBackend()
	s, st := setupTestSession(t, f)

	u, err := s.Auth.Login(t.Context(), "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Name != "Ana" {
		t.Errorf("name = %q, want %q", u.Name, "Ana")
	}

	sess, err := st.Load()
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess == nil {
		t.Fatal("expected stored session")
	}
	if sess.Token != "opaque" {
		t.Errorf("token = %q, want %q", sess.Token, "opaque")
	}
	if sess.User == nil || sess.User.ID != 7 {
		t.Errorf("stored user = %+v, want id 7", sess.User)
	}
	if time.Since(sess.LastLogin) > time.Minute {
		t.Errorf("last login = %v, want recent", sess.LastLogin)
	}
	if !hasToast(s, "Welcome back, Ana!") {
		t.Errorf("toasts = %+v, want welcome toast", s.Toasts.List())
	}
}

func TestLoginFailureShowsToast(t *testing.T) {
	f := newFakeBackend()
	f.failWith("POST /auth/login", http.StatusUnauthorized)
	s, st := setupTestSession(t, f)

	if _, err := s.Auth.Login(t.Context(), "ana@example.com", "wrong"); err == nil {
		t.Fatal("expected error")
	}
	if s.Auth.LoggedIn() {
		t.Error("expected signed out")
	}
	if sess, _ := st.Load(); sess != nil {
		t.Errorf("session = %+v, want nil", sess)
	}
	if !hasToast(s, "Login failed") {
		t.Errorf("toasts = %+v, want failure toast", s.Toasts.List())
	}
}

func TestSignInPrefersTokenClaims(t *testing.T) {
	s, _ := setupTestSession(t, newFakeBackend())

	raw := signedToken(t, token.Claims{
		UserID:      9,
		Name:        "Bia",
		GoalsOnTime: 4,
		Coins:       30,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	u := s.Auth.signIn(&client.AuthResponse{Token: raw, User: model.User{ID: 1, Name: "stale"}})

	if u.ID != 9 || u.Name != "Bia" {
		t.Errorf("user = %+v, want claims user", u)
	}
	if u.Level != level.For(4) {
		t.Errorf("level = %d, want %d", u.Level, level.For(4))
	}
	if u.Token != raw {
		t.Errorf("token not kept on user")
	}
}

func TestRestoreExpiresOldSession(t *testing.T) {
	f := newFakeBackend()
	s, st := setupTestSession(t, f)

	err := st.Save(model.Session{
		Token:     "opaque",
		User:      &model.User{ID: 7, Name: "Ana"},
		LastLogin: time.Now().Add(-30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}

	if err := s.Auth.Restore(t.Context()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("restore err = %v, want ErrSessionExpired", err)
	}
	if sess, _ := st.Load(); sess != nil {
		t.Errorf("session = %+v, want wiped", sess)
	}
	if got := f.callCount("GET /users/me"); got != 0 {
		t.Errorf("profile calls = %d, want 0", got)
	}
}

func TestRestoreWithinWindow(t *testing.T) {
	f := newFakeBackend()
	f.user.GoalsOnTime = 6
	s, st := setupTestSession(t, f)

	err := st.Save(model.Session{
		Token:           "opaque",
		User:            &model.User{ID: 7, Name: "Ana"},
		UnlockedAvatars: []int64{3},
		LastLogin:       time.Now().Add(-28 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}

	if err := s.Auth.Restore(t.Context()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	u := s.Auth.User()
	if u.GoalsOnTime != 6 {
		t.Errorf("goals on time = %d, want refreshed 6", u.GoalsOnTime)
	}
	if u.Level != level.For(6) {
		t.Errorf("level = %d, want %d", u.Level, level.For(6))
	}
	if got := s.Auth.UnlockedAvatars(); len(got) != 1 || got[0] != 3 {
		t.Errorf("unlocked = %v, want [3]", got)
	}
}

func TestRestoreOfflineKeepsCache(t *testing.T) {
	f := newFakeBackend()
	f.failWith("GET /users/me", http.StatusBadGateway)
	s, st := setupTestSession(t, f)

	st.Save(model.Session{Token: "opaque", User: &model.User{ID: 7, Name: "Cached"}, LastLogin: time.Now()})

	if err := s.Auth.Restore(t.Context()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if u := s.Auth.User(); u == nil || u.Name != "Cached" {
		t.Errorf("user = %+v, want cached user", u)
	}
}

func TestRestoreUnauthorizedSignsOut(t *testing.T) {
	f := newFakeBackend()
	f.failWith("GET /users/me", http.StatusUnauthorized)
	s, st := setupTestSession(t, f)

	st.Save(model.Session{Token: "revoked", User: &model.User{ID: 7}, LastLogin: time.Now()})

	if err := s.Auth.Restore(t.Context()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("restore err = %v, want ErrSessionExpired", err)
	}
	if s.Auth.LoggedIn() {
		t.Error("expected signed out")
	}
}

func TestRestoreNothingStored(t *testing.T) {
	s, _ := setupTestSession(t, newFakeBackend())
	if err := s.Auth.Restore(t.Context()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("restore err = %v, want ErrNotLoggedIn", err)
	}
}

func TestRestoreUndecodableTokenClears(t *testing.T) {
	s, st := setupTestSession(t, newFakeBackend())

	if err := st.Save(model.Session{Token: "not-a-jwt", LastLogin: time.Now()}); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if err := s.Auth.Restore(t.Context()); err == nil {
		t.Fatal("expected decode error")
	}
	sess, err := st.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess != nil {
		t.Errorf("session = %+v, want cleared", sess)
	}
}

func TestApplyStatsLevelUp(t *testing.T) {
	s, _ := setupTestSession(t, newFakeBackend())
	signIn(t, s)

	goals := 4
	coins := 500
	if !s.Auth.ApplyStats(model.Stats{GoalsOnTime: &goals, TaskCoins: &coins}) {
		t.Error("expected level up")
	}
	u := s.Auth.User()
	if u.Level != level.For(4) || u.Coins != 500 {
		t.Errorf("user = %+v, want level %d with 500 coins", u, level.For(4))
	}

	// A pushed level without a goal count moves the count to that level's threshold.
	lvl := 6
	s.Auth.ApplyStats(model.Stats{Level: &lvl})
	u = s.Auth.User()
	if u.Level != 6 || u.GoalsOnTime != level.Threshold(6) {
		t.Errorf("level = %d goals = %d, want 6 and %d", u.Level, u.GoalsOnTime, level.Threshold(6))
	}
}

func TestSelectAvatarRollsBack(t *testing.T) {
	f := newFakeBackend()
	f.failWith("PUT /users/me/avatar", http.StatusInternalServerError)
	s, st := setupTestSession(t, f)
	signIn(t, s)
	s.Auth.SetUnlockedAvatars([]int64{1, 2})

	if err := s.Auth.SelectAvatar(t.Context(), 2); err == nil {
		t.Fatal("expected error")
	}
	if u := s.Auth.User(); u.AvatarID != nil {
		t.Errorf("avatar = %v, want rolled back to nil", *u.AvatarID)
	}
	stored, _ := st.LoadUser()
	if stored.AvatarID != nil {
		t.Errorf("stored avatar = %v, want nil", *stored.AvatarID)
	}
	if !hasToast(s, "Could not change avatar") {
		t.Errorf("toasts = %+v, want error toast", s.Toasts.List())
	}
}

func TestSelectAvatarLocked(t *testing.T) {
	s, _ := setupTestSession(t, newFakeBackend())
	signIn(t, s)

	if err := s.Auth.SelectAvatar(t.Context(), 5); !errors.Is(err, ErrAvatarLocked) {
		t.Errorf("err = %v, want ErrAvatarLocked", err)
	}
}

func TestLogoutClearsStorage(t *testing.T) {
	s, st := setupTestSession(t, newFakeBackend())
	signIn(t, s)

	if err := s.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sess, _ := st.Load(); sess != nil {
		t.Errorf("session = %+v, want nil", sess)
	}
	if s.Auth.User() != nil {
		t.Error("expected no user")
	}
}
