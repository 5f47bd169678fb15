package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/secret"
)

// Keys of the device storage contract.
const (
	KeyAuthToken       = "auth_token"
	KeyUser            = "user"
	KeyUnlockedAvatars = "unlocked_avatars"
	KeyLastLogin       = "last_login"
)

// sealedPrefix marks a token value encrypted with the device secret.
const sealedPrefix = "sealed:"

// SessionStore persists the authenticated session on the device.
type SessionStore struct {
	kv           *KVStore
	deviceSecret string
}

// NewSessionStore wraps kv. When deviceSecret is non-empty the auth token is
// sealed at rest.
func NewSessionStore(kv *KVStore, deviceSecret string) *SessionStore {
	return &SessionStore{kv: kv, deviceSecret: deviceSecret}
}

func (s *SessionStore) SaveToken(token string) error {
	value := token
	if s.deviceSecret != "" {
		sealed, err := secret.Seal([]byte(token), s.deviceSecret)
		if err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
		value = sealedPrefix + sealed
	}
	return s.kv.Set(KeyAuthToken, value)
}

// LoadToken returns the stored token, or "" if none.
func (s *SessionStore) LoadToken() (string, error) {
	value, ok, err := s.kv.Get(KeyAuthToken)
	if err != nil || !ok {
		return "", err
	}
	if sealed, ok := strings.CutPrefix(value, sealedPrefix); ok {
		if s.deviceSecret == "" {
			return "", fmt.Errorf("token is sealed but no device secret is configured")
		}
		plain, err := secret.Open(sealed, s.deviceSecret)
		if err != nil {
			return "", fmt.Errorf("open token: %w", err)
		}
		return string(plain), nil
	}
	return value, nil
}

// SaveUser caches u. The token is stored separately and never inside the user blob.
func (s *SessionStore) SaveUser(u *model.User) error {
	if u == nil {
		return s.kv.Delete(KeyUser)
	}
	cp := *u
	cp.Token = ""
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.kv.Set(KeyUser, string(data))
}

// LoadUser returns the cached user, or nil if none.
func (s *SessionStore) LoadUser() (*model.User, error) {
	value, ok, err := s.kv.Get(KeyUser)
	if err != nil || !ok {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal([]byte(value), &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (s *SessionStore) SaveUnlockedAvatars(ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal unlocked avatars: %w", err)
	}
	return s.kv.Set(KeyUnlockedAvatars, string(data))
}

func (s *SessionStore) LoadUnlockedAvatars() ([]int64, error) {
	value, ok, err := s.kv.Get(KeyUnlockedAvatars)
	if err != nil || !ok {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal unlocked avatars: %w", err)
	}
	return ids, nil
}

func (s *SessionStore) SaveLastLogin(t time.Time) error {
	return s.kv.Set(KeyLastLogin, t.UTC().Format(time.RFC3339Nano))
}

// LoadLastLogin returns the zero time if no login was recorded.
func (s *SessionStore) LoadLastLogin() (time.Time, error) {
	value, ok, err := s.kv.Get(KeyLastLogin)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last login: %w", err)
	}
	return t, nil
}

// Save writes the whole session snapshot.
func (s *SessionStore) Save(sess model.Session) error {
	if err := s.SaveToken(sess.Token); err != nil {
		return err
	}
	if err := s.SaveUser(sess.User); err != nil {
		return err
	}
	if err := s.SaveUnlockedAvatars(sess.UnlockedAvatars); err != nil {
		return err
	}
	return s.SaveLastLogin(sess.LastLogin)
}

// Load returns the stored session, or nil if there is no token. A corrupt
// user or avatar entry is logged and dropped rather than failing the load.
func (s *SessionStore) Load() (*model.Session, error) {
	token, err := s.LoadToken()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	sess := &model.Session{Token: token}

	if sess.User, err = s.LoadUser(); err != nil {
		slog.Warn("discarding cached user", "error", err)
		sess.User = nil
	}
	if sess.UnlockedAvatars, err = s.LoadUnlockedAvatars(); err != nil {
		slog.Warn("discarding cached unlocked avatars", "error", err)
		sess.UnlockedAvatars = nil
	}
	if sess.LastLogin, err = s.LoadLastLogin(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Clear removes every session key.
func (s *SessionStore) Clear() error {
	return s.kv.Delete(KeyAuthToken, KeyUser, KeyUnlockedAvatars, KeyLastLogin)
}
