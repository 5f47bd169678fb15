package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/database"
	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/store"
	"github.com/dukerupert/taskhero/internal/token"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeBackend is an in-memory stand-in for the REST API.
type fakeBackend struct {
	mu      sync.Mutex
	user    model.User
	goals   map[int64]model.Goal
	tasks   map[int64]model.Task
	avatars []model.Avatar
	badges  []model.Badge
	nextID  int64
	// staleToggle makes the toggle endpoint return the task unchanged.
	staleToggle bool
	// push is sent to every notification channel client after it connects.
	push []string
	// fail maps "METHOD /path" patterns to a forced status code.
	fail  map[string]int
	calls map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		user:   model.User{ID: 7, Name: "Ana", Email: "ana@example.com", Coins: 200},
		goals:  make(map[int64]model.Goal),
		tasks:  make(map[int64]model.Task),
		nextID: 100,
		fail:   make(map[string]int),
		calls:  make(map[string]int),
	}
}

func (f *fakeBackend) failWith(pattern string, status int) {
	f.mu.Lock()
	f.fail[pattern] = status
	f.mu.Unlock()
}

func (f *fakeBackend) callCount(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pattern]
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h func(w http.ResponseWriter, r *http.Request)) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.calls[pattern]++
			status, failing := f.fail[pattern]
			f.mu.Unlock()
			if failing {
				writeJSON(w, status, map[string]string{"error": "forced failure"})
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			h(w, r)
		})
	}

	route("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, client.AuthResponse{Token: "opaque", User: f.user})
	})
	route("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.user)
	})
	route("GET /goals", func(w http.ResponseWriter, r *http.Request) {
		out := []model.Goal{}
		for _, g := range f.goals {
			out = append(out, g)
		}
		writeJSON(w, http.StatusOK, out)
	})
	route("POST /goals", func(w http.ResponseWriter, r *http.Request) {
		var in client.GoalInput
		json.NewDecoder(r.Body).Decode(&in)
		f.nextID++
		g := model.Goal{ID: f.nextID, Title: in.Title, Description: in.Description, StartDate: in.StartDate, EndDate: in.EndDate}
		f.goals[g.ID] = g
		writeJSON(w, http.StatusCreated, g)
	})
	route("DELETE /goals/{id}", func(w http.ResponseWriter, r *http.Request) {
		delete(f.goals, pathID(r))
		w.WriteHeader(http.StatusNoContent)
	})
	route("POST /goals/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		g := f.goals[pathID(r)]
		g.Status = "completed"
		f.goals[g.ID] = g
		writeJSON(w, http.StatusOK, g)
	})
	route("GET /goals/{id}/tasks", func(w http.ResponseWriter, r *http.Request) {
		out := []model.Task{}
		for _, t := range f.tasks {
			if t.GoalID == pathID(r) {
				out = append(out, t)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
	route("POST /goals/{id}/tasks", func(w http.ResponseWriter, r *http.Request) {
		var in client.TaskInput
		json.NewDecoder(r.Body).Decode(&in)
		f.nextID++
		t := model.Task{ID: f.nextID, GoalID: pathID(r), Title: in.Title, Priority: in.Priority}
		f.tasks[t.ID] = t
		writeJSON(w, http.StatusCreated, t)
	})
	route("PATCH /tasks/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		t := f.tasks[pathID(r)]
		if !f.staleToggle {
			t.Completed = !t.Completed
			f.tasks[t.ID] = t
		}
		writeJSON(w, http.StatusOK, t)
	})
	route("PUT /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in client.TaskInput
		json.NewDecoder(r.Body).Decode(&in)
		t := f.tasks[pathID(r)]
		t.Title, t.Priority = in.Title, in.Priority
		f.tasks[t.ID] = t
		writeJSON(w, http.StatusOK, t)
	})
	route("DELETE /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		delete(f.tasks, pathID(r))
		w.WriteHeader(http.StatusNoContent)
	})
	route("PUT /goals/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in client.GoalInput
		json.NewDecoder(r.Body).Decode(&in)
		g := f.goals[pathID(r)]
		g.Title, g.Description, g.StartDate, g.EndDate = in.Title, in.Description, in.StartDate, in.EndDate
		f.goals[g.ID] = g
		writeJSON(w, http.StatusOK, g)
	})
	route("GET /avatars", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.avatars)
	})
	route("POST /avatars/{id}/purchase", func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r)
		for _, a := range f.avatars {
			if a.ID == id {
				f.user.Coins -= a.Price
			}
		}
		writeJSON(w, http.StatusOK, client.PurchaseResponse{AvatarID: id, TaskCoins: f.user.Coins})
	})
	route("PUT /users/me/avatar", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	route("GET /badges", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.badges)
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		push := slices.Clone(f.push)
		f.mu.Unlock()
		for _, msg := range push {
			conn.Write(r.Context(), ws.MessageText, []byte(msg))
		}
		<-conn.CloseRead(r.Context()).Done()
	})
	return mux
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func setupTestStore(t *testing.T) *store.SessionStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(store.NewKVStore(db), "")
}

func setupTestSession(t *testing.T, f *fakeBackend) (*Session, *store.SessionStore) {
	t.Helper()
	return setupTestSessionWith(t, f, Config{})
}

// setupTestSessionWith starts the fake backend and builds a session. An empty
// cfg.WSURL is pointed at the backend's notification endpoint.
func setupTestSessionWith(t *testing.T, f *fakeBackend, cfg Config) (*Session, *store.SessionStore) {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	if cfg.WSURL == "" {
		cfg.WSURL = "ws://" + strings.TrimPrefix(server.URL, "http://") + "/ws"
	}
	st := setupTestStore(t)
	api := client.New(client.Config{BaseURL: server.URL})
	s := New(api, st, cfg, discard)
	t.Cleanup(s.Close)
	return s, st
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// signIn logs the fake user in and returns the session.
func signIn(t *testing.T, s *Session) {
	t.Helper()
	if _, err := s.Auth.Login(t.Context(), "ana@example.com", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func signedToken(t *testing.T, c token.Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func hasToast(s *Session, msg string) bool {
	for _, ts := range s.Toasts.List() {
		if ts.Message == msg {
			return true
		}
	}
	return false
}

func future(d time.Duration) time.Time { return time.Now().Add(d) }
