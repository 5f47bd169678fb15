package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultMaxReconnects  = 5

	pingInterval = 30 * time.Second
	dialTimeout  = 10 * time.Second
	readLimit    = 64 << 10
)

// State is the relay connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateGaveUp       State = "gave_up"
	StateStopped      State = "stopped"
)

// Config holds the relay configuration.
type Config struct {
	URL            string
	Token          string
	ReconnectDelay time.Duration
	MaxReconnects  uint64
}

// Handler receives every decoded event, on the relay goroutine.
type Handler func(Event)

// StateCallback is called whenever the relay state changes.
type StateCallback func(State)

// Relay keeps a notification channel open to the backend and hands events to
// a Handler. A dropped connection is retried with a fixed delay; after
// MaxReconnects consecutive failures the relay gives up until started again.
type Relay struct {
	mu        sync.RWMutex
	cfg       Config
	handler   Handler
	callbacks []StateCallback
	state     State
	attempts  int
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRelay creates a stopped relay. Zero delay and retry values take the
// defaults.
func NewRelay(cfg Config, h Handler, logger *slog.Logger) *Relay {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = DefaultMaxReconnects
	}
	return &Relay{
		cfg:     cfg,
		handler: h,
		state:   StateDisconnected,
		logger:  logger,
	}
}

// OnState adds a state change callback. Callbacks run in registration order.
func (r *Relay) OnState(cb StateCallback) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, cb)
	r.mu.Unlock()
}

func (r *Relay) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Attempts returns the number of consecutive failed reconnect attempts.
func (r *Relay) Attempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attempts
}

// SetToken replaces the token used on the next dial.
func (r *Relay) SetToken(token string) {
	r.mu.Lock()
	r.cfg.Token = token
	r.mu.Unlock()
}

// Start launches the connection loop. No-op if already running.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return nil
	}
	if r.cfg.URL == "" {
		r.mu.Unlock()
		return errors.New("websocket url not configured")
	}
	childCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.attempts = 0
	done := r.done
	r.mu.Unlock()

	go r.run(childCtx, done)
	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		r.logger.Warn("relay stop timed out")
	}
}

// Wait blocks until the loop exits (stopped or gave up) or ctx ends.
func (r *Relay) Wait(ctx context.Context) error {
	r.mu.RLock()
	done := r.done
	r.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	r.state = s
	cbs := slices.Clone(r.callbacks)
	r.mu.Unlock()

	for _, cb := range cbs {
		cb(s)
	}
}

func (r *Relay) newBackoff() retry.Backoff {
	return retry.WithMaxRetries(r.cfg.MaxReconnects, retry.NewConstant(r.cfg.ReconnectDelay))
}

func (r *Relay) run(ctx context.Context, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		close(done)
		if r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
		r.mu.Unlock()
	}()

	r.setState(StateConnecting)
	conn, err := r.dial(ctx)
	backoff := r.newBackoff()

	for {
		if err == nil {
			r.mu.Lock()
			r.attempts = 0
			r.mu.Unlock()
			backoff = r.newBackoff()
			r.setState(StateConnected)
			r.logger.Info("notification channel connected")

			err = r.readLoop(ctx, conn)
			conn.CloseNow()
		}

		if ctx.Err() != nil {
			r.setState(StateStopped)
			return
		}

		delay, stop := backoff.Next()
		if stop {
			r.logger.Error("giving up on notification channel", "attempts", r.Attempts(), "error", err)
			r.setState(StateGaveUp)
			return
		}

		r.mu.Lock()
		r.attempts++
		attempt := r.attempts
		r.mu.Unlock()
		r.logger.Warn("notification channel lost, reconnecting", "attempt", attempt, "delay", delay, "error", err)
		r.setState(StateReconnecting)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.setState(StateStopped)
			return
		}

		conn, err = r.dial(ctx)
	}
}

func (r *Relay) dial(ctx context.Context) (*ws.Conn, error) {
	r.mu.RLock()
	rawURL := r.cfg.URL
	token := r.cfg.Token
	r.mu.RUnlock()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	opts := &ws.DialOptions{}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := ws.Dial(dialCtx, u.String(), opts)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// readLoop decodes messages until the connection fails. A ping goroutine
// detects stale connections.
func (r *Relay) readLoop(ctx context.Context, conn *ws.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go r.keepalive(ctx, conn)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != ws.MessageText {
			continue
		}

		ev, err := ParseEvent(data)
		if err != nil {
			r.logger.Warn("ignoring malformed event", "error", err)
			continue
		}
		r.logger.Debug("event received", "type", ev.Type)
		if r.handler != nil {
			r.handler(ev)
		}
	}
}

func (r *Relay) keepalive(ctx context.Context, conn *ws.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				conn.Close(ws.StatusGoingAway, "ping failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
