package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"calbridge/internal/instrumentation"
)

// DefaultSessionTimeout is how long an idle session is kept before it is
// considered gone.
const DefaultSessionTimeout = 24 * time.Hour

// SessionTracker tracks active client sessions, keyed by a hash of the
// Bearer credential. The MCP endpoint is stateless per request; the tracker
// exists so the active-sessions gauge reflects how many distinct users are
// currently talking to this instance. Per session only the last access time
// is kept, for idle expiry.
type SessionTracker struct {
	sessions       map[string]time.Time
	mu             sync.Mutex
	cleanupTicker  *time.Ticker
	cleanupDone    chan bool
	sessionTimeout time.Duration
	metrics        *instrumentation.Metrics
	logger         *slog.Logger
}

// NewSessionTracker creates a session tracker with the default timeout.
func NewSessionTracker(metrics *instrumentation.Metrics) *SessionTracker {
	return NewSessionTrackerWithTimeout(DefaultSessionTimeout, metrics, slog.Default())
}

// NewSessionTrackerWithTimeout creates a session tracker with a custom
// timeout and logger. A background goroutine expires idle sessions; Stop
// stops it.
func NewSessionTrackerWithTimeout(timeout time.Duration, metrics *instrumentation.Metrics, logger *slog.Logger) *SessionTracker {
	if logger == nil {
		logger = slog.Default()
	}

	t := &SessionTracker{
		sessions:       make(map[string]time.Time),
		cleanupTicker:  time.NewTicker(10 * time.Minute),
		cleanupDone:    make(chan bool),
		sessionTimeout: timeout,
		metrics:        metrics,
		logger:         logger,
	}

	go t.cleanupExpiredSessions()

	return t
}

// Track is middleware that records the session behind each request.
// It must run inside the OAuth middleware so only authenticated requests
// count.
func (t *SessionTracker) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			t.touch(r, sessionID(authHeader))
		}
		next.ServeHTTP(w, r)
	})
}

// touch marks a session as active, creating it if needed.
func (t *SessionTracker) touch(r *http.Request, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, known := t.sessions[id]
	t.sessions[id] = time.Now()
	if !known && t.metrics != nil {
		t.metrics.IncrementActiveSessions(r.Context())
	}
}

// ActiveSessions returns how many sessions are currently tracked.
func (t *SessionTracker) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// sessionID creates a stable session ID from the auth credential.
func sessionID(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// cleanupExpiredSessions periodically removes idle sessions.
func (t *SessionTracker) cleanupExpiredSessions() {
	for {
		select {
		case <-t.cleanupTicker.C:
			t.mu.Lock()
			now := time.Now()
			expiredCount := 0
			for id, lastAccess := range t.sessions {
				if now.Sub(lastAccess) > t.sessionTimeout {
					delete(t.sessions, id)
					expiredCount++
					if t.metrics != nil {
						t.metrics.DecrementActiveSessions(context.Background())
					}
				}
			}
			t.mu.Unlock()
			if expiredCount > 0 {
				t.logger.Info("expired idle sessions", "count", expiredCount)
			}
		case <-t.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine
func (t *SessionTracker) Stop() {
	if t.cleanupTicker != nil {
		t.cleanupTicker.Stop()
	}
	if t.cleanupDone != nil {
		close(t.cleanupDone)
	}
}
