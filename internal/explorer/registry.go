package explorer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Registry holds the live sessions, one per open page.
type Registry struct {
	explorer *Explorer
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*registryEntry
}

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// NewRegistry creates an empty registry. Sessions are created through x so
// they pick up its default limit.
func NewRegistry(x *Explorer, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		explorer: x,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*registryEntry),
	}
}

// Create registers a new session under a random ID.
func (r *Registry) Create() *Session {
	s := r.explorer.NewSession(uuid.NewString())

	r.mu.Lock()
	r.sessions[s.ID()] = &registryEntry{session: s, lastSeen: r.clock.Now()}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SessionsActive.Set(float64(n))
	return s
}

// Get returns the session and marks it as recently used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = r.clock.Now()
	return e.session, nil
}

// Delete drops a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SessionsActive.Set(float64(n))
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many went.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.clock.Now().Add(-maxIdle)

	r.mu.Lock()
	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SessionsActive.Set(float64(n))
	return removed
}

// RunSweeper sweeps idle sessions every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := r.Sweep(maxIdle); n > 0 {
				r.logger.Info("expired idle sessions", "count", n, "max_idle", maxIdle)
			}
		}
	}
}
