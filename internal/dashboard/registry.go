package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Factory builds the controller for a new session id.
type Factory func(id string) *Controller

// Registry holds the live dashboard sessions keyed by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Controller
	factory  Factory
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{sessions: make(map[string]*Controller), factory: factory}
}

// Create starts a session with a fresh id.
func (r *Registry) Create() *Controller {
	return r.add(uuid.NewString())
}

// Get returns a session by id.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	return c, ok
}

// Ensure returns the session for id, creating it if id is a well-formed but
// unknown uuid (e.g. after a server restart). Any other id gets a new session.
func (r *Registry) Ensure(id string) *Controller {
	if c, ok := r.Get(id); ok {
		return c
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return r.Create()
	}
	return r.add(parsed.String())
}

func (r *Registry) add(id string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[id]; ok {
		return c
	}
	c := r.factory(id)
	r.sessions[id] = c
	return c
}

// Each calls fn for every session.
func (r *Registry) Each(fn func(*Controller)) {
	r.mu.RLock()
	sessions := make([]*Controller, 0, len(r.sessions))
	for _, c := range r.sessions {
		sessions = append(sessions, c)
	}
	r.mu.RUnlock()

	for _, c := range sessions {
		fn(c)
	}
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Prune drops sessions idle since before cutoff and returns how many.
func (r *Registry) Prune(cutoff time.Time) int {
	var stale []string
	r.Each(func(c *Controller) {
		if c.LastSeen().Before(cutoff) {
			stale = append(stale, c.ID())
		}
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range stale {
		delete(r.sessions, id)
	}
	return len(stale)
}
