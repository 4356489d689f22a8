package session

import (
	"errors"
	"sync"
	"time"
)

var ErrNotOwner = errors.New("session belongs to another user")

type entry struct {
	c     *Controller
	owner string
}

// Registry holds the live controllers of a long running process, keyed by
// session id, and remembers which user opened each one.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}, now: time.Now}
}

// Open returns the controller for sessionID, creating it with create when
// none is registered. create runs without the registry lock; if another
// caller registered the session meanwhile, the fresh controller is closed
// and the existing one returned.
func (r *Registry) Open(owner, sessionID string, create func() (*Controller, error)) (*Controller, error) {
	if c, err := r.Get(owner, sessionID); err == nil || !errors.Is(err, errNotRegistered) {
		return c, err
	}
	c, err := create()
	if err != nil {
		return nil, err
	}
	return r.Add(owner, c)
}

var errNotRegistered = errors.New("session not registered")

// Add registers c. An existing controller for the same session wins.
func (r *Registry) Add(owner string, c *Controller) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[c.SessionID()]; ok {
		if e.c != c {
			c.Close()
		}
		if e.owner != owner {
			return nil, ErrNotOwner
		}
		return e.c, nil
	}
	r.entries[c.SessionID()] = entry{c: c, owner: owner}
	return c, nil
}

// Get returns the registered controller if owner opened it.
func (r *Registry) Get(owner, sessionID string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, errNotRegistered
	}
	if e.owner != owner {
		return nil, ErrNotOwner
	}
	return e.c, nil
}

// IsNotRegistered reports whether err came from an unknown session id.
func IsNotRegistered(err error) bool { return errors.Is(err, errNotRegistered) }

// Drop closes and forgets the controller. It reports whether one existed.
func (r *Registry) Drop(sessionID string) bool {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()
	if ok {
		e.c.Close()
	}
	return ok
}

// Sweep drops controllers that finished more than olderThan ago and
// returns how many it removed.
func (r *Registry) Sweep(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)
	var stale []*Controller
	r.mu.Lock()
	for id, e := range r.entries {
		if at := e.c.FinishedAt(); !at.IsZero() && at.Before(cutoff) {
			stale = append(stale, e.c)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()
	for _, c := range stale {
		c.Close()
	}
	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll closes every controller, saving unfinished progress.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.entries
	r.entries = map[string]entry{}
	r.mu.Unlock()
	for _, e := range all {
		e.c.Close()
	}
}
