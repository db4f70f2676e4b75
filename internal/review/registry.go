package review

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNoSession is returned for an unknown session ID.
var ErrNoSession = errors.New("no such session")

// Registry tracks orchestrators by session ID for clients that address
// sessions across requests.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Orchestrator
	factory  func() *Orchestrator
}

// NewRegistry creates a registry that builds sessions with factory.
func NewRegistry(factory func() *Orchestrator) *Registry {
	return &Registry{
		sessions: make(map[string]*Orchestrator),
		factory:  factory,
	}
}

// Create starts a session and returns its ID.
func (r *Registry) Create() (string, *Orchestrator, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("generating session id: %w", err)
	}
	o := r.factory()

	r.mu.Lock()
	r.sessions[id.String()] = o
	r.mu.Unlock()
	return id.String(), o, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Orchestrator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return o, nil
}

// Delete ends a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
