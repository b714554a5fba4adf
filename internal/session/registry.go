package session

import (
	"sync"

	"redlight-quiz/internal/domain"
)

// Registry tracks the running session per player, enforcing that one
// player holds at most one live session at a time.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add claims the player's slot. It fails if a session is already running.
func (r *Registry) Add(playerID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[playerID]; ok {
		return domain.ErrSessionInProgress
	}
	r.sessions[playerID] = s
	return nil
}

// Remove releases the player's slot.
func (r *Registry) Remove(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, playerID)
}

// Get returns the player's running session, if any.
func (r *Registry) Get(playerID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[playerID]
	return s, ok
}
