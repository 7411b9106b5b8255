package session

import (
	"fmt"
	"sync"
)

// Registry hands out one GateSession per (event, gate) pair so a single
// process can serve many gates while each gate stays serialized.
type Registry struct {
	validator ValidatorLayer
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*GateSession
	online   bool
}

func NewRegistry(validator ValidatorLayer, cfg Config) *Registry {
	return &Registry{
		validator: validator,
		cfg:       cfg,
		sessions:  make(map[string]*GateSession),
		online:    true,
	}
}

func sessionKey(eventID, gateID string) string {
	return fmt.Sprintf("%s:%s", eventID, gateID)
}

// Get returns the session for a gate, creating it on first use.
func (r *Registry) Get(eventID, gateID string) *GateSession {
	key := sessionKey(eventID, gateID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := New(eventID, gateID, r.validator, r.cfg)
	// A gate coming up during an outage starts offline like everyone else.
	s.SetOnline(r.online)
	r.sessions[key] = s
	return s
}

// Remove ends and drops a session; used by the operator "end session" action.
func (r *Registry) Remove(eventID, gateID string) {
	key := sessionKey(eventID, gateID)

	r.mu.Lock()
	s, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if ok {
		s.End()
	}
}

// SetAllOnline propagates a connectivity transition to every live session.
func (r *Registry) SetAllOnline(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = online
	for _, s := range r.sessions {
		s.SetOnline(online)
	}
}
