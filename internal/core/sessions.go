package core

import (
	"sync"

	"github.com/google/uuid"
)

// SessionRegistry maps online user identities to their live connection
// handles. All operations are in-memory atomic steps; the lock is never held
// across persistence or pushes.
type SessionRegistry struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]map[*Client]struct{}
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser: make(map[uuid.UUID]map[*Client]struct{}),
	}
}

// Register adds a handle to its user's set.
func (r *SessionRegistry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byUser[c.User.ID]
	if !ok {
		set = make(map[*Client]struct{})
		r.byUser[c.User.ID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a handle from its user's set. Idempotent: removing an
// unknown handle is a no-op, guarding against duplicate disconnect events.
// Returns true only on the first removal.
func (r *SessionRegistry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byUser[c.User.ID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.byUser, c.User.ID)
	}
	return true
}

// HandlesFor returns a snapshot of the user's live handles. Used to fan out
// direct messages to every one of a user's sessions.
func (r *SessionRegistry) HandlesFor(userID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	if len(set) == 0 {
		return nil
	}
	handles := make([]*Client, 0, len(set))
	for c := range set {
		handles = append(handles, c)
	}
	return handles
}

// IsOnline reports whether the user has at least one live handle.
func (r *SessionRegistry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Len returns the number of live handles across all users.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.byUser {
		n += len(set)
	}
	return n
}
