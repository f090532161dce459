package core

import (
	"sync"

	"github.com/google/uuid"
)

// RoomTracker maps channel identifiers to the connection handles currently
// observing them for live updates. This is ephemeral connection-scoped state,
// independent of durable channel subscriptions.
type RoomTracker struct {
	mu       sync.RWMutex
	members  map[uuid.UUID]map[*Client]struct{}
	observed map[*Client]map[uuid.UUID]struct{}
}

// NewRoomTracker constructs an empty tracker.
func NewRoomTracker() *RoomTracker {
	return &RoomTracker{
		members:  make(map[uuid.UUID]map[*Client]struct{}),
		observed: make(map[*Client]map[uuid.UUID]struct{}),
	}
}

// Join adds a handle to a channel's member set. Idempotent: joining twice
// yields the same membership as joining once. Returns true if newly added.
func (t *RoomTracker) Join(c *Client, channelID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.members[channelID]
	if !ok {
		set = make(map[*Client]struct{})
		t.members[channelID] = set
	}
	if _, ok := set[c]; ok {
		return false
	}
	set[c] = struct{}{}

	obs, ok := t.observed[c]
	if !ok {
		obs = make(map[uuid.UUID]struct{})
		t.observed[c] = obs
	}
	obs[channelID] = struct{}{}
	return true
}

// Leave removes a handle from a channel's member set. Leaving a channel the
// handle never joined is a no-op. Returns true if removed.
func (t *RoomTracker) Leave(c *Client, channelID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(c, channelID)
}

func (t *RoomTracker) leaveLocked(c *Client, channelID uuid.UUID) bool {
	set, ok := t.members[channelID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(t.members, channelID)
	}
	if obs, ok := t.observed[c]; ok {
		delete(obs, channelID)
		if len(obs) == 0 {
			delete(t.observed, c)
		}
	}
	return true
}

// MembersOf returns a snapshot of the handles observing a channel.
func (t *RoomTracker) MembersOf(channelID uuid.UUID) []*Client {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.members[channelID]
	if len(set) == 0 {
		return nil
	}
	handles := make([]*Client, 0, len(set))
	for c := range set {
		handles = append(handles, c)
	}
	return handles
}

// IsMember reports whether the handle currently observes the channel.
func (t *RoomTracker) IsMember(c *Client, channelID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.members[channelID][c]
	return ok
}

// Observing returns a snapshot of the channels the handle observes.
func (t *RoomTracker) Observing(c *Client) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	obs := t.observed[c]
	if len(obs) == 0 {
		return nil
	}
	channels := make([]uuid.UUID, 0, len(obs))
	for id := range obs {
		channels = append(channels, id)
	}
	return channels
}

// Purge removes the handle from every channel it observes. Called on
// disconnect so no channel entry keeps a dangling reference.
func (t *RoomTracker) Purge(c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for channelID := range t.observed[c] {
		set := t.members[channelID]
		delete(set, c)
		if len(set) == 0 {
			delete(t.members, channelID)
		}
	}
	delete(t.observed, c)
}
