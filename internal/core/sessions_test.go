package core

import (
	"testing"

	"github.com/google/uuid"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

func newHandle(userID uuid.UUID, connID string) *Client {
	return NewClient(connID, store.Author{ID: userID, Username: "user"}, 0)
}

func TestSessionRegistryMultipleSessionsPerUser(t *testing.T) {
	reg := NewSessionRegistry()
	userID := uuid.New()

	first := newHandle(userID, "c1")
	second := newHandle(userID, "c2")

	reg.Register(first)
	reg.Register(second)

	if got := len(reg.HandlesFor(userID)); got != 2 {
		t.Fatalf("expected 2 handles, got %d", got)
	}
	if !reg.IsOnline(userID) {
		t.Fatal("expected user to be online")
	}

	if !reg.Unregister(first) {
		t.Fatal("first unregister should report removal")
	}
	if !reg.IsOnline(userID) {
		t.Fatal("user should stay online while a session remains")
	}

	if !reg.Unregister(second) {
		t.Fatal("second handle unregister should report removal")
	}
	if reg.IsOnline(userID) {
		t.Fatal("user should be offline after last session closes")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d handles", reg.Len())
	}
}

func TestSessionRegistryUnregisterIsIdempotent(t *testing.T) {
	reg := NewSessionRegistry()
	c := newHandle(uuid.New(), "c1")

	reg.Register(c)
	if !reg.Unregister(c) {
		t.Fatal("first unregister should report removal")
	}
	if reg.Unregister(c) {
		t.Fatal("second unregister should be a no-op")
	}

	// Unknown handle is also a no-op.
	if reg.Unregister(newHandle(uuid.New(), "ghost")) {
		t.Fatal("unregistering an unknown handle should be a no-op")
	}
}

func TestSessionRegistryHandlesForUnknownUser(t *testing.T) {
	reg := NewSessionRegistry()

	if handles := reg.HandlesFor(uuid.New()); handles != nil {
		t.Fatalf("expected nil handles for unknown user, got %v", handles)
	}
	if reg.IsOnline(uuid.New()) {
		t.Fatal("unknown user should not be online")
	}
}
