package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
	"github.com/chatterbox-im/chatterbox-server/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createTestUser(t *testing.T, st store.Store, username string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func createTestChannel(t *testing.T, st store.Store, name string, creator *store.User) *store.Channel {
	t.Helper()

	ch, err := st.CreateChannel(context.Background(), name, "", creator.ID)
	if err != nil {
		t.Fatalf("failed to create channel %s: %v", name, err)
	}
	return ch
}

func testLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

func clientFor(user *store.User, connID string) *Client {
	return NewClient(connID, store.Author{
		ID:       user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
	}, 0)
}
