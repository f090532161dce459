package core

import (
	"testing"

	"github.com/google/uuid"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

func TestDispatchChannelMessageExactlyOncePerMember(t *testing.T) {
	sessions := NewSessionRegistry()
	rooms := NewRoomTracker()
	d := NewDispatcher(sessions, rooms, testLogger())

	channelID := uuid.New()
	members := make([]*Client, 3)
	for i := range members {
		members[i] = newHandle(uuid.New(), "c")
		sessions.Register(members[i])
		rooms.Join(members[i], channelID)
	}

	// One connected user who never joined the channel.
	outsider := newHandle(uuid.New(), "o")
	sessions.Register(outsider)

	msg := &store.Message{ID: uuid.New(), ChannelID: &channelID, AuthorID: members[0].User.ID}
	if delivered := d.Dispatch(msg); delivered != 3 {
		t.Fatalf("expected 3 deliveries, got %d", delivered)
	}

	for i, c := range members {
		select {
		case ev := <-c.Events:
			if ev.Kind != EventMessageNew || ev.Message.ID != msg.ID {
				t.Fatalf("member %d received wrong event: %+v", i, ev)
			}
		default:
			t.Fatalf("member %d received nothing", i)
		}
		select {
		case ev := <-c.Events:
			t.Fatalf("member %d received a duplicate: %+v", i, ev)
		default:
		}
	}

	select {
	case ev := <-outsider.Events:
		t.Fatalf("outsider received an event: %+v", ev)
	default:
	}
}

func TestDispatchDirectMessageUnionOfSessions(t *testing.T) {
	sessions := NewSessionRegistry()
	rooms := NewRoomTracker()
	d := NewDispatcher(sessions, rooms, testLogger())

	authorID := uuid.New()
	receiverID := uuid.New()

	authorA := newHandle(authorID, "a1")
	authorB := newHandle(authorID, "a2")
	receiver := newHandle(receiverID, "r1")
	bystander := newHandle(uuid.New(), "x")
	for _, c := range []*Client{authorA, authorB, receiver, bystander} {
		sessions.Register(c)
	}

	msg := &store.Message{ID: uuid.New(), AuthorID: authorID, ReceiverID: &receiverID}
	if delivered := d.Dispatch(msg); delivered != 3 {
		t.Fatalf("expected 3 deliveries, got %d", delivered)
	}

	for _, c := range []*Client{authorA, authorB, receiver} {
		select {
		case ev := <-c.Events:
			if ev.Kind != EventMessageNew {
				t.Fatalf("unexpected event kind: %v", ev.Kind)
			}
		default:
			t.Fatalf("handle %s received nothing", c.ID)
		}
	}
	select {
	case ev := <-bystander.Events:
		t.Fatalf("bystander received an event: %+v", ev)
	default:
	}
}

func TestDispatchSelfDirectMessageDeliveredOnce(t *testing.T) {
	sessions := NewSessionRegistry()
	rooms := NewRoomTracker()
	d := NewDispatcher(sessions, rooms, testLogger())

	userID := uuid.New()
	c := newHandle(userID, "c1")
	sessions.Register(c)

	// Author and receiver are the same user; the union must dedupe.
	msg := &store.Message{ID: uuid.New(), AuthorID: userID, ReceiverID: &userID}
	if delivered := d.Dispatch(msg); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}

	<-c.Events
	select {
	case ev := <-c.Events:
		t.Fatalf("received a duplicate: %+v", ev)
	default:
	}
}

func TestDispatchSkipsClosedAndBackedUpHandles(t *testing.T) {
	sessions := NewSessionRegistry()
	rooms := NewRoomTracker()
	d := NewDispatcher(sessions, rooms, testLogger())

	channelID := uuid.New()

	healthy := newHandle(uuid.New(), "ok")
	closed := newHandle(uuid.New(), "closed")
	full := NewClient("full", store.Author{ID: uuid.New()}, 1)
	for _, c := range []*Client{healthy, closed, full} {
		sessions.Register(c)
		rooms.Join(c, channelID)
	}

	closed.Close()
	full.Events <- &Event{Kind: EventError} // saturate the buffer

	msg := &store.Message{ID: uuid.New(), ChannelID: &channelID, AuthorID: healthy.User.ID}
	if delivered := d.Dispatch(msg); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}

	select {
	case ev := <-healthy.Events:
		if ev.Kind != EventMessageNew {
			t.Fatalf("unexpected event kind: %v", ev.Kind)
		}
	default:
		t.Fatal("healthy handle received nothing")
	}
}

func TestDispatchNoRecipientsSucceeds(t *testing.T) {
	sessions := NewSessionRegistry()
	rooms := NewRoomTracker()
	d := NewDispatcher(sessions, rooms, testLogger())

	channelID := uuid.New()
	msg := &store.Message{ID: uuid.New(), ChannelID: &channelID, AuthorID: uuid.New()}
	if delivered := d.Dispatch(msg); delivered != 0 {
		t.Fatalf("expected 0 deliveries, got %d", delivered)
	}
}
