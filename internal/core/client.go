package core

import (
	"sync"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// Client is one live connection handle. A user may own several clients at
// once (multiple tabs); the session registry owns that mapping.
type Client struct {
	// ID uniquely identifies this handle, not the user.
	ID   string
	User store.Author

	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a connection handle bound to an authenticated user.
// eventBuffer bounds the outbound event queue; a full queue drops pushes
// rather than blocking the dispatcher.
func NewClient(id string, user store.Author, eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = 8
	}
	return &Client{
		ID:       id,
		User:     user,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

// TrySend pushes an event without blocking. Returns false when the handle is
// closed or its buffer is full; the caller treats that as an isolated
// delivery failure for this one recipient.
func (c *Client) TrySend(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close marks the handle dead. Events is intentionally never closed; the
// write loop exits via Done instead, so late dispatches cannot panic.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the handle has been shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
