package core

import (
	"github.com/google/uuid"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventMessageNew delivers a newly persisted message to a recipient.
	EventMessageNew EventKind = iota
	// EventSendAck acknowledges a send-message request, success or failure.
	EventSendAck
	// EventHistoryPage acknowledges a history request with one page.
	EventHistoryPage
	// EventError reports a domain error outside of a request/ack pair.
	EventError
)

// Event is sent to connections to describe what happened.
type Event struct {
	Kind      EventKind
	Message   *store.Message // EventMessageNew and successful EventSendAck
	ChannelID *uuid.UUID     // EventHistoryPage
	Page      *Page          // successful EventHistoryPage
	Error     *CoreError     // failed acks and EventError
}
