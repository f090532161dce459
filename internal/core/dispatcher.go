package core

import (
	"github.com/rs/zerolog"

	"github.com/chatterbox-im/chatterbox-server/internal/metrics"
	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// Dispatcher resolves the exact set of live connections a persisted message
// must reach and pushes to each exactly once. Pushes are fire-and-forget per
// handle: one slow or dead connection never blocks the others, and the
// message is already durable before fan-out begins.
type Dispatcher struct {
	sessions *SessionRegistry
	rooms    *RoomTracker
	log      *zerolog.Logger
}

// NewDispatcher constructs a dispatcher over the shared registries.
func NewDispatcher(sessions *SessionRegistry, rooms *RoomTracker, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		rooms:    rooms,
		log:      logger,
	}
}

// Dispatch pushes the message to every resolved recipient and returns the
// number of successful deliveries. Zero recipients is success: the message
// remains discoverable via history.
func (d *Dispatcher) Dispatch(msg *store.Message) int {
	recipients := d.resolve(msg)

	ev := &Event{Kind: EventMessageNew, Message: msg}
	delivered := 0
	for _, c := range recipients {
		if c.TrySend(ev) {
			delivered++
			continue
		}
		metrics.EventsDropped.Inc()
		d.log.Warn().
			Str("conn_id", c.ID).
			Str("message_id", msg.ID.String()).
			Msg("dropped event for slow or closed connection")
	}

	metrics.MessagesDispatched.Inc()
	return delivered
}

// resolve computes the recipient set. Channel messages go to the channel's
// live members; direct messages go to every session of the receiver and of
// the author, so a sender's other tabs see their own sent message. The two
// paths are exclusive, mirroring the message's addressing invariant.
func (d *Dispatcher) resolve(msg *store.Message) []*Client {
	if msg.ChannelID != nil {
		return d.rooms.MembersOf(*msg.ChannelID)
	}

	seen := make(map[*Client]struct{})
	var recipients []*Client
	for _, c := range d.sessions.HandlesFor(*msg.ReceiverID) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			recipients = append(recipients, c)
		}
	}
	for _, c := range d.sessions.HandlesFor(msg.AuthorID) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			recipients = append(recipients, c)
		}
	}
	return recipients
}
