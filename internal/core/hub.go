package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatterbox-im/chatterbox-server/internal/metrics"
	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// opTimeout bounds store calls made from connection workers.
const opTimeout = 5 * time.Second

// dispatchBuffer bounds the queue between connection workers and the single
// fan-out loop.
const dispatchBuffer = 256

// Hub coordinates the session registry, room tracker and dispatcher. Each
// connection gets its own command worker; fan-out of persisted messages is
// serialized through Run so per-channel delivery order matches persistence
// order.
type Hub struct {
	sessions   *SessionRegistry
	rooms      *RoomTracker
	dispatcher *Dispatcher
	history    *HistoryService
	store      store.Store
	log        *zerolog.Logger

	// joinRequiresSubscription gates live joins on a durable subscription.
	// Off by default: live join is best-effort and idempotent.
	joinRequiresSubscription bool

	// sendMu spans persist and enqueue in handleSend so the dispatch queue
	// receives messages in commit order even when connection workers race.
	sendMu sync.Mutex

	dispatchCh chan *store.Message
	// stopped is closed when Run exits; workers stop enqueueing past it.
	stopped chan struct{}
}

// NewHub constructs the hub. st may be nil in tests that exercise only
// membership and registration semantics.
func NewHub(st store.Store, logger *zerolog.Logger, joinRequiresSubscription bool) *Hub {
	sessions := NewSessionRegistry()
	rooms := NewRoomTracker()
	return &Hub{
		sessions:                 sessions,
		rooms:                    rooms,
		dispatcher:               NewDispatcher(sessions, rooms, logger),
		history:                  NewHistoryService(st),
		store:                    st,
		log:                      logger,
		joinRequiresSubscription: joinRequiresSubscription,
		dispatchCh:               make(chan *store.Message, dispatchBuffer),
		stopped:                  make(chan struct{}),
	}
}

// Run consumes the dispatch queue until the context is cancelled. Must be
// running for messages to reach live recipients.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case msg := <-h.dispatchCh:
			h.dispatcher.Dispatch(msg)
		case <-ctx.Done():
			return
		}
	}
}

// Sessions exposes the session registry.
func (h *Hub) Sessions() *SessionRegistry {
	return h.sessions
}

// Rooms exposes the room tracker.
func (h *Hub) Rooms() *RoomTracker {
	return h.rooms
}

// History exposes the history service.
func (h *Hub) History() *HistoryService {
	return h.history
}

// RegisterClient adds the handle to the session registry and starts its
// command worker. The caller owns the transport loops; the hub owns command
// handling.
func (h *Hub) RegisterClient(c *Client) {
	h.sessions.Register(c)
	metrics.ActiveConnections.Inc()
	go h.commandLoop(c)

	if h.store != nil {
		go h.setOnline(c.User.ID, true)
	}

	h.log.Debug().Str("conn_id", c.ID).Str("user", c.User.Username).Msg("connection registered")
}

// UnregisterClient atomically removes the handle from the session registry
// and from every channel it observes. Idempotent: a second call (duplicate
// disconnect, idle reap racing an explicit close) is a no-op.
func (h *Hub) UnregisterClient(c *Client) {
	if !h.sessions.Unregister(c) {
		return
	}
	h.rooms.Purge(c)
	c.Close()
	close(c.Commands)
	metrics.ActiveConnections.Dec()

	if h.store != nil && !h.sessions.IsOnline(c.User.ID) {
		go h.setOnline(c.User.ID, false)
	}

	h.log.Debug().Str("conn_id", c.ID).Str("user", c.User.Username).Msg("connection unregistered")
}

func (h *Hub) setOnline(userID uuid.UUID, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := h.store.SetUserOnline(ctx, userID, online); err != nil {
		h.log.Warn().Err(err).Bool("online", online).Msg("failed to update online flag")
	}
}

func (h *Hub) commandLoop(c *Client) {
	for cmd := range c.Commands {
		h.handleCommand(c, cmd)
	}
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinChannel:
		h.handleJoin(c, cmd)
	case CommandLeaveChannel:
		h.handleLeave(c, cmd)
	case CommandSendMessage:
		h.handleSend(c, cmd)
	case CommandFetchHistory:
		h.handleHistory(c, cmd)
	default:
		h.push(c, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

// handleJoin subscribes the connection to live channel updates. No ack on
// success; the effect is live-only and idempotent.
func (h *Hub) handleJoin(c *Client, cmd *Command) {
	if cmd.ChannelID == nil {
		h.push(c, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "channel id is required")})
		return
	}

	if h.joinRequiresSubscription && h.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		subscribed, err := h.store.IsSubscribed(ctx, c.User.ID, *cmd.ChannelID)
		cancel()
		if err != nil {
			h.push(c, &Event{Kind: EventError, Error: coreError(ErrCodePersistence, "subscription check failed")})
			return
		}
		if !subscribed {
			h.push(c, &Event{Kind: EventError, Error: coreError(ErrCodeNotSubscribed, "join requires a channel subscription")})
			return
		}
	}

	h.rooms.Join(c, *cmd.ChannelID)
}

func (h *Hub) handleLeave(c *Client, cmd *Command) {
	if cmd.ChannelID == nil {
		h.push(c, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "channel id is required")})
		return
	}
	h.rooms.Leave(c, *cmd.ChannelID)
}

// handleSend validates, persists, acks, then hands the message to the
// serialized dispatch loop. Validation failures reject before any side
// effect; persistence failures abort the whole operation and no dispatch
// occurs. sendMu holds from the commit through the enqueue: without it two
// workers could commit in one order and enqueue in the other, and live
// members would see history inverted.
func (h *Hub) handleSend(c *Client, cmd *Command) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		h.ackSendError(c, coreError(ErrCodeValidation, "content is required"))
		return
	}
	if (cmd.ChannelID == nil) == (cmd.ReceiverID == nil) {
		h.ackSendError(c, coreError(ErrCodeValidation, "exactly one of channelId and receiverId is required"))
		return
	}
	if h.store == nil {
		h.ackSendError(c, coreError(ErrCodePersistence, "no persistence configured"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	msg, err := h.store.CreateMessage(ctx, store.NewMessage{
		Content:    content,
		AuthorID:   c.User.ID,
		ChannelID:  cmd.ChannelID,
		ReceiverID: cmd.ReceiverID,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrValidation):
			h.ackSendError(c, coreError(ErrCodeValidation, err.Error()))
		case errors.Is(err, store.ErrNotFound):
			h.ackSendError(c, coreError(ErrCodeNotFound, err.Error()))
		default:
			h.log.Error().Err(err).Str("conn_id", c.ID).Msg("persist message failed")
			h.ackSendError(c, coreError(ErrCodePersistence, "failed to persist message"))
		}
		return
	}

	h.push(c, &Event{Kind: EventSendAck, Message: msg})
	select {
	case h.dispatchCh <- msg:
	case <-h.stopped:
		// Shutdown raced the send; the message is persisted and acked but
		// there is no fan-out loop left to deliver it live.
		h.log.Warn().Str("conn_id", c.ID).Msg("dispatch queue stopped, skipping live delivery")
	}
}

func (h *Hub) handleHistory(c *Client, cmd *Command) {
	if cmd.ChannelID == nil {
		h.push(c, &Event{Kind: EventHistoryPage, Error: coreError(ErrCodeBadRequest, "channel id is required")})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	page, err := h.history.FetchPage(ctx, *cmd.ChannelID, cmd.History)
	if err != nil {
		h.log.Error().Err(err).Str("conn_id", c.ID).Msg("history query failed")
		h.push(c, &Event{Kind: EventHistoryPage, ChannelID: cmd.ChannelID, Error: coreError(ErrCodePersistence, "history query failed")})
		return
	}

	h.push(c, &Event{Kind: EventHistoryPage, ChannelID: cmd.ChannelID, Page: page})
}

func (h *Hub) ackSendError(c *Client, cerr *CoreError) {
	h.push(c, &Event{Kind: EventSendAck, Error: cerr})
}

// push delivers an event to a single connection, dropping it if the
// connection is closed or backed up.
func (h *Hub) push(c *Client, ev *Event) {
	if !c.TrySend(ev) {
		metrics.EventsDropped.Inc()
		h.log.Warn().Str("conn_id", c.ID).Msg("dropped event for slow or closed connection")
	}
}
