package proto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// Inbound is the envelope for events coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinChannel  = "join-channel"
	InboundTypeLeaveChannel = "leave-channel"
	InboundTypeSendMessage  = "send-message"
	InboundTypeHistory      = "messages-history"

	OutboundTypeMessageNew = "message-new"
	OutboundTypeAck        = "ack"
	OutboundTypeError      = "error"
)

// JoinChannelData requests live updates for a channel. Used for both
// join-channel and leave-channel.
type JoinChannelData struct {
	ChannelID uuid.UUID `json:"channelId"`
}

// SendMessageData is a message from the client. Exactly one of ChannelID
// and ReceiverID must be set.
type SendMessageData struct {
	Content    string     `json:"content"`
	ChannelID  *uuid.UUID `json:"channelId,omitempty"`
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
}

// HistoryData requests one page of channel history.
type HistoryData struct {
	ChannelID      uuid.UUID `json:"channelId"`
	Limit          int       `json:"limit,omitempty"`
	Offset         int       `json:"offset,omitempty"`
	AuthorUsername string    `json:"authorUsername,omitempty"`
	ContentQuery   string    `json:"contentQuery,omitempty"`
	MatchType      string    `json:"matchType,omitempty"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type    string `json:"type"`
	Op      string `json:"op,omitempty"` // which inbound type an ack answers
	Success *bool  `json:"success,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Total   *int   `json:"total,omitempty"`
	HasMore *bool  `json:"hasMore,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// MessagePayload is the wire shape of a persisted message. Live pushes and
// history items use the identical shape so clients can splice the two
// seamlessly.
type MessagePayload struct {
	ID         uuid.UUID    `json:"id"`
	Content    string       `json:"content"`
	AuthorID   uuid.UUID    `json:"authorId"`
	ChannelID  *uuid.UUID   `json:"channelId"`
	ReceiverID *uuid.UUID   `json:"receiverId"`
	IsRead     bool         `json:"isRead"`
	CreatedAt  time.Time    `json:"createdAt"`
	Author     store.Author `json:"author"`
}

// MessageFromStore converts a persisted message to its wire shape.
func MessageFromStore(msg *store.Message) MessagePayload {
	return MessagePayload{
		ID:         msg.ID,
		Content:    msg.Content,
		AuthorID:   msg.AuthorID,
		ChannelID:  msg.ChannelID,
		ReceiverID: msg.ReceiverID,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
		Author:     msg.Author,
	}
}

// MessagesFromStore converts a slice of persisted messages.
func MessagesFromStore(msgs []*store.Message) []MessagePayload {
	out := make([]MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageFromStore(m))
	}
	return out
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
