package core

import "github.com/google/uuid"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinChannel subscribes the connection to live channel updates.
	CommandJoinChannel CommandKind = iota
	// CommandLeaveChannel unsubscribes the connection from a channel.
	CommandLeaveChannel
	// CommandSendMessage persists a message and fans it out.
	CommandSendMessage
	// CommandFetchHistory serves one page of channel history.
	CommandFetchHistory
)

// Command represents an action requested by a connection. For
// CommandSendMessage exactly one of ChannelID and ReceiverID must be set;
// the hub rejects anything else before persistence.
type Command struct {
	Kind       CommandKind
	ChannelID  *uuid.UUID
	ReceiverID *uuid.UUID
	Content    string
	History    PageRequest
}
