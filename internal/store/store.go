package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Content and naming bounds enforced at the persistence boundary.
const (
	MaxContentLength     = 2000
	MaxChannelNameLength = 50
	MinChannelNameLength = 2
	MaxDescriptionLength = 200
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when input violates a persistence invariant.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("already exists")
)

// User represents a registered user.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Avatar       string
	PasswordHash string
	IsOnline     bool
	CreatedAt    time.Time
}

// Author is the display subset of a user embedded in message payloads.
type Author struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
}

// Channel is a named durable group conversation target.
type Channel struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	Creator     *Author
	Subscribers []Author
}

// Message is a persisted chat message. Exactly one of ChannelID and
// ReceiverID is set: a message targets a channel or a direct peer, never
// both and never neither.
type Message struct {
	ID         uuid.UUID
	Content    string
	AuthorID   uuid.UUID
	ChannelID  *uuid.UUID
	ReceiverID *uuid.UUID
	IsRead     bool
	CreatedAt  time.Time
	Author     Author
}

// Subscription records that a user has durably joined a channel. It affects
// channel listings, not live delivery.
type Subscription struct {
	UserID    uuid.UUID
	ChannelID uuid.UUID
	CreatedAt time.Time
}

// MatchType selects how a content filter is applied.
type MatchType string

const (
	MatchSubstring MatchType = "substring"
	MatchPrefix    MatchType = "prefix"
	MatchSuffix    MatchType = "suffix"
	MatchExact     MatchType = "exact"
)

// MessageQuery describes a filtered, paged channel history read. Limit and
// Offset are assumed to be normalized by the caller; filters are
// case-insensitive. An empty ContentQuery means no content filter.
type MessageQuery struct {
	ChannelID      uuid.UUID
	Limit          int
	Offset         int
	AuthorUsername string
	ContentQuery   string
	MatchType      MatchType
}

// NewMessage holds the fields for a message create.
type NewMessage struct {
	Content    string
	AuthorID   uuid.UUID
	ChannelID  *uuid.UUID
	ReceiverID *uuid.UUID
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a user with a pre-hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// SetUserOnline updates the user's stored online flag.
	SetUserOnline(ctx context.Context, id uuid.UUID, online bool) error

	// ListUsers lists all users, newest first.
	ListUsers(ctx context.Context) ([]*User, error)
}

// ChannelStore handles channel and subscription persistence.
type ChannelStore interface {
	// CreateChannel creates a channel and subscribes the creator to it.
	CreateChannel(ctx context.Context, name, description string, createdBy uuid.UUID) (*Channel, error)

	// GetChannelByID retrieves a channel with creator and subscribers.
	GetChannelByID(ctx context.Context, id uuid.UUID) (*Channel, error)

	// GetChannelByName retrieves a channel by its unique name.
	GetChannelByName(ctx context.Context, name string) (*Channel, error)

	// ListChannels lists all channels with creator and subscribers, newest first.
	ListChannels(ctx context.Context) ([]*Channel, error)

	// Subscribe records a durable subscription. Returns ErrDuplicate if the
	// user is already subscribed.
	Subscribe(ctx context.Context, userID, channelID uuid.UUID) error

	// Unsubscribe removes a subscription. Returns ErrNotFound if absent.
	Unsubscribe(ctx context.Context, userID, channelID uuid.UUID) error

	// IsSubscribed checks whether a durable subscription exists.
	IsSubscribed(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage validates and persists a message, returning it enriched
	// with author display fields. Fails with ErrValidation when content is
	// empty or over-length, or when the channel/receiver exclusivity
	// invariant is violated.
	CreateMessage(ctx context.Context, nm NewMessage) (*Message, error)

	// QueryMessages returns one page of a channel's history, newest first,
	// along with the total count matching the filters.
	QueryMessages(ctx context.Context, q MessageQuery) ([]*Message, int, error)

	// ListDirectMessages returns the full direct history between two users
	// in ascending creation order.
	ListDirectMessages(ctx context.Context, userA, userB uuid.UUID) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChannelStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
