package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar        TEXT NOT NULL DEFAULT 'https://placehold.co/150',
	is_online     BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channels (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_by  TEXT NOT NULL REFERENCES users(id),
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channel_subscriptions (
	user_id    TEXT NOT NULL REFERENCES users(id),
	channel_id TEXT NOT NULL REFERENCES channels(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, channel_id)
);

CREATE TABLE IF NOT EXISTS messages (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	content     TEXT NOT NULL,
	author_id   TEXT NOT NULL REFERENCES users(id),
	channel_id  TEXT REFERENCES channels(id),
	receiver_id TEXT REFERENCES users(id),
	is_read     BOOLEAN NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	CHECK ((channel_id IS NULL) != (receiver_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(author_id, receiver_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_channel ON channel_subscriptions(channel_id);
`

// New creates a new SQLite store and bootstraps the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after
// the schema is applied. Useful for tests to seed fixtures.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// mapConstraintErr converts SQLite constraint violations into store errors.
func mapConstraintErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return store.ErrDuplicate
		case sqlite3.ErrConstraintCheck:
			return store.ErrValidation
		case sqlite3.ErrConstraintForeignKey:
			// A referenced user or channel does not exist.
			return store.ErrNotFound
		}
	}
	return err
}

// ==== UserStore implementation ====

const userColumns = `id, username, email, password_hash, avatar, is_online, created_at`

func scanUser(row interface{ Scan(...any) error }) (*store.User, error) {
	var user store.User
	var id string
	err := row.Scan(
		&id,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.IsOnline,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return &user, nil
}

// CreateUser creates a user with a pre-hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	id := uuid.New()
	query := `
		INSERT INTO users (id, username, email, password_hash)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id.String(), username, email, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", mapConstraintErr(err))
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// SetUserOnline updates the user's stored online flag.
func (s *SQLiteStore) SetUserOnline(ctx context.Context, id uuid.UUID, online bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_online = ? WHERE id = ?`, online, id.String())
	if err != nil {
		return fmt.Errorf("update user online: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListUsers lists all users, newest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// ==== ChannelStore implementation ====

// CreateChannel creates a channel and subscribes the creator to it.
func (s *SQLiteStore) CreateChannel(ctx context.Context, name, description string, createdBy uuid.UUID) (*store.Channel, error) {
	name = strings.TrimSpace(name)
	// Bounds are in characters, not bytes; multibyte names count per rune.
	if n := utf8.RuneCountInString(name); n < store.MinChannelNameLength || n > store.MaxChannelNameLength {
		return nil, fmt.Errorf("channel name length: %w", store.ErrValidation)
	}
	if utf8.RuneCountInString(description) > store.MaxDescriptionLength {
		return nil, fmt.Errorf("channel description length: %w", store.ErrValidation)
	}

	id := uuid.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO channels (id, name, description, created_by)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, id.String(), name, description, createdBy.String()); err != nil {
		return nil, fmt.Errorf("insert channel: %w", mapConstraintErr(err))
	}

	// Creator starts out subscribed to their own channel.
	subQuery := `
		INSERT INTO channel_subscriptions (user_id, channel_id)
		VALUES (?, ?)
	`
	if _, err := tx.ExecContext(ctx, subQuery, createdBy.String(), id.String()); err != nil {
		return nil, fmt.Errorf("subscribe creator: %w", mapConstraintErr(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetChannelByID(ctx, id)
}

func (s *SQLiteStore) scanChannelRow(ctx context.Context, row *sql.Row) (*store.Channel, error) {
	var ch store.Channel
	var id, createdBy string
	var creator store.Author
	var creatorID string
	err := row.Scan(
		&id,
		&ch.Name,
		&ch.Description,
		&createdBy,
		&ch.CreatedAt,
		&creatorID,
		&creator.Username,
		&creator.Avatar,
	)
	if err != nil {
		return nil, err
	}
	if ch.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse channel id: %w", err)
	}
	if ch.CreatedBy, err = uuid.Parse(createdBy); err != nil {
		return nil, fmt.Errorf("parse creator id: %w", err)
	}
	if creator.ID, err = uuid.Parse(creatorID); err != nil {
		return nil, fmt.Errorf("parse creator id: %w", err)
	}
	ch.Creator = &creator

	subs, err := s.listSubscribers(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	ch.Subscribers = subs
	return &ch, nil
}

const channelSelect = `
	SELECT c.id, c.name, c.description, c.created_by, c.created_at,
	       u.id, u.username, u.avatar
	FROM channels c
	JOIN users u ON c.created_by = u.id
`

// GetChannelByID retrieves a channel with creator and subscribers.
func (s *SQLiteStore) GetChannelByID(ctx context.Context, id uuid.UUID) (*store.Channel, error) {
	ch, err := s.scanChannelRow(ctx, s.db.QueryRowContext(ctx, channelSelect+` WHERE c.id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query channel: %w", err)
	}
	return ch, nil
}

// GetChannelByName retrieves a channel by its unique name.
func (s *SQLiteStore) GetChannelByName(ctx context.Context, name string) (*store.Channel, error) {
	ch, err := s.scanChannelRow(ctx, s.db.QueryRowContext(ctx, channelSelect+` WHERE c.name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query channel: %w", err)
	}
	return ch, nil
}

// ListChannels lists all channels with creator and subscribers, newest first.
func (s *SQLiteStore) ListChannels(ctx context.Context) ([]*store.Channel, error) {
	rows, err := s.db.QueryContext(ctx, channelSelect+` ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*store.Channel
	for rows.Next() {
		var ch store.Channel
		var id, createdBy, creatorID string
		var creator store.Author
		if err := rows.Scan(
			&id,
			&ch.Name,
			&ch.Description,
			&createdBy,
			&ch.CreatedAt,
			&creatorID,
			&creator.Username,
			&creator.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		if ch.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse channel id: %w", err)
		}
		if ch.CreatedBy, err = uuid.Parse(createdBy); err != nil {
			return nil, fmt.Errorf("parse creator id: %w", err)
		}
		if creator.ID, err = uuid.Parse(creatorID); err != nil {
			return nil, fmt.Errorf("parse creator id: %w", err)
		}
		ch.Creator = &creator
		channels = append(channels, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ch := range channels {
		subs, err := s.listSubscribers(ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		ch.Subscribers = subs
	}

	return channels, nil
}

func (s *SQLiteStore) listSubscribers(ctx context.Context, channelID uuid.UUID) ([]store.Author, error) {
	query := `
		SELECT u.id, u.username, u.avatar
		FROM channel_subscriptions cs
		JOIN users u ON cs.user_id = u.id
		WHERE cs.channel_id = ?
		ORDER BY cs.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, channelID.String())
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []store.Author
	for rows.Next() {
		var a store.Author
		var id string
		if err := rows.Scan(&id, &a.Username, &a.Avatar); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse subscriber id: %w", err)
		}
		subs = append(subs, a)
	}

	return subs, rows.Err()
}

// Subscribe records a durable subscription.
func (s *SQLiteStore) Subscribe(ctx context.Context, userID, channelID uuid.UUID) error {
	if _, err := s.GetChannelByID(ctx, channelID); err != nil {
		return err
	}

	query := `
		INSERT INTO channel_subscriptions (user_id, channel_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, userID.String(), channelID.String()); err != nil {
		return fmt.Errorf("insert subscription: %w", mapConstraintErr(err))
	}
	return nil
}

// Unsubscribe removes a subscription.
func (s *SQLiteStore) Unsubscribe(ctx context.Context, userID, channelID uuid.UUID) error {
	query := `
		DELETE FROM channel_subscriptions
		WHERE user_id = ? AND channel_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, userID.String(), channelID.String())
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("subscription: %w", store.ErrNotFound)
	}
	return nil
}

// IsSubscribed checks whether a durable subscription exists.
func (s *SQLiteStore) IsSubscribed(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	query := `
		SELECT 1 FROM channel_subscriptions
		WHERE user_id = ? AND channel_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID.String(), channelID.String()).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query subscription: %w", err)
	}
	return true, nil
}

// ==== MessageStore implementation ====

const messageSelect = `
	SELECT m.id, m.content, m.author_id, m.channel_id, m.receiver_id, m.is_read, m.created_at,
	       u.id, u.username, u.avatar
	FROM messages m
	JOIN users u ON m.author_id = u.id
`

func scanMessage(row interface{ Scan(...any) error }) (*store.Message, error) {
	var msg store.Message
	var id, authorID, msgAuthorID string
	var channelID, receiverID sql.NullString
	err := row.Scan(
		&id,
		&msg.Content,
		&authorID,
		&channelID,
		&receiverID,
		&msg.IsRead,
		&msg.CreatedAt,
		&msgAuthorID,
		&msg.Author.Username,
		&msg.Author.Avatar,
	)
	if err != nil {
		return nil, err
	}
	if msg.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse message id: %w", err)
	}
	if msg.AuthorID, err = uuid.Parse(authorID); err != nil {
		return nil, fmt.Errorf("parse author id: %w", err)
	}
	if msg.Author.ID, err = uuid.Parse(msgAuthorID); err != nil {
		return nil, fmt.Errorf("parse author id: %w", err)
	}
	if channelID.Valid {
		cid, err := uuid.Parse(channelID.String)
		if err != nil {
			return nil, fmt.Errorf("parse channel id: %w", err)
		}
		msg.ChannelID = &cid
	}
	if receiverID.Valid {
		rid, err := uuid.Parse(receiverID.String)
		if err != nil {
			return nil, fmt.Errorf("parse receiver id: %w", err)
		}
		msg.ReceiverID = &rid
	}
	return &msg, nil
}

// CreateMessage validates and persists a message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, nm store.NewMessage) (*store.Message, error) {
	content := strings.TrimSpace(nm.Content)
	if content == "" {
		return nil, fmt.Errorf("empty content: %w", store.ErrValidation)
	}
	if utf8.RuneCountInString(content) > store.MaxContentLength {
		return nil, fmt.Errorf("content exceeds %d characters: %w", store.MaxContentLength, store.ErrValidation)
	}
	if (nm.ChannelID == nil) == (nm.ReceiverID == nil) {
		return nil, fmt.Errorf("message requires exactly one of channel or receiver: %w", store.ErrValidation)
	}

	id := uuid.New()
	var channelID, receiverID any
	if nm.ChannelID != nil {
		channelID = nm.ChannelID.String()
	}
	if nm.ReceiverID != nil {
		receiverID = nm.ReceiverID.String()
	}

	query := `
		INSERT INTO messages (id, content, author_id, channel_id, receiver_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	createdAt := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, id.String(), content, nm.AuthorID.String(), channelID, receiverID, createdAt); err != nil {
		return nil, fmt.Errorf("insert message: %w", mapConstraintErr(err))
	}

	msg, err := scanMessage(s.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id.String()))
	if err != nil {
		return nil, fmt.Errorf("query created message: %w", err)
	}
	return msg, nil
}

// buildContentFilter returns a LIKE pattern for the given match type, or
// equality for exact matches. Substring is the fallback for unknown types.
func buildContentFilter(query string, matchType store.MatchType) (clause string, arg string) {
	switch matchType {
	case store.MatchPrefix:
		return "LOWER(m.content) LIKE LOWER(?)", query + "%"
	case store.MatchSuffix:
		return "LOWER(m.content) LIKE LOWER(?)", "%" + query
	case store.MatchExact:
		return "LOWER(m.content) = LOWER(?)", query
	default:
		return "LOWER(m.content) LIKE LOWER(?)", "%" + query + "%"
	}
}

// QueryMessages returns one page of a channel's history, newest first, and
// the total count matching the filters.
func (s *SQLiteStore) QueryMessages(ctx context.Context, q store.MessageQuery) ([]*store.Message, int, error) {
	where := []string{"m.channel_id = ?"}
	args := []any{q.ChannelID.String()}

	if content := strings.TrimSpace(q.ContentQuery); content != "" {
		clause, arg := buildContentFilter(content, q.MatchType)
		where = append(where, clause)
		args = append(args, arg)
	}
	if author := strings.TrimSpace(q.AuthorUsername); author != "" {
		where = append(where, "LOWER(u.username) = LOWER(?)")
		args = append(args, author)
	}

	predicate := " WHERE " + strings.Join(where, " AND ")

	countQuery := `
		SELECT COUNT(*)
		FROM messages m
		JOIN users u ON m.author_id = u.id
	` + predicate
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	pageQuery := messageSelect + predicate + `
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT ? OFFSET ?
	`
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, total, rows.Err()
}

// ListDirectMessages returns the full direct history between two users in
// ascending creation order.
func (s *SQLiteStore) ListDirectMessages(ctx context.Context, userA, userB uuid.UUID) ([]*store.Message, error) {
	query := messageSelect + `
		WHERE (m.author_id = ? AND m.receiver_id = ?)
		   OR (m.author_id = ? AND m.receiver_id = ?)
		ORDER BY m.created_at ASC, m.seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userA.String(), userB.String(), userB.String(), userA.String())
	if err != nil {
		return nil, fmt.Errorf("query direct messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
