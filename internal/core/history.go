package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chatterbox-im/chatterbox-server/internal/metrics"
	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// Pagination bounds for history reads. Untrusted input is clamped, never
// rejected.
const (
	DefaultPageLimit = 15
	MinPageLimit     = 1
	MaxPageLimit     = 100
)

// PageRequest carries untrusted pagination and filter parameters. Zero
// values mean "not supplied".
type PageRequest struct {
	Limit          int
	Offset         int
	AuthorUsername string
	ContentQuery   string
	MatchType      string
}

// Page is one slice of a channel's history.
type Page struct {
	Items   []*store.Message
	Total   int
	HasMore bool
}

// HistoryService serves paginated, filterable message queries, normalizing
// untrusted parameters before delegating to the persistence gateway.
type HistoryService struct {
	store store.MessageStore
}

// NewHistoryService constructs a history service over the given store.
func NewHistoryService(st store.MessageStore) *HistoryService {
	return &HistoryService{store: st}
}

// normalizeLimit clamps to [MinPageLimit, MaxPageLimit]; zero (absent or
// unparseable input) coerces to the default.
func normalizeLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultPageLimit
	case limit < MinPageLimit:
		return MinPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return limit
	}
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// normalizeMatchType falls back to substring for anything unrecognized.
func normalizeMatchType(matchType string) store.MatchType {
	switch store.MatchType(strings.ToLower(strings.TrimSpace(matchType))) {
	case store.MatchPrefix:
		return store.MatchPrefix
	case store.MatchSuffix:
		return store.MatchSuffix
	case store.MatchExact:
		return store.MatchExact
	default:
		return store.MatchSubstring
	}
}

// FetchPage returns one page of channel history, newest first. A
// whitespace-only content query disables the content filter entirely rather
// than matching nothing. Persistence failures are returned as errors,
// distinct from an empty page.
func (h *HistoryService) FetchPage(ctx context.Context, channelID uuid.UUID, req PageRequest) (*Page, error) {
	q := store.MessageQuery{
		ChannelID:      channelID,
		Limit:          normalizeLimit(req.Limit),
		Offset:         normalizeOffset(req.Offset),
		AuthorUsername: strings.TrimSpace(req.AuthorUsername),
		ContentQuery:   strings.TrimSpace(req.ContentQuery),
		MatchType:      normalizeMatchType(req.MatchType),
	}

	items, total, err := h.store.QueryMessages(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	metrics.HistoryQueries.Inc()

	return &Page{
		Items:   items,
		Total:   total,
		HasMore: q.Offset+len(items) < total,
	}, nil
}

// DirectHistory returns the full direct-message history between two users,
// oldest first. Conversation views read top to bottom, unlike channel feeds
// which paginate from most recent.
func (h *HistoryService) DirectHistory(ctx context.Context, userA, userB uuid.UUID) ([]*store.Message, error) {
	msgs, err := h.store.ListDirectMessages(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}
	return msgs, nil
}
