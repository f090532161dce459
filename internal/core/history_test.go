package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// fakeMessageStore records the last query and returns canned results.
type fakeMessageStore struct {
	lastQuery store.MessageQuery
	items     []*store.Message
	total     int
	err       error
}

func (f *fakeMessageStore) CreateMessage(_ context.Context, _ store.NewMessage) (*store.Message, error) {
	return nil, nil
}

func (f *fakeMessageStore) QueryMessages(_ context.Context, q store.MessageQuery) ([]*store.Message, int, error) {
	f.lastQuery = q
	return f.items, f.total, f.err
}

func (f *fakeMessageStore) ListDirectMessages(_ context.Context, _, _ uuid.UUID) ([]*store.Message, error) {
	return f.items, f.err
}

func messagesOf(n int) []*store.Message {
	msgs := make([]*store.Message, 0, n)
	for range n {
		msgs = append(msgs, &store.Message{ID: uuid.New()})
	}
	return msgs
}

func TestFetchPageNormalizesLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"absent defaults", 0, DefaultPageLimit},
		{"below minimum clamps up", -5, MinPageLimit},
		{"above maximum clamps down", 500, MaxPageLimit},
		{"in range passes through", 42, 42},
		{"minimum boundary", 1, 1},
		{"maximum boundary", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeMessageStore{}
			svc := NewHistoryService(fake)

			_, err := svc.FetchPage(context.Background(), uuid.New(), PageRequest{Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.want, fake.lastQuery.Limit)
		})
	}
}

func TestFetchPageNormalizesOffsetAndMatchType(t *testing.T) {
	fake := &fakeMessageStore{}
	svc := NewHistoryService(fake)

	_, err := svc.FetchPage(context.Background(), uuid.New(), PageRequest{
		Offset:    -10,
		MatchType: "bogus",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, fake.lastQuery.Offset)
	assert.Equal(t, store.MatchSubstring, fake.lastQuery.MatchType)

	_, err = svc.FetchPage(context.Background(), uuid.New(), PageRequest{MatchType: " Exact "})
	require.NoError(t, err)
	assert.Equal(t, store.MatchExact, fake.lastQuery.MatchType)
}

func TestFetchPageBlankQueryDisablesFilter(t *testing.T) {
	fake := &fakeMessageStore{}
	svc := NewHistoryService(fake)

	_, err := svc.FetchPage(context.Background(), uuid.New(), PageRequest{
		ContentQuery:   "   ",
		AuthorUsername: "  ",
	})
	require.NoError(t, err)
	assert.Empty(t, fake.lastQuery.ContentQuery)
	assert.Empty(t, fake.lastQuery.AuthorUsername)
}

func TestFetchPageHasMore(t *testing.T) {
	tests := []struct {
		name    string
		offset  int
		items   int
		total   int
		hasMore bool
	}{
		{"first of many", 0, 15, 40, true},
		{"middle page", 15, 15, 40, true},
		{"last partial page", 30, 10, 40, false},
		{"exact final page", 25, 15, 40, false},
		{"empty result", 0, 0, 0, false},
		{"offset past the end", 100, 0, 40, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeMessageStore{items: messagesOf(tt.items), total: tt.total}
			svc := NewHistoryService(fake)

			page, err := svc.FetchPage(context.Background(), uuid.New(), PageRequest{Offset: tt.offset})
			require.NoError(t, err)
			assert.Equal(t, tt.total, page.Total)
			assert.Len(t, page.Items, tt.items)
			assert.Equal(t, tt.hasMore, page.HasMore)
		})
	}
}
