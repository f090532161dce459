package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatterbox-im/chatterbox-server/internal/core"
	"github.com/chatterbox-im/chatterbox-server/internal/proto"
)

// MessageHandlers provides HTTP handlers for message history reads. Both the
// REST surface and the live protocol share the same history service, so
// pagination and filter semantics cannot drift between the two.
type MessageHandlers struct {
	history *core.HistoryService
	log     *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(history *core.HistoryService, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		history: history,
		log:     logger,
	}
}

// queryInt parses an integer query parameter, returning 0 for absent or
// malformed values so the history service applies its defaults.
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

// ChannelMessages returns one page of a channel's history, newest first.
// GET /api/messages/channel/:channelId
func (h *MessageHandlers) ChannelMessages(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	req := core.PageRequest{
		Limit:          queryInt(c, "limit"),
		Offset:         queryInt(c, "offset"),
		AuthorUsername: c.Query("authorUsername"),
		ContentQuery:   c.Query("contentQuery"),
		MatchType:      c.Query("matchType"),
	}

	page, err := h.history.FetchPage(c.Request.Context(), channelID, req)
	if err != nil {
		h.log.Error().Err(err).Str("channel_id", channelID.String()).Msg("failed to query channel messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(page.Items),
		"total":   page.Total,
		"hasMore": page.HasMore,
		"data":    proto.MessagesFromStore(page.Items),
	})
}

// PrivateMessages returns the full direct-message history between two users,
// oldest first.
// GET /api/messages/private/:userId1/:userId2
func (h *MessageHandlers) PrivateMessages(c *gin.Context) {
	userA, err := uuid.Parse(c.Param("userId1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}
	userB, err := uuid.Parse(c.Param("userId2"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	msgs, err := h.history.DirectHistory(c.Request.Context(), userA, userB)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query private messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(msgs),
		"data":    proto.MessagesFromStore(msgs),
	})
}
