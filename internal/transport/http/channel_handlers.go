package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatterbox-im/chatterbox-server/internal/store"
)

// ChannelHandlers provides HTTP handlers for channels and subscriptions.
type ChannelHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(st store.Store, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		store: st,
		log:   logger,
	}
}

// CreateChannelRequest represents the channel creation request body.
type CreateChannelRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=50"`
	Description string `json:"description" binding:"max=200"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CreatedBy   uuid.UUID      `json:"createdBy"`
	Creator     *store.Author  `json:"creator,omitempty"`
	Subscribers []store.Author `json:"subscribers"`
}

func channelResponse(ch *store.Channel) ChannelResponse {
	subs := ch.Subscribers
	if subs == nil {
		subs = []store.Author{}
	}
	return ChannelResponse{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		CreatedBy:   ch.CreatedBy,
		Creator:     ch.Creator,
		Subscribers: subs,
	}
}

// ListChannels handles listing all channels.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	channels, err := h.store.ListChannels(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		response = append(response, channelResponse(ch))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(response), "data": response})
}

// CreateChannel handles channel creation. The creator is subscribed
// automatically.
// POST /api/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	channel, err := h.store.CreateChannel(c.Request.Context(), req.Name, req.Description, uid)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "channel already exists"})
		case errors.Is(err, store.ErrValidation):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create channel")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("name", channel.Name).Str("channel_id", channel.ID.String()).Msg("channel created")
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": channelResponse(channel)})
}

// GetChannel handles fetching a single channel with its subscribers.
// GET /api/channels/:id
func (h *ChannelHandlers) GetChannel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	channel, err := h.store.GetChannelByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Str("channel_id", id.String()).Msg("failed to fetch channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": channelResponse(channel)})
}

// Subscribe handles durably joining a channel.
// POST /api/channels/:id/subscribe
func (h *ChannelHandlers) Subscribe(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	if err := h.store.Subscribe(c.Request.Context(), uid, channelID); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "already subscribed"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		default:
			h.log.Error().Err(err).Str("channel_id", channelID.String()).Msg("failed to subscribe")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// Unsubscribe handles leaving a channel durably.
// DELETE /api/channels/:id/subscribe
func (h *ChannelHandlers) Unsubscribe(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return
	}

	if err := h.store.Unsubscribe(c.Request.Context(), uid, channelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "subscription not found"})
			return
		}
		h.log.Error().Err(err).Str("channel_id", channelID.String()).Msg("failed to unsubscribe")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
