package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/store"
)

const defaultHistoryPageSize = 50

// MessageHandlers provides HTTP handlers for message history endpoints.
type MessageHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		log:   logger,
	}
}

// ListMessages returns dialog history, newest first.
// GET /api/messages/:dialog_id?before=<message_id>&limit=<n>
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	dialogID, err := strconv.ParseInt(c.Param("dialog_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid dialog id"})
		return
	}

	dialog, err := h.store.DialogByPK(c.Request.Context(), dialogID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "dialog not found"})
		return
	}

	// History is only visible to members.
	member := false
	for _, id := range dialog.UserIDs {
		if id == uid {
			member = true
			break
		}
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this dialog"})
		return
	}

	limit := defaultHistoryPageSize
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			beforeID = &n
		}
	}

	messages, err := h.store.ListMessages(c.Request.Context(), dialogID, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Int64("dialog_id", dialogID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]*MessageResponse, 0, len(messages))
	for _, msg := range messages {
		resp, err := serializeMessage(c.Request.Context(), h.store, msg, uid)
		if err != nil {
			h.log.Error().Err(err).Int64("message_id", msg.ID).Msg("failed to serialize message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}
