package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/store"
)

// DialogHandlers provides HTTP handlers for dialog endpoints. Dialog
// membership is managed here, outside the chat core; the core only reads it.
type DialogHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewDialogHandlers creates a new dialog handlers instance.
func NewDialogHandlers(st store.Store, logger *zerolog.Logger) *DialogHandlers {
	return &DialogHandlers{
		store: st,
		log:   logger,
	}
}

// CreateDialogRequest represents the create dialog request body.
type CreateDialogRequest struct {
	Name    string  `json:"name" binding:"required,min=1,max=100"`
	UserIDs []int64 `json:"user_ids" binding:"required,min=1"`
}

// ListDialogs returns the caller's dialogs with unread counts.
// GET /api/dialogs
func (h *DialogHandlers) ListDialogs(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	dialogs, err := h.store.ListDialogs(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list dialogs")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]*DialogResponse, 0, len(dialogs))
	for _, d := range dialogs {
		resp, err := serializeDialog(c.Request.Context(), h.store, d, uid)
		if err != nil {
			h.log.Error().Err(err).Int64("dialog_id", d.ID).Msg("failed to serialize dialog")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}

// CreateDialog creates a dialog; the caller becomes a member.
// POST /api/dialogs
func (h *DialogHandlers) CreateDialog(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateDialogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create dialog request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	members := req.UserIDs
	hasSelf := false
	for _, id := range members {
		if id == uid {
			hasSelf = true
			break
		}
	}
	if !hasSelf {
		members = append(members, uid)
	}

	dialog, err := h.store.CreateDialog(c.Request.Context(), req.Name, members)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "dialog with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create dialog")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp, err := serializeDialog(c.Request.Context(), h.store, dialog, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("dialog_id", dialog.ID).Msg("failed to serialize dialog")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("name", dialog.Name).Int64("dialog_id", dialog.ID).Msg("dialog created")
	c.JSON(http.StatusCreated, resp)
}
