package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"gamelauncher/backend/internal/apperrors"
	"gamelauncher/backend/internal/auth"
	"gamelauncher/backend/internal/conversation"

	"github.com/gin-gonic/gin"
)

type sendMessageBody struct {
	Text         string `json:"text"`
	ClientTempID string `json:"client_temp_id"`
}

type markReadBody struct {
	UpToMessageID string `json:"up_to_message_id"`
}

// History serves GET /api/conversations/:id/messages?before=<RFC3339>&limit=<n>.
func (h *Handler) History(c *gin.Context) {
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(c, apperrors.InvalidArg("before must be an RFC 3339 timestamp"))
			return
		}
		before = &ts
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperrors.InvalidArg("limit must be an integer"))
			return
		}
		limit = n
	}

	messages, err := h.Hub.Service.FetchHistory(c.Request.Context(), auth.UserID(c), c.Param("id"), before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage has the same effects as a live send; live peers see it immediately.
func (h *Handler) SendMessage(c *gin.Context) {
	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperrors.InvalidArg("invalid request body"))
		return
	}

	actor := conversation.Actor{UserID: auth.UserID(c)}
	msg, err := h.Hub.Service.SendMessage(c.Request.Context(), actor, c.Param("id"), body.Text, body.ClientTempID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"client_temp_id": body.ClientTempID,
		"message":        msg,
	})
}

// MarkRead accepts an empty body, meaning "everything so far".
func (h *Handler) MarkRead(c *gin.Context) {
	var body markReadBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, apperrors.InvalidArg("invalid request body"))
		return
	}

	actor := conversation.Actor{UserID: auth.UserID(c)}
	upTo, err := h.Hub.Service.MarkRead(c.Request.Context(), actor, c.Param("id"), body.UpToMessageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"up_to_message_id": upTo})
}

func (h *Handler) Unread(c *gin.Context) {
	counts, err := h.Hub.Service.UnreadCounts(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": counts})
}
