package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stroybirzha/backend/internal/http/handlers/common"
	"github.com/stroybirzha/backend/internal/service"
)

// MessageHandler предоставляет HTTP слой для переписки по отклику.
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler создаёт хэндлер.
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// PostMessage обрабатывает POST /bids/:id/messages.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	role, _ := common.CurrentUserRole(c)

	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
		Body        string    `json:"body" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.PostMessage(c.Request.Context(), service.PostMessageInput{
		BidID:       bidID,
		SenderID:    userID,
		SenderRole:  role,
		RecipientID: req.RecipientID,
		Body:        req.Body,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListThread обрабатывает GET /bids/:id/messages.
func (h *MessageHandler) ListThread(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	role, _ := common.CurrentUserRole(c)

	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)

	msgs, err := h.messages.ListThread(c.Request.Context(), bidID, userID, role, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// MarkThreadRead обрабатывает PUT /bids/:id/messages/read.
func (h *MessageHandler) MarkThreadRead(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	role, _ := common.CurrentUserRole(c)

	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.messages.MarkThreadRead(c.Request.Context(), bidID, userID, role); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "переписка отмечена прочитанной"})
}

// CountUnreadInThread обрабатывает GET /bids/:id/messages/unread/count.
func (h *MessageHandler) CountUnreadInThread(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := h.messages.CountUnreadInThread(c.Request.Context(), bidID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// CountUnread обрабатывает GET /messages/unread/count.
func (h *MessageHandler) CountUnread(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	count, err := h.messages.CountUnread(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
