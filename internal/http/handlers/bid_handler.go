package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stroybirzha/backend/internal/http/handlers/common"
	"github.com/stroybirzha/backend/internal/service"
)

// BidHandler предоставляет HTTP слой для откликов подрядчиков.
type BidHandler struct {
	bids *service.BidService
}

// NewBidHandler создаёт хэндлер.
func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

// SubmitBid обрабатывает POST /projects/:id/bids.
func (h *BidHandler) SubmitBid(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Price        float64 `json:"price" binding:"required"`
		DurationDays int     `json:"duration_days" binding:"required"`
		Pitch        string  `json:"pitch"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bid, err := h.bids.SubmitBid(c.Request.Context(), service.SubmitBidInput{
		ProjectID:    projectID,
		ContractorID: userID,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		Pitch:        req.Pitch,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bid)
}

// ListProjectBids обрабатывает GET /projects/:id/bids.
func (h *BidHandler) ListProjectBids(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	role, _ := common.CurrentUserRole(c)

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bids, err := h.bids.ListProjectBids(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, bids)
}

// ListMyBids обрабатывает GET /bids/my.
func (h *BidHandler) ListMyBids(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	bids, err := h.bids.ListMyBids(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, bids)
}

// GetBid обрабатывает GET /bids/:id.
func (h *BidHandler) GetBid(c *gin.Context) {
	bidID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bid, err := h.bids.GetBid(c.Request.Context(), bidID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, bid)
}
