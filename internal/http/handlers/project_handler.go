package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stroybirzha/backend/internal/http/handlers/common"
	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/service"
)

// ProjectHandler предоставляет HTTP слой для проектов и переходов их
// жизненного цикла.
type ProjectHandler struct {
	projects  *service.ProjectService
	lifecycle *service.LifecycleService
}

// NewProjectHandler создаёт хэндлер.
func NewProjectHandler(projects *service.ProjectService, lifecycle *service.LifecycleService) *ProjectHandler {
	return &ProjectHandler{projects: projects, lifecycle: lifecycle}
}

// CreateProject обрабатывает POST /projects.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Title         string      `json:"title" binding:"required"`
		Description   string      `json:"description" binding:"required"`
		MaxPrice      *float64    `json:"max_price"`
		DeadlineAt    time.Time   `json:"deadline_at" binding:"required"`
		AttachmentIDs []uuid.UUID `json:"attachment_ids"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), service.CreateProjectInput{
		ClientID:      userID,
		Title:         req.Title,
		Description:   req.Description,
		MaxPrice:      req.MaxPrice,
		DeadlineAt:    req.DeadlineAt,
		AttachmentIDs: req.AttachmentIDs,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// GetProject обрабатывает GET /projects/:id.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// ListProjects обрабатывает GET /projects.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	params := repository.ListFilterParams{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	}

	if rawClient := c.Query("client_id"); rawClient != "" {
		clientID, err := uuid.Parse(rawClient)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный client_id"})
			return
		}
		params.ClientID = &clientID
	}

	result, err := h.projects.ListProjects(c.Request.Context(), params)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": result.Projects,
		"total":    result.Total,
	})
}

// ListMyProjects обрабатывает GET /projects/my.
func (h *ProjectHandler) ListMyProjects(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)

	result, err := h.projects.ListProjects(c.Request.Context(), repository.ListFilterParams{
		Status:   c.Query("status"),
		ClientID: &userID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": result.Projects,
		"total":    result.Total,
	})
}

// UpdateProject обрабатывает PUT /projects/:id.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
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
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		MaxPrice    *float64   `json:"max_price"`
		DeadlineAt  *time.Time `json:"deadline_at"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.projects.UpdateProject(c.Request.Context(), service.UpdateProjectInput{
		ProjectID:   projectID,
		ActorID:     userID,
		Title:       req.Title,
		Description: req.Description,
		MaxPrice:    req.MaxPrice,
		DeadlineAt:  req.DeadlineAt,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// DeleteProject обрабатывает DELETE /projects/:id.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
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

	result, err := h.projects.DeleteProject(c.Request.Context(), projectID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted_bids":        result.DeletedBids,
		"deleted_messages":    result.DeletedMessages,
		"deleted_evaluations": result.DeletedEvaluations,
	})
}

// SelectBid обрабатывает POST /projects/:id/bids/:bidId/select.
func (h *ProjectHandler) SelectBid(c *gin.Context) {
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

	bidID, err := common.ParseUUIDParam(c, "bidId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.lifecycle.SelectBid(c.Request.Context(), projectID, bidID, userID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// CompleteProject обрабатывает POST /projects/:id/complete.
func (h *ProjectHandler) CompleteProject(c *gin.Context) {
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

	// Оценки без binding:"required": ноль должен дойти до сервиса и
	// вернуться осмысленной ошибкой диапазона, а не отказом биндинга.
	var req struct {
		Quality       int    `json:"quality"`
		Timeliness    int    `json:"timeliness"`
		Communication int    `json:"communication"`
		Comment       string `json:"comment" binding:"required"`
		Recommend     bool   `json:"recommend"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eval, err := h.lifecycle.FinalizeProject(c.Request.Context(), service.FinalizeInput{
		ProjectID: projectID,
		ActorID:   userID,
		ActorRole: role,
		Scores: models.EvaluationScores{
			Quality:       req.Quality,
			Timeliness:    req.Timeliness,
			Communication: req.Communication,
		},
		Comment:   req.Comment,
		Recommend: req.Recommend,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, eval)
}
