package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stroybirzha/backend/internal/http/handlers/common"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/validation"
)

// ProfileHandler предоставляет HTTP слой для профилей и рейтингов.
type ProfileHandler struct {
	users *repository.UserRepository
	evals *repository.EvaluationRepository
}

// NewProfileHandler создаёт хэндлер.
func NewProfileHandler(users *repository.UserRepository, evals *repository.EvaluationRepository) *ProfileHandler {
	return &ProfileHandler{users: users, evals: evals}
}

// GetMe обрабатывает GET /profile.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "profile": profile})
}

// UpdateMe обрабатывает PUT /profile.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
		Phone       *string `json:"phone"`
		Location    *string `json:"location"`
		CompanyName *string `json:"company_name"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if req.DisplayName != nil {
		name := validation.SanitizeString(*req.DisplayName)
		if err := validation.ValidateLength("имя", name, 2, 100); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile.DisplayName = name
	}
	if req.Bio != nil {
		bio := validation.SanitizeString(*req.Bio)
		profile.Bio = &bio
	}
	if req.Phone != nil {
		phone := validation.SanitizeString(*req.Phone)
		profile.Phone = &phone
	}
	if req.Location != nil {
		location := validation.SanitizeString(*req.Location)
		profile.Location = &location
	}
	if req.CompanyName != nil {
		company := validation.SanitizeString(*req.CompanyName)
		profile.CompanyName = &company
	}

	if err := h.users.UpdateProfile(c.Request.Context(), profile); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetUserProfile обрабатывает GET /users/:id — публичный профиль с
// агрегатом рейтинга.
func (h *ProfileHandler) GetUserProfile(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "пользователь не найден"})
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// ListUserEvaluations обрабатывает GET /users/:id/evaluations — оценки
// подрядчика по завершённым проектам.
func (h *ProfileHandler) ListUserEvaluations(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)

	evals, err := h.evals.ListByContractor(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, evals)
}
