package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stroybirzha/backend/internal/logger"
	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/validation"
)

// ProjectRepoIface описывает взаимодействие сервиса с хранилищем проектов.
type ProjectRepoIface interface {
	Create(ctx context.Context, project *models.Project, attachmentIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	List(ctx context.Context, params repository.ListFilterParams) (*repository.ListResult, error)
	ListAttachments(ctx context.Context, projectID uuid.UUID) ([]models.ProjectAttachment, error)
	DeleteCascade(ctx context.Context, projectID uuid.UUID) (*repository.CascadeResult, error)
}

// FileStorage описывает освобождение файлов во внешнем хранилище.
type FileStorage interface {
	Delete(ctx context.Context, relativePath string) error
}

// ProjectService содержит бизнес-логику проектов.
type ProjectService struct {
	projects ProjectRepoIface
	storage  FileStorage
}

// NewProjectService создаёт новый сервис проектов.
func NewProjectService(projects ProjectRepoIface, storage FileStorage) *ProjectService {
	return &ProjectService{projects: projects, storage: storage}
}

// CreateProjectInput описывает входные данные публикации проекта.
type CreateProjectInput struct {
	ClientID      uuid.UUID
	Title         string
	Description   string
	MaxPrice      *float64
	DeadlineAt    time.Time
	AttachmentIDs []uuid.UUID
}

// CreateProject публикует новый проект. Проект сразу открыт для откликов.
func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	title := validation.SanitizeString(in.Title)
	if err := validation.ValidateLength("название", title, 3, 200); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	description := validation.SanitizeString(in.Description)
	if err := validation.ValidateLength("описание", description, 10, 10000); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	if in.MaxPrice != nil && *in.MaxPrice <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "максимальная цена должна быть больше нуля")
	}

	if !in.DeadlineAt.After(time.Now()) {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок подачи откликов должен быть в будущем")
	}

	project := &models.Project{
		ClientID:    in.ClientID,
		Title:       title,
		Description: description,
		MaxPrice:    in.MaxPrice,
		DeadlineAt:  in.DeadlineAt,
		Status:      models.ProjectStatusOpen,
	}

	if err := s.projects.Create(ctx, project, in.AttachmentIDs); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать проект")
	}
	return project, nil
}

// GetProject возвращает проект с прикреплёнными документами.
func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проект")
	}

	attachments, err := s.projects.ListAttachments(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить документы проекта")
	}
	project.Attachments = attachments

	return project, nil
}

// ListProjects возвращает страницу проектов по фильтру.
func (s *ProjectService) ListProjects(ctx context.Context, params repository.ListFilterParams) (*repository.ListResult, error) {
	if params.Status != "" && !models.IsValidProjectStatus(params.Status) {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус проекта")
	}
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	result, err := s.projects.List(ctx, params)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список проектов")
	}
	return result, nil
}

// UpdateProjectInput описывает редактируемые поля проекта.
type UpdateProjectInput struct {
	ProjectID   uuid.UUID
	ActorID     uuid.UUID
	Title       *string
	Description *string
	MaxPrice    *float64
	DeadlineAt  *time.Time
}

// UpdateProject редактирует проект. Редактировать может только владелец
// и только пока проект открыт: после выбора исполнителя условия
// зафиксированы.
func (s *ProjectService) UpdateProject(ctx context.Context, in UpdateProjectInput) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проект")
	}

	if !project.IsOwnedBy(in.ActorID) {
		return nil, apperror.ErrForbidden
	}

	if project.Status != models.ProjectStatusOpen {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "проект нельзя изменить после выбора исполнителя")
	}

	if in.Title != nil {
		title := validation.SanitizeString(*in.Title)
		if err := validation.ValidateLength("название", title, 3, 200); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
		project.Title = title
	}
	if in.Description != nil {
		description := validation.SanitizeString(*in.Description)
		if err := validation.ValidateLength("описание", description, 10, 10000); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
		project.Description = description
	}
	if in.MaxPrice != nil {
		if *in.MaxPrice <= 0 {
			return nil, apperror.New(apperror.ErrCodeValidation, "максимальная цена должна быть больше нуля")
		}
		project.MaxPrice = in.MaxPrice
	}
	if in.DeadlineAt != nil {
		if !in.DeadlineAt.After(time.Now()) {
			return nil, apperror.New(apperror.ErrCodeValidation, "срок подачи откликов должен быть в будущем")
		}
		project.DeadlineAt = *in.DeadlineAt
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить проект")
	}
	return project, nil
}

// DeleteProject удаляет проект со всеми зависимыми данными: откликами,
// перепиской, оценками и прикреплёнными документами. Доступно владельцу
// и модератору. Удаление записей атомарно; файлы документов освобождаются
// после фиксации, отказ освобождения только логируется.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) (*repository.CascadeResult, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проект")
	}

	if !project.IsOwnedBy(actorID) && !models.IsOverrideRole(actorRole) {
		return nil, apperror.ErrForbidden
	}

	result, err := s.projects.DeleteCascade(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить проект")
	}

	if s.storage != nil {
		for _, path := range result.MediaPaths {
			if err := s.storage.Delete(ctx, path); err != nil && logger.Log != nil {
				logger.Log.WithError(err).WithField("path", path).Warn("project service: не удалось удалить файл документа")
			}
		}
	}

	return result, nil
}
