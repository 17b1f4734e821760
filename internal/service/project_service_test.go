package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
	"github.com/stroybirzha/backend/internal/repository"
)

type mockProjectRepoFull struct {
	mock.Mock
}

func (m *mockProjectRepoFull) Create(ctx context.Context, project *models.Project, attachmentIDs []uuid.UUID) error {
	args := m.Called(ctx, project, attachmentIDs)
	if args.Error(0) == nil {
		project.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockProjectRepoFull) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *mockProjectRepoFull) Update(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *mockProjectRepoFull) List(ctx context.Context, params repository.ListFilterParams) (*repository.ListResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ListResult), args.Error(1)
}

func (m *mockProjectRepoFull) ListAttachments(ctx context.Context, projectID uuid.UUID) ([]models.ProjectAttachment, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.ProjectAttachment), args.Error(1)
}

func (m *mockProjectRepoFull) DeleteCascade(ctx context.Context, projectID uuid.UUID) (*repository.CascadeResult, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.CascadeResult), args.Error(1)
}

type fakeFileStorage struct {
	deleted []string
}

func (f *fakeFileStorage) Delete(_ context.Context, relativePath string) error {
	f.deleted = append(f.deleted, relativePath)
	return nil
}

func validCreateInput(clientID uuid.UUID) CreateProjectInput {
	return CreateProjectInput{
		ClientID:    clientID,
		Title:       "Ремонт кровли склада",
		Description: "Требуется замена мягкой кровли площадью 400 кв. м.",
		DeadlineAt:  time.Now().Add(14 * 24 * time.Hour),
	}
}

func TestProjectService_CreateProject_Success(t *testing.T) {
	repo := new(mockProjectRepoFull)
	svc := NewProjectService(repo, nil)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.Project"), mock.Anything).Return(nil)

	project, err := svc.CreateProject(ctx, validCreateInput(uuid.New()))

	assert.NoError(t, err)
	assert.Equal(t, models.ProjectStatusOpen, project.Status)
	assert.NotEqual(t, uuid.Nil, project.ID)
}

func TestProjectService_CreateProject_Validation(t *testing.T) {
	repo := new(mockProjectRepoFull)
	svc := NewProjectService(repo, nil)
	ctx := context.Background()
	clientID := uuid.New()

	badPrice := -100.0
	zeroPrice := 0.0

	cases := []struct {
		name   string
		mutate func(in *CreateProjectInput)
	}{
		{"слишком короткое название", func(in *CreateProjectInput) { in.Title = "ок" }},
		{"слишком короткое описание", func(in *CreateProjectInput) { in.Description = "коротко" }},
		{"отрицательная цена", func(in *CreateProjectInput) { in.MaxPrice = &badPrice }},
		{"нулевая цена", func(in *CreateProjectInput) { in.MaxPrice = &zeroPrice }},
		{"срок в прошлом", func(in *CreateProjectInput) { in.DeadlineAt = time.Now().Add(-time.Hour) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreateInput(clientID)
			tc.mutate(&in)

			_, err := svc.CreateProject(ctx, in)
			assert.True(t, apperror.IsValidation(err))
		})
	}

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectService_UpdateProject_OnlyWhileOpen(t *testing.T) {
	repo := new(mockProjectRepoFull)
	svc := NewProjectService(repo, nil)
	ctx := context.Background()

	clientID := uuid.New()
	project := &models.Project{
		ID:       uuid.New(),
		ClientID: clientID,
		Status:   models.ProjectStatusInProgress,
	}
	repo.On("GetByID", ctx, project.ID).Return(project, nil)

	newTitle := "Обновлённое название проекта"
	_, err := svc.UpdateProject(ctx, UpdateProjectInput{
		ProjectID: project.ID,
		ActorID:   clientID,
		Title:     &newTitle,
	})

	assert.True(t, apperror.IsInvalidState(err))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProjectService_UpdateProject_ForbiddenForStranger(t *testing.T) {
	repo := new(mockProjectRepoFull)
	svc := NewProjectService(repo, nil)
	ctx := context.Background()

	project := &models.Project{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Status:   models.ProjectStatusOpen,
	}
	repo.On("GetByID", ctx, project.ID).Return(project, nil)

	newTitle := "Чужое редактирование"
	_, err := svc.UpdateProject(ctx, UpdateProjectInput{
		ProjectID: project.ID,
		ActorID:   uuid.New(),
		Title:     &newTitle,
	})

	assert.True(t, apperror.IsForbidden(err))
}

func TestProjectService_ListProjects_UnknownStatus(t *testing.T) {
	repo := new(mockProjectRepoFull)
	svc := NewProjectService(repo, nil)

	_, err := svc.ListProjects(context.Background(), repository.ListFilterParams{Status: "archived"})
	assert.True(t, apperror.IsValidation(err))
}

func TestProjectService_DeleteProject_ReleasesFiles(t *testing.T) {
	repo := new(mockProjectRepoFull)
	storage := &fakeFileStorage{}
	svc := NewProjectService(repo, storage)
	ctx := context.Background()

	clientID := uuid.New()
	project := &models.Project{ID: uuid.New(), ClientID: clientID, Status: models.ProjectStatusOpen}
	repo.On("GetByID", ctx, project.ID).Return(project, nil)
	repo.On("DeleteCascade", ctx, project.ID).Return(&repository.CascadeResult{
		DeletedBids:     3,
		DeletedMessages: 12,
		MediaPaths:      []string{"docs/a.pdf", "docs/b.pdf"},
	}, nil)

	result, err := svc.DeleteProject(ctx, project.ID, clientID, models.RoleClient)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.DeletedBids)
	assert.Equal(t, []string{"docs/a.pdf", "docs/b.pdf"}, storage.deleted)
}

func TestProjectService_DeleteProject_ModeratorAllowed(t *testing.T) {
	repo := new(mockProjectRepoFull)
	svc := NewProjectService(repo, nil)
	ctx := context.Background()

	project := &models.Project{ID: uuid.New(), ClientID: uuid.New(), Status: models.ProjectStatusOpen}
	repo.On("GetByID", ctx, project.ID).Return(project, nil)
	repo.On("DeleteCascade", ctx, project.ID).Return(&repository.CascadeResult{}, nil)

	_, err := svc.DeleteProject(ctx, project.ID, uuid.New(), models.RoleModerator)
	assert.NoError(t, err)
}

func TestProjectService_DeleteProject_ForbiddenForStranger(t *testing.T) {
	repo := new(mockProjectRepoFull)
	svc := NewProjectService(repo, nil)
	ctx := context.Background()

	project := &models.Project{ID: uuid.New(), ClientID: uuid.New(), Status: models.ProjectStatusOpen}
	repo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.DeleteProject(ctx, project.ID, uuid.New(), models.RoleContractor)

	assert.True(t, apperror.IsForbidden(err))
	repo.AssertNotCalled(t, "DeleteCascade", mock.Anything, mock.Anything)
}
