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

type mockBidRepo struct {
	mock.Mock
}

func (m *mockBidRepo) CreateWithMessage(ctx context.Context, bid *models.Bid, seed *models.Message) error {
	args := m.Called(ctx, bid, seed)
	if args.Error(0) == nil {
		bid.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockBidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepo) GetByProjectAndContractor(ctx context.Context, projectID, contractorID uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, projectID, contractorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Bid, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *mockBidRepo) ListByContractor(ctx context.Context, contractorID uuid.UUID) ([]models.Bid, error) {
	args := m.Called(ctx, contractorID)
	return args.Get(0).([]models.Bid), args.Error(1)
}

type mockProjectRepoForBids struct {
	mock.Mock
}

func (m *mockProjectRepoForBids) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	args := m.Called(userID, event, data)
	return args.Error(0)
}

func openProject(clientID uuid.UUID, maxPrice *float64) *models.Project {
	return &models.Project{
		ID:         uuid.New(),
		ClientID:   clientID,
		Title:      "Ремонт кровли склада",
		Status:     models.ProjectStatusOpen,
		MaxPrice:   maxPrice,
		DeadlineAt: time.Now().Add(48 * time.Hour),
	}
}

func TestBidService_SubmitBid_Success(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)
	notifier := new(mockNotifier)

	svc := NewBidService(bidRepo, projectRepo, nil)
	svc.SetHub(notifier)
	ctx := context.Background()

	clientID := uuid.New()
	contractorID := uuid.New()
	project := openProject(clientID, nil)

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	bidRepo.On("GetByProjectAndContractor", ctx, project.ID, contractorID).Return(nil, nil)
	bidRepo.On("CreateWithMessage", ctx, mock.AnythingOfType("*models.Bid"), mock.AnythingOfType("*models.Message")).Return(nil)
	notifier.On("BroadcastToUser", clientID, "bid.submitted", mock.Anything).Return(nil)

	bid, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: contractorID,
		Price:        150000,
		DurationDays: 14,
		Pitch:        "Бригада из пяти человек, материалы свои.",
	})

	assert.NoError(t, err)
	assert.NotNil(t, bid)
	assert.Equal(t, models.BidStatusPending, bid.Status)
	notifier.AssertCalled(t, "BroadcastToUser", clientID, "bid.submitted", mock.Anything)
}

func TestBidService_SubmitBid_SeedMessageStartsThread(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	clientID := uuid.New()
	contractorID := uuid.New()
	project := openProject(clientID, nil)

	var seed *models.Message
	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	bidRepo.On("GetByProjectAndContractor", ctx, project.ID, contractorID).Return(nil, nil)
	bidRepo.On("CreateWithMessage", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seed = args.Get(2).(*models.Message)
	}).Return(nil)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: contractorID,
		Price:        90000,
		DurationDays: 10,
	})

	assert.NoError(t, err)
	assert.NotNil(t, seed)
	assert.Equal(t, contractorID, seed.SenderID)
	assert.Equal(t, clientID, seed.RecipientID)
	assert.Contains(t, seed.Body, "90000")
}

func TestBidService_SubmitBid_PriceAtMaxAllowed(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	maxPrice := 200000.0
	contractorID := uuid.New()
	project := openProject(uuid.New(), &maxPrice)

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	bidRepo.On("GetByProjectAndContractor", ctx, project.ID, contractorID).Return(nil, nil)
	bidRepo.On("CreateWithMessage", ctx, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: contractorID,
		Price:        200000,
		DurationDays: 30,
	})

	assert.NoError(t, err)
}

func TestBidService_SubmitBid_PriceAboveMax(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	maxPrice := 200000.0
	project := openProject(uuid.New(), &maxPrice)

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: uuid.New(),
		Price:        200000.01,
		DurationDays: 30,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	bidRepo.AssertNotCalled(t, "CreateWithMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestBidService_SubmitBid_DeadlinePassed(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	project := openProject(uuid.New(), nil)
	project.DeadlineAt = time.Now().Add(-time.Minute)

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: uuid.New(),
		Price:        100000,
		DurationDays: 7,
	})

	assert.Error(t, err)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeExpired, appErr.Code)
}

func TestBidService_SubmitBid_AtExactDeadlineInstant(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	// Граница включающая: подача ровно в момент дедлайна ещё проходит.
	deadline := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return deadline }

	project := openProject(uuid.New(), nil)
	project.DeadlineAt = deadline

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	bidRepo.On("GetByProjectAndContractor", ctx, project.ID, mock.Anything).Return(nil, nil)
	bidRepo.On("CreateWithMessage", ctx, mock.Anything, mock.Anything).Return(nil)

	bid, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: uuid.New(),
		Price:        100000,
		DurationDays: 7,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, bid.Status)

	// Наносекундой позже дедлайна подача уже отклоняется.
	svc.now = func() time.Time { return deadline.Add(time.Nanosecond) }
	_, err = svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: uuid.New(),
		Price:        100000,
		DurationDays: 7,
	})

	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeExpired, appErr.Code)
}

func TestBidService_SubmitBid_OwnProject(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	clientID := uuid.New()
	project := openProject(clientID, nil)

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: clientID,
		Price:        100000,
		DurationDays: 7,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestBidService_SubmitBid_Duplicate(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	contractorID := uuid.New()
	project := openProject(uuid.New(), nil)
	existing := &models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: contractorID}

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	bidRepo.On("GetByProjectAndContractor", ctx, project.ID, contractorID).Return(existing, nil)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: contractorID,
		Price:        100000,
		DurationDays: 7,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestBidService_SubmitBid_DuplicateRace(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	contractorID := uuid.New()
	project := openProject(uuid.New(), nil)

	// Проверка до записи гонку не ловит, уникальный индекс — ловит.
	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)
	bidRepo.On("GetByProjectAndContractor", ctx, project.ID, contractorID).Return(nil, nil)
	bidRepo.On("CreateWithMessage", ctx, mock.Anything, mock.Anything).Return(repository.ErrDuplicateBid)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: contractorID,
		Price:        100000,
		DurationDays: 7,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestBidService_SubmitBid_ProjectNotOpen(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	project := openProject(uuid.New(), nil)
	project.Status = models.ProjectStatusInProgress

	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.SubmitBid(ctx, SubmitBidInput{
		ProjectID:    project.ID,
		ContractorID: uuid.New(),
		Price:        100000,
		DurationDays: 7,
	})

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestBidService_ListProjectBids_OnlyOwner(t *testing.T) {
	bidRepo := new(mockBidRepo)
	projectRepo := new(mockProjectRepoForBids)

	svc := NewBidService(bidRepo, projectRepo, nil)
	ctx := context.Background()

	project := openProject(uuid.New(), nil)
	projectRepo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.ListProjectBids(ctx, project.ID, uuid.New(), models.RoleContractor)
	assert.True(t, apperror.IsForbidden(err))

	bidRepo.On("ListByProject", ctx, project.ID).Return([]models.Bid{}, nil)

	_, err = svc.ListProjectBids(ctx, project.ID, project.ClientID, models.RoleClient)
	assert.NoError(t, err)

	_, err = svc.ListProjectBids(ctx, project.ID, uuid.New(), models.RoleModerator)
	assert.NoError(t, err)
}
