package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
	"github.com/stroybirzha/backend/internal/repository"
)

type mockBidRepoForLifecycle struct {
	mock.Mock
}

func (m *mockBidRepoForLifecycle) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepoForLifecycle) GetAcceptedForProject(ctx context.Context, projectID uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepoForLifecycle) SelectWinner(ctx context.Context, projectID, bidID uuid.UUID) (*repository.SelectionResult, error) {
	args := m.Called(ctx, projectID, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.SelectionResult), args.Error(1)
}

type mockEvaluationRepo struct {
	mock.Mock
}

func (m *mockEvaluationRepo) CreateWithAggregates(ctx context.Context, eval *models.Evaluation, closing *models.Message) error {
	args := m.Called(ctx, eval, closing)
	if args.Error(0) == nil {
		eval.ID = uuid.New()
	}
	return args.Error(0)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newLifecycleFixture() (*mockProjectRepoForBids, *mockBidRepoForLifecycle, *mockEvaluationRepo, *mockMessageRepo, *mockNotifier, *LifecycleService) {
	projects := new(mockProjectRepoForBids)
	bids := new(mockBidRepoForLifecycle)
	evals := new(mockEvaluationRepo)
	messages := new(mockMessageRepo)
	notifier := new(mockNotifier)

	svc := NewLifecycleService(projects, bids, evals, messages, nil, 10)
	svc.SetHub(notifier)
	return projects, bids, evals, messages, notifier, svc
}

func inProgressProject(clientID uuid.UUID) *models.Project {
	return &models.Project{
		ID:       uuid.New(),
		ClientID: clientID,
		Title:    "Фундамент под ангар",
		Status:   models.ProjectStatusInProgress,
	}
}

func TestLifecycleService_SelectBid_Success(t *testing.T) {
	projects, bids, _, messages, notifier, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	project := inProgressProject(clientID)
	project.Status = models.ProjectStatusOpen

	winnerID := uuid.New()
	loserID := uuid.New()
	winner := &models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: winnerID, Status: models.BidStatusAccepted}
	loser := models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: loserID, Status: models.BidStatusRejected}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	bids.On("GetByID", ctx, winner.ID).Return(winner, nil)
	bids.On("SelectWinner", ctx, project.ID, winner.ID).Return(&repository.SelectionResult{
		Accepted:        winner,
		Rejected:        []models.Bid{loser},
		AlreadyNotified: false,
	}, nil)
	messages.On("Create", ctx, mock.AnythingOfType("*models.Message")).Return(nil)
	notifier.On("BroadcastToUser", winnerID, "bid.accepted", mock.Anything).Return(nil)
	notifier.On("BroadcastToUser", loserID, "bid.rejected", mock.Anything).Return(nil)

	outcome, err := svc.SelectBid(ctx, project.ID, winner.ID, clientID, models.RoleClient)

	assert.NoError(t, err)
	assert.Equal(t, winner, outcome.Accepted)
	assert.Len(t, outcome.Rejected, 1)
	// Победителю и отклонённому ушло по системному сообщению.
	messages.AssertNumberOfCalls(t, "Create", 2)
	notifier.AssertCalled(t, "BroadcastToUser", winnerID, "bid.accepted", mock.Anything)
	notifier.AssertCalled(t, "BroadcastToUser", loserID, "bid.rejected", mock.Anything)
}

func TestLifecycleService_SelectBid_ReselectDoesNotRenotifyRejected(t *testing.T) {
	projects, bids, _, messages, notifier, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	project := inProgressProject(clientID)

	winnerID := uuid.New()
	loserID := uuid.New()
	winner := &models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: winnerID, Status: models.BidStatusAccepted}
	loser := models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: loserID, Status: models.BidStatusRejected}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	bids.On("GetByID", ctx, winner.ID).Return(winner, nil)
	bids.On("SelectWinner", ctx, project.ID, winner.ID).Return(&repository.SelectionResult{
		Accepted:        winner,
		Rejected:        []models.Bid{loser},
		AlreadyNotified: true,
	}, nil)
	messages.On("Create", ctx, mock.Anything).Return(nil)
	notifier.On("BroadcastToUser", winnerID, "bid.accepted", mock.Anything).Return(nil)

	_, err := svc.SelectBid(ctx, project.ID, winner.ID, clientID, models.RoleClient)

	assert.NoError(t, err)
	// Сообщение получает только новый победитель, отклонённые — нет.
	messages.AssertNumberOfCalls(t, "Create", 1)
	notifier.AssertNotCalled(t, "BroadcastToUser", loserID, "bid.rejected", mock.Anything)
}

func TestLifecycleService_SelectBid_CompletedProject(t *testing.T) {
	projects, bids, _, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	project := inProgressProject(clientID)
	bid := &models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: uuid.New()}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	bids.On("GetByID", ctx, bid.ID).Return(bid, nil)
	bids.On("SelectWinner", ctx, project.ID, bid.ID).Return(nil, repository.ErrProjectCompleted)

	_, err := svc.SelectBid(ctx, project.ID, bid.ID, clientID, models.RoleClient)

	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestLifecycleService_SelectBid_Forbidden(t *testing.T) {
	projects, _, _, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	project := inProgressProject(uuid.New())
	projects.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.SelectBid(ctx, project.ID, uuid.New(), uuid.New(), models.RoleContractor)
	assert.True(t, apperror.IsForbidden(err))
}

func TestLifecycleService_SelectBid_BidFromAnotherProject(t *testing.T) {
	projects, bids, _, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	project := inProgressProject(clientID)
	foreign := &models.Bid{ID: uuid.New(), ProjectID: uuid.New(), ContractorID: uuid.New()}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	bids.On("GetByID", ctx, foreign.ID).Return(foreign, nil)

	_, err := svc.SelectBid(ctx, project.ID, foreign.ID, clientID, models.RoleClient)

	assert.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestLifecycleService_FinalizeProject_Success(t *testing.T) {
	projects, bids, evals, _, notifier, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	contractorID := uuid.New()
	project := inProgressProject(clientID)
	winner := &models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: contractorID, Status: models.BidStatusAccepted}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	bids.On("GetAcceptedForProject", ctx, project.ID).Return(winner, nil)

	var saved *models.Evaluation
	var closing *models.Message
	evals.On("CreateWithAggregates", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.Evaluation)
		closing = args.Get(2).(*models.Message)
	}).Return(nil)
	notifier.On("BroadcastToUser", contractorID, "project.completed", mock.Anything).Return(nil)

	eval, err := svc.FinalizeProject(ctx, FinalizeInput{
		ProjectID: project.ID,
		ActorID:   clientID,
		ActorRole: models.RoleClient,
		Scores:    models.EvaluationScores{Quality: 5, Timeliness: 4, Communication: 5},
		Comment:   "Сделали в срок, площадку сдали чистой.",
		Recommend: true,
	})

	assert.NoError(t, err)
	assert.NotNil(t, eval)
	assert.InDelta(t, 4.6667, eval.Overall, 0.001)
	assert.Equal(t, contractorID, saved.ContractorID)
	assert.True(t, closing.IsSystem)
	assert.Equal(t, winner.ID, closing.BidID)
	notifier.AssertCalled(t, "BroadcastToUser", contractorID, "project.completed", mock.Anything)
}

func TestLifecycleService_FinalizeProject_ScoreOutOfRange(t *testing.T) {
	_, _, evals, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	for _, scores := range []models.EvaluationScores{
		{Quality: 0, Timeliness: 4, Communication: 5},
		{Quality: 5, Timeliness: 6, Communication: 5},
		{Quality: 5, Timeliness: 4, Communication: -1},
	} {
		_, err := svc.FinalizeProject(ctx, FinalizeInput{
			ProjectID: uuid.New(),
			ActorID:   uuid.New(),
			ActorRole: models.RoleClient,
			Scores:    scores,
			Comment:   "Комментарий достаточной длины.",
		})
		assert.True(t, apperror.IsValidation(err))
	}
	evals.AssertNotCalled(t, "CreateWithAggregates", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_FinalizeProject_CommentTooShort(t *testing.T) {
	_, _, _, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	_, err := svc.FinalizeProject(ctx, FinalizeInput{
		ProjectID: uuid.New(),
		ActorID:   uuid.New(),
		ActorRole: models.RoleClient,
		Scores:    models.EvaluationScores{Quality: 5, Timeliness: 5, Communication: 5},
		Comment:   "Коротко",
	})

	assert.True(t, apperror.IsValidation(err))
}

func TestLifecycleService_FinalizeProject_NoWinnerSelected(t *testing.T) {
	projects, _, _, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	project := inProgressProject(clientID)
	project.Status = models.ProjectStatusOpen

	projects.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.FinalizeProject(ctx, FinalizeInput{
		ProjectID: project.ID,
		ActorID:   clientID,
		ActorRole: models.RoleClient,
		Scores:    models.EvaluationScores{Quality: 5, Timeliness: 5, Communication: 5},
		Comment:   "Комментарий достаточной длины.",
	})

	assert.True(t, apperror.IsInvalidState(err))
}

func TestLifecycleService_FinalizeProject_AlreadyCompleted(t *testing.T) {
	projects, _, _, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	project := inProgressProject(clientID)
	project.Status = models.ProjectStatusCompleted

	projects.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := svc.FinalizeProject(ctx, FinalizeInput{
		ProjectID: project.ID,
		ActorID:   clientID,
		ActorRole: models.RoleClient,
		Scores:    models.EvaluationScores{Quality: 5, Timeliness: 5, Communication: 5},
		Comment:   "Комментарий достаточной длины.",
	})

	assert.True(t, apperror.IsInvalidState(err))
}

func TestLifecycleService_FinalizeProject_DuplicateEvaluation(t *testing.T) {
	projects, bids, evals, _, _, svc := newLifecycleFixture()
	ctx := context.Background()

	clientID := uuid.New()
	project := inProgressProject(clientID)
	winner := &models.Bid{ID: uuid.New(), ProjectID: project.ID, ContractorID: uuid.New(), Status: models.BidStatusAccepted}

	projects.On("GetByID", ctx, project.ID).Return(project, nil)
	bids.On("GetAcceptedForProject", ctx, project.ID).Return(winner, nil)
	evals.On("CreateWithAggregates", ctx, mock.Anything, mock.Anything).Return(repository.ErrEvaluationExists)

	_, err := svc.FinalizeProject(ctx, FinalizeInput{
		ProjectID: project.ID,
		ActorID:   clientID,
		ActorRole: models.RoleClient,
		Scores:    models.EvaluationScores{Quality: 5, Timeliness: 5, Communication: 5},
		Comment:   "Комментарий достаточной длины.",
	})

	assert.True(t, apperror.IsInvalidState(err))
}
