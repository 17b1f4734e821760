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

type mockMessageRepoFull struct {
	mock.Mock
}

func (m *mockMessageRepoFull) Create(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil {
		msg.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockMessageRepoFull) ListThread(ctx context.Context, bidID uuid.UUID, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, bidID, limit, offset)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *mockMessageRepoFull) MarkThreadRead(ctx context.Context, bidID, readerID uuid.UUID) error {
	args := m.Called(ctx, bidID, readerID)
	return args.Error(0)
}

func (m *mockMessageRepoFull) CountUnreadInThread(ctx context.Context, bidID, readerID uuid.UUID) (int, error) {
	args := m.Called(ctx, bidID, readerID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepoFull) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type messageFixture struct {
	messages *mockMessageRepoFull
	bids     *mockBidRepo
	projects *mockProjectRepoForBids
	svc      *MessageService

	clientID     uuid.UUID
	contractorID uuid.UUID
	project      *models.Project
	bid          *models.Bid
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()

	f := &messageFixture{
		messages:     new(mockMessageRepoFull),
		bids:         new(mockBidRepo),
		projects:     new(mockProjectRepoForBids),
		clientID:     uuid.New(),
		contractorID: uuid.New(),
	}
	f.svc = NewMessageService(f.messages, f.bids, f.projects)

	f.project = &models.Project{
		ID:       uuid.New(),
		ClientID: f.clientID,
		Status:   models.ProjectStatusInProgress,
	}
	f.bid = &models.Bid{
		ID:           uuid.New(),
		ProjectID:    f.project.ID,
		ContractorID: f.contractorID,
		Status:       models.BidStatusAccepted,
	}

	ctx := context.Background()
	f.bids.On("GetByID", ctx, f.bid.ID).Return(f.bid, nil)
	f.projects.On("GetByID", ctx, f.project.ID).Return(f.project, nil)
	return f
}

func TestMessageService_PostMessage_ContractorToClient(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.messages.On("Create", ctx, mock.AnythingOfType("*models.Message")).Return(nil)

	msg, err := f.svc.PostMessage(ctx, PostMessageInput{
		BidID:       f.bid.ID,
		SenderID:    f.contractorID,
		SenderRole:  models.RoleContractor,
		RecipientID: f.clientID,
		Body:        "Когда удобно показать объект?",
	})

	assert.NoError(t, err)
	assert.Equal(t, f.clientID, msg.RecipientID)
	assert.Equal(t, f.project.ID, msg.ProjectID)
	assert.False(t, msg.IsSystem)
}

func TestMessageService_PostMessage_ClientToContractor(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.messages.On("Create", ctx, mock.Anything).Return(nil)

	msg, err := f.svc.PostMessage(ctx, PostMessageInput{
		BidID:       f.bid.ID,
		SenderID:    f.clientID,
		SenderRole:  models.RoleClient,
		RecipientID: f.contractorID,
		Body:        "Завтра после обеда подойдёт.",
	})

	assert.NoError(t, err)
	assert.Equal(t, f.contractorID, msg.RecipientID)
}

func TestMessageService_PostMessage_OutsiderForbidden(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, PostMessageInput{
		BidID:       f.bid.ID,
		SenderID:    uuid.New(),
		SenderRole:  models.RoleContractor,
		RecipientID: f.clientID,
		Body:        "Посторонний в треде",
	})

	assert.True(t, apperror.IsForbidden(err))
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessageService_PostMessage_ModeratorAllowed(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.messages.On("Create", ctx, mock.Anything).Return(nil)

	msg, err := f.svc.PostMessage(ctx, PostMessageInput{
		BidID:       f.bid.ID,
		SenderID:    uuid.New(),
		SenderRole:  models.RoleModerator,
		RecipientID: f.contractorID,
		Body:        "Просьба соблюдать правила площадки.",
	})

	assert.NoError(t, err)
	assert.Equal(t, f.contractorID, msg.RecipientID)
}

func TestMessageService_PostMessage_MismatchedRecipient(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	// Подрядчик обязан адресовать заказчика, не самого себя и не третьих лиц.
	for _, recipient := range []uuid.UUID{f.contractorID, uuid.New()} {
		_, err := f.svc.PostMessage(ctx, PostMessageInput{
			BidID:       f.bid.ID,
			SenderID:    f.contractorID,
			SenderRole:  models.RoleContractor,
			RecipientID: recipient,
			Body:        "Сообщение не той стороне",
		})
		assert.True(t, apperror.IsForbidden(err))
	}
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessageService_PostMessage_ModeratorMayAddressEitherParty(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.messages.On("Create", ctx, mock.Anything).Return(nil)

	for _, recipient := range []uuid.UUID{f.contractorID, f.clientID} {
		msg, err := f.svc.PostMessage(ctx, PostMessageInput{
			BidID:       f.bid.ID,
			SenderID:    uuid.New(),
			SenderRole:  models.RoleModerator,
			RecipientID: recipient,
			Body:        "Сообщение от модератора",
		})
		assert.NoError(t, err)
		assert.Equal(t, recipient, msg.RecipientID)
	}

	_, err := f.svc.PostMessage(ctx, PostMessageInput{
		BidID:       f.bid.ID,
		SenderID:    uuid.New(),
		SenderRole:  models.RoleModerator,
		RecipientID: uuid.New(),
		Body:        "Модератор адресует постороннего",
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestMessageService_PostMessage_EmptyBody(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostMessage(ctx, PostMessageInput{
		BidID:       f.bid.ID,
		SenderID:    f.clientID,
		SenderRole:  models.RoleClient,
		RecipientID: f.contractorID,
		Body:        "   \t  ",
	})

	assert.True(t, apperror.IsValidation(err))
}

func TestMessageService_PostMessage_UnknownBid(t *testing.T) {
	messages := new(mockMessageRepoFull)
	bids := new(mockBidRepo)
	projects := new(mockProjectRepoForBids)
	svc := NewMessageService(messages, bids, projects)
	ctx := context.Background()

	bidID := uuid.New()
	bids.On("GetByID", ctx, bidID).Return(nil, repository.ErrBidNotFound)

	_, err := svc.PostMessage(ctx, PostMessageInput{
		BidID:       bidID,
		SenderID:    uuid.New(),
		SenderRole:  models.RoleClient,
		RecipientID: uuid.New(),
		Body:        "Сообщение в несуществующий тред",
	})

	assert.True(t, apperror.IsNotFound(err))
}

func TestMessageService_MarkThreadRead_Idempotent(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.messages.On("MarkThreadRead", ctx, f.bid.ID, f.clientID).Return(nil)

	assert.NoError(t, f.svc.MarkThreadRead(ctx, f.bid.ID, f.clientID, models.RoleClient))
	// Повторный вызов не считается ошибкой.
	assert.NoError(t, f.svc.MarkThreadRead(ctx, f.bid.ID, f.clientID, models.RoleClient))
	f.messages.AssertNumberOfCalls(t, "MarkThreadRead", 2)
}

func TestMessageService_MarkThreadRead_OutsiderForbidden(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	err := f.svc.MarkThreadRead(ctx, f.bid.ID, uuid.New(), models.RoleContractor)
	assert.True(t, apperror.IsForbidden(err))
}

func TestMessageService_ListThread_VisibleToParties(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.messages.On("ListThread", ctx, f.bid.ID, 50, 0).Return([]models.Message{}, nil)

	_, err := f.svc.ListThread(ctx, f.bid.ID, f.contractorID, models.RoleContractor, 0, 0)
	assert.NoError(t, err)

	_, err = f.svc.ListThread(ctx, f.bid.ID, uuid.New(), models.RoleContractor, 0, 0)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.svc.ListThread(ctx, f.bid.ID, uuid.New(), models.RoleAdmin, 0, 0)
	assert.NoError(t, err)
}
