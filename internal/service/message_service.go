package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/validation"
)

// MessageRepoIface описывает взаимодействие сервиса с хранилищем сообщений.
type MessageRepoIface interface {
	Create(ctx context.Context, msg *models.Message) error
	ListThread(ctx context.Context, bidID uuid.UUID, limit, offset int) ([]models.Message, error)
	MarkThreadRead(ctx context.Context, bidID, readerID uuid.UUID) error
	CountUnreadInThread(ctx context.Context, bidID, readerID uuid.UUID) (int, error)
	CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// BidRepoForMessages описывает чтение откликов для проверки доступа к треду.
type BidRepoForMessages interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
}

// MessageService содержит бизнес-логику переписки по отклику.
// Тред однозначно задаётся откликом: участники — подрядчик, подавший
// отклик, и заказчик проекта; модератор видит любой тред.
type MessageService struct {
	messages MessageRepoIface
	bids     BidRepoForMessages
	projects ProjectRepoForBids
	hub      Notifier
}

// NewMessageService создаёт новый сервис переписки.
func NewMessageService(messages MessageRepoIface, bids BidRepoForMessages, projects ProjectRepoForBids) *MessageService {
	return &MessageService{messages: messages, bids: bids, projects: projects}
}

// SetHub устанавливает канал push-уведомлений.
func (s *MessageService) SetHub(hub Notifier) {
	s.hub = hub
}

// threadParties возвращает отклик, проект и пары сторон треда.
func (s *MessageService) threadParties(ctx context.Context, bidID uuid.UUID) (*models.Bid, *models.Project, error) {
	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, nil, apperror.ErrThreadNotFound
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить отклик")
	}

	project, err := s.projects.GetByID(ctx, bid.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, nil, apperror.ErrThreadNotFound
		}
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проект")
	}

	return bid, project, nil
}

func isThreadParty(bid *models.Bid, project *models.Project, userID uuid.UUID) bool {
	return userID == bid.ContractorID || userID == project.ClientID
}

// PostMessageInput описывает входные данные сообщения.
type PostMessageInput struct {
	BidID       uuid.UUID
	SenderID    uuid.UUID
	SenderRole  string
	RecipientID uuid.UUID
	Body        string
}

// PostMessage отправляет сообщение в тред отклика. Писать могут только
// стороны треда и модератор; адресатом стороны всегда выступает
// противоположная сторона, модератор может адресовать любую из сторон.
func (s *MessageService) PostMessage(ctx context.Context, in PostMessageInput) (*models.Message, error) {
	bid, project, err := s.threadParties(ctx, in.BidID)
	if err != nil {
		return nil, err
	}

	switch {
	case in.SenderID == bid.ContractorID:
		if in.RecipientID != project.ClientID {
			return nil, apperror.ErrForbidden
		}
	case in.SenderID == project.ClientID:
		if in.RecipientID != bid.ContractorID {
			return nil, apperror.ErrForbidden
		}
	case models.IsOverrideRole(in.SenderRole):
		if !isThreadParty(bid, project, in.RecipientID) {
			return nil, apperror.ErrForbidden
		}
	default:
		return nil, apperror.ErrForbidden
	}

	body := validation.SanitizeString(in.Body)
	if body == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "сообщение не может быть пустым")
	}
	if err := validation.ValidateLength("сообщение", body, 1, 5000); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	msg := &models.Message{
		ProjectID:   bid.ProjectID,
		BidID:       in.BidID,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Body:        body,
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отправить сообщение")
	}

	if s.hub != nil {
		// Отказ push не влияет на доставку сообщения.
		_ = s.hub.BroadcastToUser(in.RecipientID, "message.new", msg)
	}

	return msg, nil
}

// ListThread возвращает сообщения треда в хронологическом порядке.
func (s *MessageService) ListThread(ctx context.Context, bidID, viewerID uuid.UUID, viewerRole string, limit, offset int) ([]models.Message, error) {
	bid, project, err := s.threadParties(ctx, bidID)
	if err != nil {
		return nil, err
	}

	if !isThreadParty(bid, project, viewerID) && !models.IsOverrideRole(viewerRole) {
		return nil, apperror.ErrForbidden
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.messages.ListThread(ctx, bidID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить переписку")
	}
	return msgs, nil
}

// MarkThreadRead помечает все входящие сообщения треда прочитанными.
// Операция идемпотентна: повторный вызов ничего не меняет.
func (s *MessageService) MarkThreadRead(ctx context.Context, bidID, readerID uuid.UUID, readerRole string) error {
	bid, project, err := s.threadParties(ctx, bidID)
	if err != nil {
		return err
	}

	if !isThreadParty(bid, project, readerID) && !models.IsOverrideRole(readerRole) {
		return apperror.ErrForbidden
	}

	if err := s.messages.MarkThreadRead(ctx, bidID, readerID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отметить переписку прочитанной")
	}
	return nil
}

// CountUnreadInThread возвращает число непрочитанных сообщений треда
// для читателя.
func (s *MessageService) CountUnreadInThread(ctx context.Context, bidID, readerID uuid.UUID) (int, error) {
	count, err := s.messages.CountUnreadInThread(ctx, bidID, readerID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось подсчитать непрочитанные")
	}
	return count, nil
}

// CountUnread возвращает суммарное число непрочитанных сообщений
// пользователя по всем тредам.
func (s *MessageService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось подсчитать непрочитанные")
	}
	return count, nil
}
