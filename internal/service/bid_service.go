package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stroybirzha/backend/internal/goroutine"
	"github.com/stroybirzha/backend/internal/logger"
	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/validation"
)

// BidRepository описывает взаимодействие сервиса с хранилищем откликов.
type BidRepository interface {
	CreateWithMessage(ctx context.Context, bid *models.Bid, seed *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	GetByProjectAndContractor(ctx context.Context, projectID, contractorID uuid.UUID) (*models.Bid, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Bid, error)
	ListByContractor(ctx context.Context, contractorID uuid.UUID) ([]models.Bid, error)
}

// ProjectRepoForBids описывает минимальный контракт чтения проектов.
type ProjectRepoForBids interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Notifier интерфейс для отправки push-уведомлений.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// Mailer описывает внешнюю доставку писем. Отказ доставки никогда не
// влияет на результат операции движка.
type Mailer interface {
	Send(ctx context.Context, templateKind, recipientAddress string, payload map[string]interface{}) error
}

// UserRepoForNotify описывает минимальный контракт получения адресатов.
type UserRepoForNotify interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// BidService содержит бизнес-логику подачи откликов.
type BidService struct {
	bids     BidRepository
	projects ProjectRepoForBids
	users    UserRepoForNotify
	hub      Notifier
	mailer   Mailer
	// now подменяется в тестах для проверки границы дедлайна.
	now func() time.Time
}

// NewBidService создаёт новый сервис откликов.
func NewBidService(bids BidRepository, projects ProjectRepoForBids, users UserRepoForNotify) *BidService {
	return &BidService{bids: bids, projects: projects, users: users, now: time.Now}
}

// SetHub устанавливает канал push-уведомлений.
func (s *BidService) SetHub(hub Notifier) {
	s.hub = hub
}

// SetMailer устанавливает внешнюю почтовую доставку.
func (s *BidService) SetMailer(mailer Mailer) {
	s.mailer = mailer
}

// SubmitBidInput описывает входные данные отклика.
type SubmitBidInput struct {
	ProjectID    uuid.UUID
	ContractorID uuid.UUID
	Price        float64
	DurationDays int
	Pitch        string
}

// SubmitBid создаёт отклик подрядчика на открытый проект.
// Все проверки выполняются до любой записи; при отказе валидации
// состояние хранилища не меняется.
func (s *BidService) SubmitBid(ctx context.Context, in SubmitBidInput) (*models.Bid, error) {
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проект")
	}

	if project.Status != models.ProjectStatusOpen {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "приём откликов по проекту закрыт")
	}

	// Просроченный проект никем не закрывается принудительно:
	// он просто перестаёт принимать новые отклики. Подача ровно в
	// момент дедлайна ещё допустима.
	if s.now().After(project.DeadlineAt) {
		return nil, apperror.New(apperror.ErrCodeExpired, "срок подачи откликов истёк")
	}

	if project.ClientID == in.ContractorID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственный проект")
	}

	if in.Price <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена должна быть больше нуля")
	}
	if project.MaxPrice != nil && in.Price > *project.MaxPrice {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена превышает максимальную цену проекта")
	}
	if in.DurationDays <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок выполнения должен быть больше нуля")
	}

	existing, err := s.bids.GetByProjectAndContractor(ctx, in.ProjectID, in.ContractorID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить отклики")
	}
	if existing != nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на этот проект")
	}

	pitch := validation.SanitizeString(in.Pitch)

	bid := &models.Bid{
		ProjectID:    in.ProjectID,
		ContractorID: in.ContractorID,
		Price:        in.Price,
		DurationDays: in.DurationDays,
		Pitch:        pitch,
		Status:       models.BidStatusPending,
	}

	// Первое сообщение треда — сводка предложения для заказчика.
	// Тред создаётся вместе с откликом, поэтому никогда не пуст.
	seed := &models.Message{
		SenderID:    in.ContractorID,
		RecipientID: project.ClientID,
		Body:        formatBidSummary(bid),
	}

	if err := s.bids.CreateWithMessage(ctx, bid, seed); err != nil {
		if errors.Is(err, repository.ErrDuplicateBid) {
			return nil, apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на этот проект")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить отклик")
	}

	// Уведомление заказчика — побочный канал: отказ только логируется.
	s.notifyBestEffort(ctx, project.ClientID, "bid.submitted", bid, "new_bid")

	return bid, nil
}

// GetBid возвращает отклик по идентификатору.
func (s *BidService) GetBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	bid, err := s.bids.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить отклик")
	}
	return bid, nil
}

// ListProjectBids возвращает отклики проекта; полный список видит
// только владелец проекта или модератор.
func (s *BidService) ListProjectBids(ctx context.Context, projectID, actorID uuid.UUID, actorRole string) ([]models.Bid, error) {
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

	return s.bids.ListByProject(ctx, projectID)
}

// ListMyBids возвращает отклики текущего подрядчика.
func (s *BidService) ListMyBids(ctx context.Context, contractorID uuid.UUID) ([]models.Bid, error) {
	return s.bids.ListByContractor(ctx, contractorID)
}

// notifyBestEffort отправляет push и письмо, не влияя на основной результат.
func (s *BidService) notifyBestEffort(ctx context.Context, userID uuid.UUID, event string, data interface{}, templateKind string) {
	if s.hub != nil {
		if err := s.hub.BroadcastToUser(userID, event, data); err != nil && logger.Log != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("bid service: не удалось отправить push")
		}
	}

	if s.mailer == nil || s.users == nil {
		return
	}
	goroutine.SafeGoWithContext(context.WithoutCancel(ctx), func(ctx context.Context) {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			if logger.Log != nil {
				logger.Log.WithError(err).Warn("bid service: адресат письма не найден")
			}
			return
		}
		payload := map[string]interface{}{"event": event, "data": data}
		if err := s.mailer.Send(ctx, templateKind, user.Email, payload); err != nil && logger.Log != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("bid service: не удалось отправить письмо")
		}
	})
}

// formatBidSummary собирает текст первого сообщения треда.
func formatBidSummary(bid *models.Bid) string {
	summary := fmt.Sprintf("Новый отклик: цена %.2f, срок %d дн.", bid.Price, bid.DurationDays)
	if bid.Pitch != "" {
		summary += "\n" + bid.Pitch
	}
	return summary
}
