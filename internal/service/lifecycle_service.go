package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stroybirzha/backend/internal/goroutine"
	"github.com/stroybirzha/backend/internal/logger"
	"github.com/stroybirzha/backend/internal/models"
	"github.com/stroybirzha/backend/internal/pkg/apperror"
	"github.com/stroybirzha/backend/internal/repository"
	"github.com/stroybirzha/backend/internal/validation"
)

// BidRepoForLifecycle описывает операции с откликами, нужные движку
// жизненного цикла.
type BidRepoForLifecycle interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	GetAcceptedForProject(ctx context.Context, projectID uuid.UUID) (*models.Bid, error)
	SelectWinner(ctx context.Context, projectID, bidID uuid.UUID) (*repository.SelectionResult, error)
}

// EvaluationRepoForLifecycle описывает транзакцию завершения.
type EvaluationRepoForLifecycle interface {
	CreateWithAggregates(ctx context.Context, eval *models.Evaluation, closing *models.Message) error
}

// MessageRepoForLifecycle описывает запись системных сообщений рассылки.
type MessageRepoForLifecycle interface {
	Create(ctx context.Context, msg *models.Message) error
}

// LifecycleService — движок жизненного цикла отклика: выбор победителя
// и завершение проекта с закрывающей оценкой. Оба перехода выполняются
// одной транзакцией хранилища; рассылка уведомлений идёт уже после
// фиксации и не может её откатить.
type LifecycleService struct {
	projects ProjectRepoForBids
	bids     BidRepoForLifecycle
	evals    EvaluationRepoForLifecycle
	messages MessageRepoForLifecycle
	users    UserRepoForNotify
	hub      Notifier
	mailer   Mailer

	minCommentLength int
}

// NewLifecycleService создаёт движок жизненного цикла.
func NewLifecycleService(
	projects ProjectRepoForBids,
	bids BidRepoForLifecycle,
	evals EvaluationRepoForLifecycle,
	messages MessageRepoForLifecycle,
	users UserRepoForNotify,
	minCommentLength int,
) *LifecycleService {
	if minCommentLength <= 0 {
		minCommentLength = 10
	}
	return &LifecycleService{
		projects:         projects,
		bids:             bids,
		evals:            evals,
		messages:         messages,
		users:            users,
		minCommentLength: minCommentLength,
	}
}

// SetHub устанавливает канал push-уведомлений.
func (s *LifecycleService) SetHub(hub Notifier) {
	s.hub = hub
}

// SetMailer устанавливает внешнюю почтовую доставку.
func (s *LifecycleService) SetMailer(mailer Mailer) {
	s.mailer = mailer
}

// SelectionOutcome возвращает итог выбора победителя.
type SelectionOutcome struct {
	Accepted *models.Bid  `json:"accepted"`
	Rejected []models.Bid `json:"rejected"`
}

// SelectBid атомарно выбирает победителя среди откликов проекта: выбранный
// отклик становится accepted, остальные — rejected, проект переходит в
// in_progress. Повторный вызов на проекте в работе трактуется как смена
// решения и перерешивает выбор той же транзакцией; отклонённые при этом
// повторно не уведомляются.
func (s *LifecycleService) SelectBid(ctx context.Context, projectID, bidID, actorID uuid.UUID, actorRole string) (*SelectionOutcome, error) {
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

	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить отклик")
	}
	if bid.ProjectID != projectID {
		return nil, apperror.ErrBidNotFound
	}

	result, err := s.bids.SelectWinner(ctx, projectID, bidID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProjectNotFound):
			return nil, apperror.ErrProjectNotFound
		case errors.Is(err, repository.ErrBidNotFound):
			return nil, apperror.ErrBidNotFound
		case errors.Is(err, repository.ErrProjectCompleted):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "проект уже завершён")
		default:
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выполнить выбор победителя")
		}
	}

	s.fanOutSelection(ctx, project, result)

	return &SelectionOutcome{Accepted: result.Accepted, Rejected: result.Rejected}, nil
}

// fanOutSelection рассылает сообщения и уведомления после фиксации выбора.
// Каждый отказ логируется по адресату и не влияет на результат операции.
func (s *LifecycleService) fanOutSelection(ctx context.Context, project *models.Project, result *repository.SelectionResult) {
	winner := result.Accepted

	winnerMsg := &models.Message{
		ProjectID:   project.ID,
		BidID:       winner.ID,
		SenderID:    project.ClientID,
		RecipientID: winner.ContractorID,
		Body:        fmt.Sprintf("Ваше предложение по проекту «%s» выбрано заказчиком. Можно приступать к работе.", project.Title),
		IsSystem:    true,
	}
	if err := s.messages.Create(ctx, winnerMsg); err != nil {
		s.logFanOutFailure(err, winner.ContractorID, "selection winner message")
	}
	s.notifyBestEffort(ctx, winner.ContractorID, "bid.accepted", winner, "bid_accepted")

	// Отклонённым рассылаем ровно один раз за проект: при смене решения
	// прежняя рассылка уже состоялась, флаг проекта это фиксирует.
	if result.AlreadyNotified {
		return
	}

	for i := range result.Rejected {
		rejected := &result.Rejected[i]
		msg := &models.Message{
			ProjectID:   project.ID,
			BidID:       rejected.ID,
			SenderID:    project.ClientID,
			RecipientID: rejected.ContractorID,
			Body:        fmt.Sprintf("По проекту «%s» заказчик выбрал другое предложение.", project.Title),
			IsSystem:    true,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			s.logFanOutFailure(err, rejected.ContractorID, "selection rejected message")
		}
		s.notifyBestEffort(ctx, rejected.ContractorID, "bid.rejected", rejected, "bid_rejected")
	}
}

// FinalizeInput описывает закрывающую оценку.
type FinalizeInput struct {
	ProjectID uuid.UUID
	ActorID   uuid.UUID
	ActorRole string
	Scores    models.EvaluationScores
	Comment   string
	Recommend bool
}

// FinalizeProject записывает закрывающую оценку, пересчитывает агрегат
// рейтинга подрядчика и переводит проект в завершённое состояние одной
// транзакцией. Завершённый проект терминален: дальнейшие выбор и
// завершение невозможны.
func (s *LifecycleService) FinalizeProject(ctx context.Context, in FinalizeInput) (*models.Evaluation, error) {
	for _, score := range []int{in.Scores.Quality, in.Scores.Timeliness, in.Scores.Communication} {
		if score < 1 || score > 5 {
			return nil, apperror.New(apperror.ErrCodeValidation, "оценка должна быть от 1 до 5")
		}
	}

	comment := validation.SanitizeString(in.Comment)
	if err := validation.ValidateLength("комментарий", comment, s.minCommentLength, 2000); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить проект")
	}

	if !project.IsOwnedBy(in.ActorID) && !models.IsOverrideRole(in.ActorRole) {
		return nil, apperror.ErrForbidden
	}

	switch project.Status {
	case models.ProjectStatusInProgress:
		// допустимое состояние
	case models.ProjectStatusCompleted:
		return nil, apperror.New(apperror.ErrCodeInvalidState, "проект уже завершён")
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState, "исполнитель ещё не выбран")
	}

	winner, err := s.bids.GetAcceptedForProject(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "исполнитель ещё не выбран")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить принятый отклик")
	}

	eval := &models.Evaluation{
		ProjectID:     in.ProjectID,
		ClientID:      project.ClientID,
		ContractorID:  winner.ContractorID,
		Quality:       in.Scores.Quality,
		Timeliness:    in.Scores.Timeliness,
		Communication: in.Scores.Communication,
		Overall:       in.Scores.Overall(),
		Comment:       comment,
		Recommend:     in.Recommend,
	}

	closing := &models.Message{
		ProjectID:   in.ProjectID,
		BidID:       winner.ID,
		SenderID:    project.ClientID,
		RecipientID: winner.ContractorID,
		Body:        fmt.Sprintf("Проект «%s» завершён. Спасибо за работу! Итоговая оценка: %.1f из 5.", project.Title, eval.Overall),
		IsSystem:    true,
	}

	if err := s.evals.CreateWithAggregates(ctx, eval, closing); err != nil {
		switch {
		case errors.Is(err, repository.ErrProjectNotFound):
			return nil, apperror.ErrProjectNotFound
		case errors.Is(err, repository.ErrProjectNotInWork):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "проект не находится в работе")
		case errors.Is(err, repository.ErrEvaluationExists):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "оценка по проекту уже оставлена")
		default:
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось завершить проект")
		}
	}

	// Письмо уходит вне транзакции: его отказ итог не откатывает.
	s.notifyBestEffort(ctx, winner.ContractorID, "project.completed", eval, "project_completed")

	return eval, nil
}

func (s *LifecycleService) logFanOutFailure(err error, userID uuid.UUID, stage string) {
	if logger.Log != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warnf("lifecycle service: сбой рассылки (%s)", stage)
	}
}

// notifyBestEffort отправляет push и письмо, не влияя на основной результат.
func (s *LifecycleService) notifyBestEffort(ctx context.Context, userID uuid.UUID, event string, data interface{}, templateKind string) {
	if s.hub != nil {
		if err := s.hub.BroadcastToUser(userID, event, data); err != nil {
			s.logFanOutFailure(err, userID, "push")
		}
	}

	if s.mailer == nil || s.users == nil {
		return
	}
	goroutine.SafeGoWithContext(context.WithoutCancel(ctx), func(ctx context.Context) {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			s.logFanOutFailure(err, userID, "mail recipient")
			return
		}
		payload := map[string]interface{}{"event": event, "data": data}
		if err := s.mailer.Send(ctx, templateKind, user.Email, payload); err != nil {
			s.logFanOutFailure(err, userID, "mail")
		}
	})
}
