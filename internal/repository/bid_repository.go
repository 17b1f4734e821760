package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stroybirzha/backend/internal/models"
)

var (
	ErrBidNotFound  = errors.New("bid not found")
	ErrDuplicateBid = errors.New("duplicate bid")
)

// uniqueViolation — код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

// BidRepository отвечает за работу с откликами.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository создаёт новый экземпляр.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// SelectionResult содержит итоги транзакции выбора победителя.
type SelectionResult struct {
	Accepted *models.Bid
	Rejected []models.Bid
	// AlreadyNotified — прежнее значение флага rejection_notified проекта.
	// Если true, уведомления отклонённым уже рассылались и повторная
	// рассылка при смене решения не нужна.
	AlreadyNotified bool
}

// GetByID возвращает отклик по идентификатору.
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := r.db.GetContext(ctx, &bid, `SELECT * FROM bids WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("bid repository: get by id %w", err)
	}
	return &bid, nil
}

// GetByProjectAndContractor возвращает отклик подрядчика на проект, если он есть.
func (r *BidRepository) GetByProjectAndContractor(ctx context.Context, projectID, contractorID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.GetContext(ctx, &bid,
		`SELECT * FROM bids WHERE project_id = $1 AND contractor_id = $2`, projectID, contractorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("bid repository: get by project and contractor %w", err)
	}
	return &bid, nil
}

// ListByProject возвращает все отклики проекта.
func (r *BidRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list by project %w", err)
	}
	return bids, nil
}

// ListByContractor возвращает отклики подрядчика.
func (r *BidRepository) ListByContractor(ctx context.Context, contractorID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids,
		`SELECT * FROM bids WHERE contractor_id = $1 ORDER BY created_at DESC`, contractorID)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list by contractor %w", err)
	}
	return bids, nil
}

// GetAcceptedForProject возвращает принятый отклик проекта.
func (r *BidRepository) GetAcceptedForProject(ctx context.Context, projectID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.GetContext(ctx, &bid,
		`SELECT * FROM bids WHERE project_id = $1 AND status = 'accepted'`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("bid repository: get accepted %w", err)
	}
	return &bid, nil
}

// CreateWithMessage сохраняет отклик и первое системное сообщение треда
// одной транзакцией: переписка по отклику никогда не бывает пустой.
func (r *BidRepository) CreateWithMessage(ctx context.Context, bid *models.Bid, seed *models.Message) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("bid repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO bids (project_id, contractor_id, price, duration_days, pitch, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err = tx.QueryRowxContext(
		ctx,
		query,
		bid.ProjectID,
		bid.ContractorID,
		bid.Price,
		bid.DurationDays,
		bid.Pitch,
		bid.Status,
	).Scan(&bid.ID, &bid.CreatedAt, &bid.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = ErrDuplicateBid
			return err
		}
		return fmt.Errorf("bid repository: insert bid %w", err)
	}

	seed.BidID = bid.ID
	seed.ProjectID = bid.ProjectID

	msgQuery := `
		INSERT INTO messages (project_id, bid_id, sender_id, recipient_id, body, is_system)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at
	`
	if err = tx.QueryRowxContext(
		ctx,
		msgQuery,
		seed.ProjectID,
		seed.BidID,
		seed.SenderID,
		seed.RecipientID,
		seed.Body,
	).Scan(&seed.ID, &seed.CreatedAt); err != nil {
		return fmt.Errorf("bid repository: insert seed message %w", err)
	}
	seed.IsSystem = true

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("bid repository: commit %w", err)
	}

	return nil
}

// SelectWinner атомарно выбирает победителя: все отклики проекта переводятся
// в rejected, выбранный — в accepted, проект уходит в in_progress. Повторный
// вызов на том же проекте перерешивает выбор теми же обновлениями.
// Блокировка строки проекта сериализует конкурентные выборы; побеждает
// последняя зафиксированная транзакция.
func (r *BidRepository) SelectWinner(ctx context.Context, projectID, bidID uuid.UUID) (*SelectionResult, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("bid repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var project struct {
		Status            string `db:"status"`
		RejectionNotified bool   `db:"rejection_notified"`
	}
	err = tx.GetContext(ctx, &project,
		`SELECT status, rejection_notified FROM projects WHERE id = $1 FOR UPDATE`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrProjectNotFound
			return nil, err
		}
		return nil, fmt.Errorf("bid repository: lock project %w", err)
	}

	if project.Status == models.ProjectStatusCompleted {
		err = ErrProjectCompleted
		return nil, err
	}

	result := &SelectionResult{AlreadyNotified: project.RejectionNotified}

	// Сначала отклоняем остальные отклики (включая прежнего победителя),
	// затем принимаем выбранный: частичный индекс единственного accepted
	// не допускает другого порядка.
	rejectQuery := `
		UPDATE bids
		SET status = 'rejected', updated_at = NOW()
		WHERE project_id = $1 AND id <> $2
		RETURNING id, project_id, contractor_id, price, duration_days, pitch, status, created_at, updated_at
	`
	if err = tx.SelectContext(ctx, &result.Rejected, rejectQuery, projectID, bidID); err != nil {
		return nil, fmt.Errorf("bid repository: reject bids %w", err)
	}

	var accepted models.Bid
	acceptQuery := `
		UPDATE bids
		SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND project_id = $2
		RETURNING id, project_id, contractor_id, price, duration_days, pitch, status, created_at, updated_at
	`
	if err = tx.GetContext(ctx, &accepted, acceptQuery, bidID, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrBidNotFound
			return nil, err
		}
		return nil, fmt.Errorf("bid repository: accept bid %w", err)
	}
	result.Accepted = &accepted

	if _, err = tx.ExecContext(ctx, `
		UPDATE projects
		SET status = 'in_progress', rejection_notified = TRUE, updated_at = NOW()
		WHERE id = $1
	`, projectID); err != nil {
		return nil, fmt.Errorf("bid repository: advance project %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("bid repository: commit %w", err)
	}

	return result, nil
}
