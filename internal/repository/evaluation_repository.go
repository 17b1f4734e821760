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
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrEvaluationExists   = errors.New("evaluation already exists")
	ErrProjectNotInWork   = errors.New("project is not in progress")
)

// EvaluationRepository отвечает за закрывающие оценки и агрегат рейтинга.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository создаёт новый экземпляр.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// CreateWithAggregates выполняет транзакцию завершения проекта: вставляет
// оценку, пересчитывает агрегат рейтинга подрядчика полным перечитыванием
// его оценок, переводит проект в completed и добавляет закрывающее
// системное сообщение. Все четыре записи фиксируются вместе или никак.
func (r *EvaluationRepository) CreateWithAggregates(ctx context.Context, eval *models.Evaluation, closing *models.Message) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("evaluation repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status string
	err = tx.GetContext(ctx, &status, `SELECT status FROM projects WHERE id = $1 FOR UPDATE`, eval.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrProjectNotFound
			return err
		}
		return fmt.Errorf("evaluation repository: lock project %w", err)
	}
	if status != models.ProjectStatusInProgress {
		err = ErrProjectNotInWork
		return err
	}

	insertQuery := `
		INSERT INTO evaluations (project_id, client_id, contractor_id, quality, timeliness, communication, overall, comment, recommend)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	if err = tx.QueryRowxContext(
		ctx,
		insertQuery,
		eval.ProjectID,
		eval.ClientID,
		eval.ContractorID,
		eval.Quality,
		eval.Timeliness,
		eval.Communication,
		eval.Overall,
		eval.Comment,
		eval.Recommend,
	).Scan(&eval.ID, &eval.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = ErrEvaluationExists
			return err
		}
		return fmt.Errorf("evaluation repository: insert evaluation %w", err)
	}

	// Полное перечитывание вместо инкремента: объём оценок на подрядчика
	// мал, корректность важнее. Новая оценка уже видна внутри транзакции.
	if err = recomputeContractorAggregate(ctx, tx, eval.ContractorID); err != nil {
		return fmt.Errorf("evaluation repository: update rating aggregate %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = 'completed', updated_at = NOW() WHERE id = $1
	`, eval.ProjectID); err != nil {
		return fmt.Errorf("evaluation repository: complete project %w", err)
	}

	msgQuery := `
		INSERT INTO messages (project_id, bid_id, sender_id, recipient_id, body, is_system)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at
	`
	if err = tx.QueryRowxContext(
		ctx,
		msgQuery,
		closing.ProjectID,
		closing.BidID,
		closing.SenderID,
		closing.RecipientID,
		closing.Body,
	).Scan(&closing.ID, &closing.CreatedAt); err != nil {
		return fmt.Errorf("evaluation repository: insert closing message %w", err)
	}
	closing.IsSystem = true

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("evaluation repository: commit %w", err)
	}

	return nil
}

// recomputeContractorAggregate перечитывает агрегат рейтинга подрядчика
// с нуля по его оценкам, видимым внутри транзакции. Единственный способ
// изменить average_rating и evaluations_count: вызывается при завершении
// проекта и при административном удалении истории оценок.
func recomputeContractorAggregate(ctx context.Context, tx *sqlx.Tx, contractorID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET average_rating = (SELECT COALESCE(AVG(overall), 0) FROM evaluations WHERE contractor_id = $1),
		    evaluations_count = (SELECT COUNT(*) FROM evaluations WHERE contractor_id = $1),
		    updated_at = NOW()
		WHERE user_id = $1
	`, contractorID)
	return err
}

// GetByProject возвращает оценку по проекту.
func (r *EvaluationRepository) GetByProject(ctx context.Context, projectID uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	err := r.db.GetContext(ctx, &eval, `SELECT * FROM evaluations WHERE project_id = $1`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("evaluation repository: get by project %w", err)
	}
	return &eval, nil
}

// ListByContractor возвращает оценки подрядчика.
func (r *EvaluationRepository) ListByContractor(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Evaluation, error) {
	var evals []models.Evaluation
	err := r.db.SelectContext(ctx, &evals, `
		SELECT * FROM evaluations WHERE contractor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, contractorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("evaluation repository: list by contractor %w", err)
	}
	return evals, nil
}
