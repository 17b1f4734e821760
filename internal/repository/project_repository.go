package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stroybirzha/backend/internal/models"
)

// Ошибки уровня репозитория.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrProjectCompleted = errors.New("project already completed")
)

// ProjectRepository отвечает за работу с проектами.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository создаёт новый экземпляр.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListFilterParams перечисляет поддерживаемые фильтры списка проектов.
// Явная структура вместо произвольной карты ключ-значение.
type ListFilterParams struct {
	Status   string
	ClientID *uuid.UUID
	Limit    int
	Offset   int
}

// ListResult содержит страницу проектов и общее количество.
type ListResult struct {
	Projects []models.Project
	Total    int
}

// CascadeResult содержит итоги административного каскадного удаления.
type CascadeResult struct {
	DeletedBids        int
	DeletedMessages    int
	DeletedEvaluations int
	// MediaPaths — пути файлов, которые нужно освободить во внешнем
	// хранилище после фиксации транзакции.
	MediaPaths []string
}

// GetByID возвращает проект по идентификатору.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	query := `
		SELECT id, client_id, title, description, max_price, deadline_at, status,
		       rejection_notified, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("project repository: get by id %w", err)
	}
	return &project, nil
}

// Create сохраняет проект и вложенные документы в одной транзакции.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project, attachmentIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("project repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO projects (client_id, title, description, max_price, deadline_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err = tx.QueryRowxContext(
		ctx,
		query,
		project.ClientID,
		project.Title,
		project.Description,
		project.MaxPrice,
		project.DeadlineAt,
		project.Status,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return fmt.Errorf("project repository: insert project %w", err)
	}

	if len(attachmentIDs) > 0 {
		// Batch INSERT для вложений
		attQuery := `INSERT INTO project_attachments (project_id, media_id) VALUES `
		attValues := make([]interface{}, 0, len(attachmentIDs)*2)

		for i, mediaID := range attachmentIDs {
			if i > 0 {
				attQuery += ", "
			}
			attQuery += fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2)
			attValues = append(attValues, project.ID, mediaID)
		}
		attQuery += " ON CONFLICT DO NOTHING"

		if _, err = tx.ExecContext(ctx, attQuery, attValues...); err != nil {
			return fmt.Errorf("project repository: batch insert attachments %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("project repository: commit %w", err)
	}

	return nil
}

// Update изменяет описание проекта. Статус этим методом не меняется:
// переходы статуса выполняют только транзакции выбора и завершения.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET title = $1,
		    description = $2,
		    max_price = $3,
		    deadline_at = $4,
		    updated_at = NOW()
		WHERE id = $5 AND client_id = $6
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		project.Title,
		project.Description,
		project.MaxPrice,
		project.DeadlineAt,
		project.ID,
		project.ClientID,
	).Scan(&project.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("project repository: update %w", err)
	}

	return nil
}

// List возвращает страницу проектов по фильтрам.
func (r *ProjectRepository) List(ctx context.Context, params ListFilterParams) (*ListResult, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if params.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, params.Status)
		argIndex++
	}
	if params.ClientID != nil {
		where += fmt.Sprintf(" AND client_id = $%d", argIndex)
		args = append(args, *params.ClientID)
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM projects"+where, args...); err != nil {
		return nil, fmt.Errorf("project repository: count %w", err)
	}

	query := `
		SELECT p.id, p.client_id, p.title, p.description, p.max_price, p.deadline_at,
		       p.status, p.rejection_notified, p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM bids b WHERE b.project_id = p.id) AS bids_count
		FROM projects p` + where + " ORDER BY p.created_at DESC"

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, params.Limit)
		argIndex++
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, params.Offset)
	}

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("project repository: list %w", err)
	}

	return &ListResult{Projects: projects, Total: total}, nil
}

// ListAttachments возвращает документы проекта вместе с медиа.
func (r *ProjectRepository) ListAttachments(ctx context.Context, projectID uuid.UUID) ([]models.ProjectAttachment, error) {
	query := `
		SELECT
			pa.id,
			pa.project_id,
			pa.media_id,
			pa.created_at,
			mf.id,
			mf.user_id,
			mf.file_path,
			mf.file_type,
			mf.file_size,
			mf.is_public,
			mf.created_at
		FROM project_attachments pa
		JOIN media_files mf ON mf.id = pa.media_id
		WHERE pa.project_id = $1
		ORDER BY pa.created_at
	`

	rows, err := r.db.QueryxContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("project repository: get attachments %w", err)
	}
	defer rows.Close()

	var attachments []models.ProjectAttachment
	for rows.Next() {
		var attachment models.ProjectAttachment
		var media models.MediaFile
		var mediaUserID *uuid.UUID

		if err := rows.Scan(
			&attachment.ID,
			&attachment.ProjectID,
			&attachment.MediaID,
			&attachment.CreatedAt,
			&media.ID,
			&mediaUserID,
			&media.FilePath,
			&media.FileType,
			&media.FileSize,
			&media.IsPublic,
			&media.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("project repository: scan attachment %w", err)
		}

		media.UserID = mediaUserID
		attachment.Media = &media
		attachments = append(attachments, attachment)
	}

	return attachments, rows.Err()
}

// DeleteCascade выполняет административное удаление проекта со всем связанным:
// сообщения, отклики, оценки, вложения и сам проект уходят одной транзакцией.
// Статусы жизненного цикла при этом не проверяются.
func (r *ProjectRepository) DeleteCascade(ctx context.Context, projectID uuid.UUID) (*CascadeResult, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("project repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result := &CascadeResult{}

	// Собираем пути файлов до удаления записей о них.
	pathsQuery := `
		SELECT mf.file_path
		FROM media_files mf
		JOIN project_attachments pa ON pa.media_id = mf.id
		WHERE pa.project_id = $1
	`
	if err = tx.SelectContext(ctx, &result.MediaPaths, pathsQuery, projectID); err != nil {
		return nil, fmt.Errorf("project repository: collect media paths %w", err)
	}

	// Подрядчики, чей агрегат рейтинга нужно пересчитать после удаления
	// их оценок. Собираем до удаления строк.
	var contractorIDs []uuid.UUID
	if err = tx.SelectContext(ctx, &contractorIDs, `
		SELECT DISTINCT contractor_id FROM evaluations WHERE project_id = $1
	`, projectID); err != nil {
		return nil, fmt.Errorf("project repository: collect evaluated contractors %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project repository: delete messages %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil {
		result.DeletedMessages = int(n)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM evaluations WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project repository: delete evaluations %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil {
		result.DeletedEvaluations = int(n)
	}

	// Удаление истории оценок — единственный путь, на котором агрегат
	// может уменьшиться; пересчитываем его в той же транзакции.
	for _, contractorID := range contractorIDs {
		if err = recomputeContractorAggregate(ctx, tx, contractorID); err != nil {
			return nil, fmt.Errorf("project repository: recompute rating aggregate %w", err)
		}
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM bids WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project repository: delete bids %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil {
		result.DeletedBids = int(n)
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM media_files
		WHERE id IN (SELECT media_id FROM project_attachments WHERE project_id = $1)
	`, projectID); err != nil {
		return nil, fmt.Errorf("project repository: delete media %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project repository: delete project %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = ErrProjectNotFound
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("project repository: commit %w", err)
	}

	return result, nil
}
