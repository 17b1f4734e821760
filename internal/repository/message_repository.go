package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stroybirzha/backend/internal/models"
)

// MessageRepository отвечает за переписку по откликам.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository создаёт новый экземпляр.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create добавляет сообщение в тред отклика.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (project_id, bid_id, sender_id, recipient_id, body, is_system)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		msg.ProjectID,
		msg.BidID,
		msg.SenderID,
		msg.RecipientID,
		msg.Body,
		msg.IsSystem,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return fmt.Errorf("message repository: create %w", err)
	}
	return nil
}

// ListThread возвращает сообщения треда по возрастанию времени.
func (r *MessageRepository) ListThread(ctx context.Context, bidID uuid.UUID, limit, offset int) ([]models.Message, error) {
	query := `SELECT * FROM messages WHERE bid_id = $1 ORDER BY created_at`
	args := []interface{}{bidID}
	argIndex := 2

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, offset)
	}

	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("message repository: list thread %w", err)
	}
	return messages, nil
}

// MarkThreadRead помечает прочитанными все сообщения треда, адресованные
// читателю. Повторный вызов ничего не меняет.
func (r *MessageRepository) MarkThreadRead(ctx context.Context, bidID, readerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE bid_id = $1 AND recipient_id = $2 AND is_read = FALSE
	`, bidID, readerID)
	if err != nil {
		return fmt.Errorf("message repository: mark thread read %w", err)
	}
	return nil
}

// CountUnreadInThread возвращает число непрочитанных сообщений треда для читателя.
// Счётчик всегда вычисляется, а не хранится.
func (r *MessageRepository) CountUnreadInThread(ctx context.Context, bidID, readerID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages
		WHERE bid_id = $1 AND recipient_id = $2 AND is_read = FALSE
	`, bidID, readerID)
	if err != nil {
		return 0, fmt.Errorf("message repository: count unread in thread %w", err)
	}
	return count, nil
}

// CountUnreadForUser возвращает общее число непрочитанных сообщений пользователя.
func (r *MessageRepository) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages
		WHERE recipient_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("message repository: count unread for user %w", err)
	}
	return count, nil
}
