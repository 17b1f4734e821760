package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message описывает сообщение в переписке по отклику.
// Отклик является ключом переписки: все сообщения между заказчиком и
// подрядчиком по конкретному предложению живут в одном треде.
type Message struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProjectID   uuid.UUID `db:"project_id" json:"project_id"`
	BidID       uuid.UUID `db:"bid_id" json:"bid_id"`
	SenderID    uuid.UUID `db:"sender_id" json:"sender_id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Body        string    `db:"body" json:"body"`
	// IsSystem отмечает сообщения, созданные самим движком при смене статусов.
	IsSystem  bool      `db:"is_system" json:"is_system"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Notification описывает событие, отправленное пользователю.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
