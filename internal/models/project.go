package models

import (
	"time"

	"github.com/google/uuid"
)

// Project описывает заявку заказчика на строительные работы.
type Project struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClientID    uuid.UUID  `db:"client_id" json:"client_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	// MaxPrice равен nil для открытого торга без верхней границы.
	MaxPrice          *float64            `db:"max_price" json:"max_price,omitempty"`
	DeadlineAt        time.Time           `db:"deadline_at" json:"deadline_at"`
	Status            string              `db:"status" json:"status"`
	RejectionNotified bool                `db:"rejection_notified" json:"-"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
	Attachments       []ProjectAttachment `json:"attachments,omitempty"`
	BidsCount         *int                `db:"bids_count" json:"bids_count,omitempty"`
}

// IsOwnedBy проверяет принадлежность проекта заказчику.
func (p *Project) IsOwnedBy(userID uuid.UUID) bool {
	return p.ClientID == userID
}

// Bid представляет отклик подрядчика на проект.
type Bid struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProjectID    uuid.UUID `db:"project_id" json:"project_id"`
	ContractorID uuid.UUID `db:"contractor_id" json:"contractor_id"`
	Price        float64   `db:"price" json:"price"`
	DurationDays int       `db:"duration_days" json:"duration_days"`
	Pitch        string    `db:"pitch" json:"pitch"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectAttachment описывает документ, прикреплённый к проекту.
type ProjectAttachment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ProjectID uuid.UUID  `db:"project_id" json:"project_id"`
	MediaID   uuid.UUID  `db:"media_id" json:"media_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Media     *MediaFile `json:"media,omitempty"`
}
