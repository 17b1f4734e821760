package models

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation описывает закрывающую оценку подрядчика заказчиком.
// Создаётся ровно один раз, при завершении проекта, и больше не меняется.
type Evaluation struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ProjectID     uuid.UUID `db:"project_id" json:"project_id"`
	ClientID      uuid.UUID `db:"client_id" json:"client_id"`
	ContractorID  uuid.UUID `db:"contractor_id" json:"contractor_id"`
	Quality       int       `db:"quality" json:"quality"`
	Timeliness    int       `db:"timeliness" json:"timeliness"`
	Communication int       `db:"communication" json:"communication"`
	// Overall — среднее арифметическое трёх оценок, считается при создании.
	Overall   float64   `db:"overall" json:"overall"`
	Comment   string    `db:"comment" json:"comment"`
	Recommend bool      `db:"recommend" json:"recommend"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EvaluationScores группирует три оценки закрывающей формы.
type EvaluationScores struct {
	Quality       int `json:"quality"`
	Timeliness    int `json:"timeliness"`
	Communication int `json:"communication"`
}

// Overall возвращает среднее арифметическое трёх оценок.
func (s EvaluationScores) Overall() float64 {
	return float64(s.Quality+s.Timeliness+s.Communication) / 3
}
