package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionResult is the final score of one finished play session.
type SessionResult struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StationID  string    `gorm:"index;not null" json:"station_id"`
	Ruleset    string    `gorm:"not null" json:"ruleset"`
	Score      int       `gorm:"not null" json:"score"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `gorm:"index;not null" json:"finished_at"`
	CreatedAt  time.Time `json:"-"`
}
