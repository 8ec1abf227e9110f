package store

import (
	"errors"
	"time"
)

// Score bounds. Values outside this range never enter the store.
const (
	MinScore = 0
	MaxScore = 100
)

// Common errors for trust score persistence.
var (
	// ErrScoreNotFound means no record exists for the principal.
	ErrScoreNotFound = errors.New("trust score not found")

	// ErrInvalidScore means the score is outside [MinScore, MaxScore].
	ErrInvalidScore = errors.New("trust score out of range")

	// ErrInvalidPrincipal means the principal identifier is empty.
	ErrInvalidPrincipal = errors.New("principal identifier is empty")
)

// TrustScore is one principal's score record. The score is receiver-owned
// truth about the principal; credentials merely authenticate who is asking.
type TrustScore struct {
	PrincipalID string    `gorm:"primaryKey;size:255" json:"principal_id"`
	Score       int       `gorm:"not null" json:"score"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for TrustScore.
func (TrustScore) TableName() string {
	return "trust_scores"
}

// ValidScore reports whether score is inside the storable range.
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// AllModels returns every model migrated by the store.
func AllModels() []any {
	return []any{&TrustScore{}}
}
