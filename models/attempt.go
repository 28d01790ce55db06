package models

import (
	"time"

	"gorm.io/gorm"
)

// Attempt lifecycle states
const (
	AttemptStatusCreated    = "created"
	AttemptStatusInProgress = "in_progress"
	AttemptStatusSubmitted  = "submitted"
	AttemptStatusEvaluated  = "evaluated"
)

// Attempt is one user's run at an exercise, from creation through optional
// AI evaluation.
//
// Lifecycle: created -> in_progress -> submitted -> evaluated. A non-null
// Score implies status evaluated. Content survives every failure path:
// submission persists the essay before billing, and a billing failure leaves
// the attempt submitted with no score rather than discarding the work.
type Attempt struct {
	gorm.Model
	UserID     uint `gorm:"not null;index;index:idx_attempts_user_exercise" json:"user_id"`
	ExerciseID uint `gorm:"not null;index:idx_attempts_user_exercise" json:"exercise_id"`

	Content *string `gorm:"type:text" json:"content,omitempty"`
	Status  string  `gorm:"not null;default:'created';index" json:"status"`

	// Evaluation results
	Score      *float64 `json:"score,omitempty"` // IELTS band, 0-9 in half steps
	Feedback   *string  `gorm:"type:text" json:"feedback,omitempty"`
	TokensUsed int      `gorm:"default:0" json:"-"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`

	// Relations
	User     User     `json:"-"`
	Exercise Exercise `json:"exercise,omitempty"`
}

// IsOpen reports whether the attempt is resumable. StartAttempt returns an
// open attempt for the same (user, exercise) pair instead of creating a
// duplicate.
func (a *Attempt) IsOpen() bool {
	return a.Status == AttemptStatusCreated || a.Status == AttemptStatusInProgress
}
