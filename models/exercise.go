package models

import (
	"strings"

	"gorm.io/gorm"
)

// Exercise types
const (
	ExerciseWritingTask1  = "writing_task1"
	ExerciseWritingTask2  = "writing_task2"
	ExerciseSpeakingPart1 = "speaking_part1"
	ExerciseSpeakingPart2 = "speaking_part2"
	ExerciseSpeakingPart3 = "speaking_part3"
)

// Exercise represents a single practice task (writing prompt, cue card, ...).
// Once an attempt references an exercise the row is treated as immutable:
// edits create a successor row with a bumped Version (see SupersedesID).
type Exercise struct {
	gorm.Model
	CreatedBy uint `gorm:"not null;index" json:"created_by"`

	Type   string `gorm:"not null;index" json:"type"` // writing_task1, writing_task2, speaking_part1..3
	Title  string `gorm:"not null" json:"title"`
	Prompt string `gorm:"type:text;not null" json:"prompt"`

	// Task 1 chart/graph metadata
	ChartImageURL string `json:"chart_image_url,omitempty"`
	ChartType     string `json:"chart_type,omitempty"` // bar, line, pie, table, process, map

	// Constraints shown to the student
	WordLimit    int `gorm:"default:0" json:"word_limit"`
	TimeLimitMin int `gorm:"default:0" json:"time_limit_min"`

	Version      int   `gorm:"not null;default:1" json:"version"`
	SupersedesID *uint `json:"supersedes_id,omitempty"`

	IsPublished bool `gorm:"default:false" json:"is_published"`
	IsMockTest  bool `gorm:"default:false" json:"is_mock_test"`

	// Relations
	Attempts []Attempt `gorm:"foreignKey:ExerciseID" json:"-"`
}

// IsWriting reports whether the exercise is a writing task.
func (e *Exercise) IsWriting() bool {
	return strings.HasPrefix(e.Type, "writing")
}

// EvaluationFeature returns the feature key billed when an attempt at this
// exercise is evaluated.
func (e *Exercise) EvaluationFeature() string {
	if e.IsWriting() {
		return FeatureWritingEvaluation
	}
	return FeatureSpeakingEvaluation
}
