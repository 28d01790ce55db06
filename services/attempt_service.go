package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"bandup/models"
	"bandup/utils"
)

// AIService is the external AI façade the attempt lifecycle depends on. The
// concrete implementation is utils.AIClient; tests substitute a stub.
type AIService interface {
	Evaluate(ctx context.Context, content string, exercise *models.Exercise) (*utils.Evaluation, error)
	RewriteContent(ctx context.Context, text string) (string, error)
	AnalyzeChartImage(ctx context.Context, image []byte, mimeType string) (*utils.ChartAnalysis, error)
}

// AttemptService owns the attempt state machine and coordinates billed AI
// evaluations without ever losing submitted content.
//
// Ordering on the billed path is fixed: save content, then bill, then call
// the AI. A failed billing leaves the attempt submitted with its content; a
// failed AI call leaves it submitted and charged (support refunds explicitly,
// the service never reverses the debit itself).
type AttemptService struct {
	DB      *gorm.DB
	Credits *CreditService
	Policy  *SubscriptionPolicy
	AI      AIService
	Logger  *log.Logger
}

func NewAttemptService(db *gorm.DB, credits *CreditService, policy *SubscriptionPolicy, ai AIService, logger *log.Logger) *AttemptService {
	return &AttemptService{
		DB:      db,
		Credits: credits,
		Policy:  policy,
		AI:      ai,
		Logger:  logger,
	}
}

// SubmitOutcome reports how far a submission got. Attempt is always the
// persisted row; InsufficientFunds is set when content was saved but the
// evaluation was skipped for lack of credits.
type SubmitOutcome struct {
	Attempt           *models.Attempt
	InsufficientFunds *InsufficientFundsError
}

// StartAttempt returns the user's open attempt for the exercise, or creates a
// fresh one. At most one created/in_progress attempt exists per (user,
// exercise) pair at a time.
func (as *AttemptService) StartAttempt(ctx context.Context, user *models.User, exerciseID uint) (*models.Attempt, error) {
	db := as.DB.WithContext(ctx)

	var exercise models.Exercise
	if err := db.First(&exercise, exerciseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "exercise", ID: exerciseID}
		}
		return nil, fmt.Errorf("load exercise %d: %w", exerciseID, err)
	}
	if !exercise.IsPublished && !user.IsStaff() && exercise.CreatedBy != user.ID {
		return nil, &NotFoundError{Resource: "exercise", ID: exerciseID}
	}
	if exercise.IsMockTest && !as.Policy.CanAccessFeature(user, models.FeatureMockTest) {
		return nil, ErrPremiumRequired
	}

	// Resume-or-create: indexed lookup, oldest open attempt wins.
	var attempt models.Attempt
	err := db.Where("user_id = ? AND exercise_id = ? AND status IN ?",
		user.ID, exerciseID,
		[]string{models.AttemptStatusCreated, models.AttemptStatusInProgress}).
		Order("id").
		First(&attempt).Error
	if err == nil {
		return &attempt, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find open attempt: %w", err)
	}

	attempt = models.Attempt{
		UserID:     user.ID,
		ExerciseID: exerciseID,
		Status:     models.AttemptStatusCreated,
	}
	if err := db.Create(&attempt).Error; err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	as.Logger.Printf("user %d started attempt %d on exercise %d", user.ID, attempt.ID, exerciseID)
	return &attempt, nil
}

// SubmitAttempt persists the content, bills the evaluation fee and, when the
// debit succeeds, runs the AI evaluation.
//
// The save happens before billing: submission is unconditional, evaluation is
// what credits buy. On InsufficientFundsError the attempt stays submitted
// with a nil score and the outcome carries the shortfall so callers can offer
// a top-up. On an AI failure after a successful debit the attempt likewise
// stays submitted; the charge stands and the error is returned for trace
// logging.
func (as *AttemptService) SubmitAttempt(ctx context.Context, user *models.User, attemptID uint, content string) (*SubmitOutcome, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	attempt, err := as.loadOwned(ctx, user, attemptID, true)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptStatusEvaluated {
		return nil, ErrAlreadyEvaluated
	}

	// Durably save the work before anything that can fail.
	now := time.Now()
	updates := map[string]any{
		"content":      content,
		"status":       models.AttemptStatusSubmitted,
		"submitted_at": now,
	}
	if err := as.DB.WithContext(ctx).Model(attempt).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	attempt.Content = &content
	attempt.Status = models.AttemptStatusSubmitted
	attempt.SubmittedAt = &now

	featureKey := attempt.Exercise.EvaluationFeature()
	if _, err := as.Credits.BillUser(ctx, user.ID, featureKey, &attempt.ID); err != nil {
		if shortfall, ok := AsInsufficientFunds(err); ok {
			as.Logger.Printf("attempt %d submitted without evaluation: %v", attempt.ID, err)
			return &SubmitOutcome{Attempt: attempt, InsufficientFunds: shortfall}, nil
		}
		return nil, err
	}

	if err := as.evaluate(ctx, attempt, content); err != nil {
		// Charged but unevaluated: content is safe, the debit stands.
		return nil, fmt.Errorf("evaluate attempt %d: %w", attempt.ID, err)
	}
	return &SubmitOutcome{Attempt: attempt}, nil
}

// SaveAttemptDraft persists content without billing or evaluating. A fresh
// attempt moves to in_progress; submitted or evaluated attempts keep their
// state and score.
func (as *AttemptService) SaveAttemptDraft(ctx context.Context, user *models.User, attemptID uint, content string) error {
	attempt, err := as.loadOwned(ctx, user, attemptID, false)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"content":      content,
		"submitted_at": time.Now(),
	}
	if attempt.Status == models.AttemptStatusCreated {
		updates["status"] = models.AttemptStatusInProgress
	}
	if err := as.DB.WithContext(ctx).Model(attempt).Updates(updates).Error; err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Reevaluate bills the evaluation fee again and re-runs the AI on the
// attempt's existing content, overwriting score and feedback. Nothing is
// mutated when billing fails; prior ledger entries are never altered.
func (as *AttemptService) Reevaluate(ctx context.Context, user *models.User, attemptID uint) (*models.Attempt, error) {
	attempt, err := as.loadOwned(ctx, user, attemptID, true)
	if err != nil {
		return nil, err
	}
	if attempt.Content == nil || strings.TrimSpace(*attempt.Content) == "" {
		return nil, ErrNoContent
	}

	featureKey := attempt.Exercise.EvaluationFeature()
	if _, err := as.Credits.BillUser(ctx, user.ID, featureKey, &attempt.ID); err != nil {
		return nil, err
	}

	if err := as.evaluate(ctx, attempt, *attempt.Content); err != nil {
		return nil, fmt.Errorf("reevaluate attempt %d: %w", attempt.ID, err)
	}
	return attempt, nil
}

// GetAttempt returns one of the user's attempts with its exercise.
func (as *AttemptService) GetAttempt(ctx context.Context, user *models.User, attemptID uint) (*models.Attempt, error) {
	return as.loadOwned(ctx, user, attemptID, true)
}

// GetUserAttempts lists the user's attempts, newest first.
func (as *AttemptService) GetUserAttempts(ctx context.Context, userID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := as.DB.WithContext(ctx).
		Preload("Exercise").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// UpdateAttempt patches the attempt's content. Scores, feedback and status
// are owned by the evaluation path and cannot be patched.
func (as *AttemptService) UpdateAttempt(ctx context.Context, user *models.User, attemptID uint, content *string) (*models.Attempt, error) {
	attempt, err := as.loadOwned(ctx, user, attemptID, false)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := as.DB.WithContext(ctx).Model(attempt).Update("content", *content).Error; err != nil {
			return nil, fmt.Errorf("update attempt: %w", err)
		}
		attempt.Content = content
	}
	return attempt, nil
}

// evaluate runs the AI on content and persists the terminal state. Billing
// has already succeeded by the time this runs.
func (as *AttemptService) evaluate(ctx context.Context, attempt *models.Attempt, content string) error {
	eval, err := as.AI.Evaluate(ctx, content, &attempt.Exercise)
	if err != nil {
		return err
	}

	now := time.Now()
	score := utils.RoundToHalfBand(eval.Score)
	updates := map[string]any{
		"score":        score,
		"feedback":     eval.Feedback,
		"tokens_used":  eval.TokensUsed,
		"status":       models.AttemptStatusEvaluated,
		"evaluated_at": now,
	}
	if err := as.DB.WithContext(ctx).Model(attempt).Updates(updates).Error; err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	attempt.Score = &score
	attempt.Feedback = &eval.Feedback
	attempt.TokensUsed = eval.TokensUsed
	attempt.Status = models.AttemptStatusEvaluated
	attempt.EvaluatedAt = &now

	as.Logger.Printf("attempt %d evaluated: band %.1f (%d tokens)", attempt.ID, score, eval.TokensUsed)
	return nil
}

// loadOwned fetches an attempt scoped to its owner. A foreign attempt id
// reads as not found rather than forbidden, so ids cannot be probed.
func (as *AttemptService) loadOwned(ctx context.Context, user *models.User, attemptID uint, withExercise bool) (*models.Attempt, error) {
	db := as.DB.WithContext(ctx)
	if withExercise {
		db = db.Preload("Exercise")
	}

	var attempt models.Attempt
	err := db.Where("id = ? AND user_id = ?", attemptID, user.ID).First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "attempt", ID: attemptID}
		}
		return nil, fmt.Errorf("load attempt %d: %w", attemptID, err)
	}
	return &attempt, nil
}
