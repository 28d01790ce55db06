package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"bandup/models"
	"bandup/services"
	"bandup/utils"
)

type AttemptController struct {
	Attempts *services.AttemptService
	Logger   *log.Logger
}

func NewAttemptController(attempts *services.AttemptService, logger *log.Logger) *AttemptController {
	return &AttemptController{
		Attempts: attempts,
		Logger:   logger,
	}
}

type SubmitAttemptRequest struct {
	Content string `json:"content" validate:"required"`
}

type DraftRequest struct {
	Content string `json:"content"`
}

// StartAttempt resumes the user's open attempt for the exercise or creates a
// new one.
func (ac *AttemptController) StartAttempt(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	exerciseID, err := c.ParamsInt("id")
	if err != nil || exerciseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exercise id",
		})
	}

	attempt, err := ac.Attempts.StartAttempt(c.Context(), user, uint(exerciseID))
	if err != nil {
		return respondServiceError(c, "start_attempt", err, map[string]interface{}{
			"user_id":     user.ID,
			"exercise_id": exerciseID,
		})
	}
	return c.JSON(attempt)
}

// SubmitAttempt saves the content and evaluates it when the user can afford
// the fee. The attempt comes back either evaluated, or submitted with an
// INSUFFICIENT_CREDITS reason.
func (ac *AttemptController) SubmitAttempt(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attemptID, err := c.ParamsInt("id")
	if err != nil || attemptID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid attempt id",
		})
	}

	var req SubmitAttemptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	outcome, err := ac.Attempts.SubmitAttempt(c.Context(), user, uint(attemptID), req.Content)
	if err != nil {
		return respondServiceError(c, "submit_attempt", err, map[string]interface{}{
			"user_id":    user.ID,
			"attempt_id": attemptID,
		})
	}

	if outcome.InsufficientFunds != nil {
		// Content is saved; only the evaluation was skipped.
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"attempt":   outcome.Attempt,
			"reason":    ReasonInsufficientCredits,
			"required":  outcome.InsufficientFunds.Required,
			"available": outcome.InsufficientFunds.Available,
			"message":   "Your answer was saved. Add credits to get it evaluated.",
		})
	}
	return c.JSON(outcome.Attempt)
}

// SaveDraft persists content without billing.
func (ac *AttemptController) SaveDraft(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attemptID, err := c.ParamsInt("id")
	if err != nil || attemptID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid attempt id",
		})
	}

	var req DraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ac.Attempts.SaveAttemptDraft(c.Context(), user, uint(attemptID), req.Content); err != nil {
		return respondServiceError(c, "save_draft", err, map[string]interface{}{
			"user_id":    user.ID,
			"attempt_id": attemptID,
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

// Reevaluate bills again and re-scores the attempt's existing content.
func (ac *AttemptController) Reevaluate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attemptID, err := c.ParamsInt("id")
	if err != nil || attemptID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid attempt id",
		})
	}

	attempt, err := ac.Attempts.Reevaluate(c.Context(), user, uint(attemptID))
	if err != nil {
		return respondServiceError(c, "reevaluate_attempt", err, map[string]interface{}{
			"user_id":    user.ID,
			"attempt_id": attemptID,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"attempt": attempt,
	})
}

func (ac *AttemptController) ListAttempts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	attempts, err := ac.Attempts.GetUserAttempts(c.Context(), user.ID)
	if err != nil {
		return respondServiceError(c, "list_attempts", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	return c.JSON(attempts)
}

func (ac *AttemptController) GetAttempt(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attemptID, err := c.ParamsInt("id")
	if err != nil || attemptID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid attempt id",
		})
	}

	attempt, err := ac.Attempts.GetAttempt(c.Context(), user, uint(attemptID))
	if err != nil {
		return respondServiceError(c, "get_attempt", err, map[string]interface{}{
			"user_id":    user.ID,
			"attempt_id": attemptID,
		})
	}
	return c.JSON(attempt)
}

// UpdateAttempt patches an attempt's content. Evaluation fields are not
// patchable.
func (ac *AttemptController) UpdateAttempt(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attemptID, err := c.ParamsInt("id")
	if err != nil || attemptID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid attempt id",
		})
	}

	var req struct {
		Content *string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	attempt, err := ac.Attempts.UpdateAttempt(c.Context(), user, uint(attemptID), req.Content)
	if err != nil {
		return respondServiceError(c, "update_attempt", err, map[string]interface{}{
			"user_id":    user.ID,
			"attempt_id": attemptID,
		})
	}
	return c.JSON(attempt)
}
