package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"bandup/models"
	"bandup/utils"
)

type ExerciseController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewExerciseController(db *gorm.DB, logger *log.Logger) *ExerciseController {
	return &ExerciseController{
		DB:     db,
		Logger: logger,
	}
}

type ExerciseRequest struct {
	Type          string `json:"type" validate:"required,oneof=writing_task1 writing_task2 speaking_part1 speaking_part2 speaking_part3"`
	Title         string `json:"title" validate:"required,max=200"`
	Prompt        string `json:"prompt" validate:"required"`
	ChartImageURL string `json:"chart_image_url" validate:"omitempty,url"`
	ChartType     string `json:"chart_type" validate:"omitempty,oneof=bar line pie table process map"`
	WordLimit     int    `json:"word_limit" validate:"gte=0"`
	TimeLimitMin  int    `json:"time_limit_min" validate:"gte=0"`
	IsMockTest    bool   `json:"is_mock_test"`
}

// CreateExercise creates an unpublished exercise owned by the caller.
func (ec *ExerciseController) CreateExercise(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req ExerciseRequest
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

	exercise := models.Exercise{
		CreatedBy:     user.ID,
		Type:          req.Type,
		Title:         req.Title,
		Prompt:        req.Prompt,
		ChartImageURL: req.ChartImageURL,
		ChartType:     req.ChartType,
		WordLimit:     req.WordLimit,
		TimeLimitMin:  req.TimeLimitMin,
		IsMockTest:    req.IsMockTest,
		Version:       1,
	}
	if err := ec.DB.Create(&exercise).Error; err != nil {
		return respondServiceError(c, "create_exercise", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(exercise)
}

// ListExercises returns published exercises; staff also see unpublished ones.
func (ec *ExerciseController) ListExercises(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := ec.DB.Order("id DESC")
	if !user.IsStaff() {
		query = query.Where("is_published = ?", true)
	}
	if exerciseType := c.Query("type"); exerciseType != "" {
		query = query.Where("type = ?", exerciseType)
	}

	var exercises []models.Exercise
	if err := query.Find(&exercises).Error; err != nil {
		return respondServiceError(c, "list_exercises", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	return c.JSON(exercises)
}

func (ec *ExerciseController) GetExercise(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	exerciseID, err := c.ParamsInt("id")
	if err != nil || exerciseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exercise id",
		})
	}

	var exercise models.Exercise
	if err := ec.DB.First(&exercise, exerciseID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Exercise not found",
		})
	}
	if !exercise.IsPublished && !user.IsStaff() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Exercise not found",
		})
	}
	return c.JSON(exercise)
}

// UpdateExercise edits an exercise. Once any attempt references the row it is
// immutable: the edit lands on a new unpublished row with a bumped version
// pointing back at its predecessor.
func (ec *ExerciseController) UpdateExercise(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	exerciseID, err := c.ParamsInt("id")
	if err != nil || exerciseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exercise id",
		})
	}

	var req ExerciseRequest
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

	var exercise models.Exercise
	if err := ec.DB.First(&exercise, exerciseID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Exercise not found",
		})
	}

	var attemptCount int64
	if err := ec.DB.Model(&models.Attempt{}).
		Where("exercise_id = ?", exercise.ID).
		Count(&attemptCount).Error; err != nil {
		return respondServiceError(c, "update_exercise", err, map[string]interface{}{
			"exercise_id": exerciseID,
		})
	}

	if attemptCount > 0 {
		// History stays frozen; publish the successor when it is ready.
		successor := models.Exercise{
			CreatedBy:     user.ID,
			Type:          req.Type,
			Title:         req.Title,
			Prompt:        req.Prompt,
			ChartImageURL: req.ChartImageURL,
			ChartType:     req.ChartType,
			WordLimit:     req.WordLimit,
			TimeLimitMin:  req.TimeLimitMin,
			IsMockTest:    req.IsMockTest,
			Version:       exercise.Version + 1,
			SupersedesID:  &exercise.ID,
		}
		if err := ec.DB.Create(&successor).Error; err != nil {
			return respondServiceError(c, "update_exercise", err, map[string]interface{}{
				"exercise_id": exerciseID,
			})
		}
		return c.Status(fiber.StatusCreated).JSON(successor)
	}

	updates := map[string]any{
		"type":            req.Type,
		"title":           req.Title,
		"prompt":          req.Prompt,
		"chart_image_url": req.ChartImageURL,
		"chart_type":      req.ChartType,
		"word_limit":      req.WordLimit,
		"time_limit_min":  req.TimeLimitMin,
		"is_mock_test":    req.IsMockTest,
	}
	if err := ec.DB.Model(&exercise).Updates(updates).Error; err != nil {
		return respondServiceError(c, "update_exercise", err, map[string]interface{}{
			"exercise_id": exerciseID,
		})
	}
	return c.JSON(exercise)
}

// PublishExercise flips an exercise live.
func (ec *ExerciseController) PublishExercise(c *fiber.Ctx) error {
	return ec.setPublished(c, true)
}

// UnpublishExercise hides an exercise from students; existing attempts keep
// referencing it.
func (ec *ExerciseController) UnpublishExercise(c *fiber.Ctx) error {
	return ec.setPublished(c, false)
}

func (ec *ExerciseController) setPublished(c *fiber.Ctx, published bool) error {
	exerciseID, err := c.ParamsInt("id")
	if err != nil || exerciseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exercise id",
		})
	}

	res := ec.DB.Model(&models.Exercise{}).
		Where("id = ?", exerciseID).
		Update("is_published", published)
	if res.Error != nil {
		return respondServiceError(c, "publish_exercise", res.Error, map[string]interface{}{
			"exercise_id": exerciseID,
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Exercise not found",
		})
	}
	return c.JSON(fiber.Map{"success": true, "is_published": published})
}

// DeleteExercise removes an exercise that no attempt references yet.
func (ec *ExerciseController) DeleteExercise(c *fiber.Ctx) error {
	exerciseID, err := c.ParamsInt("id")
	if err != nil || exerciseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid exercise id",
		})
	}

	err = ec.DB.Transaction(func(tx *gorm.DB) error {
		var exercise models.Exercise
		if err := tx.First(&exercise, exerciseID).Error; err != nil {
			return err
		}

		var attemptCount int64
		if err := tx.Model(&models.Attempt{}).
			Where("exercise_id = ?", exercise.ID).
			Count(&attemptCount).Error; err != nil {
			return err
		}
		if attemptCount > 0 {
			return errConflictAttempts
		}
		return tx.Delete(&exercise).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exercise not found",
			})
		}
		if errors.Is(err, errConflictAttempts) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Exercise has attempts and cannot be deleted; unpublish it instead",
			})
		}
		return respondServiceError(c, "delete_exercise", err, map[string]interface{}{
			"exercise_id": exerciseID,
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

var errConflictAttempts = errors.New("exercise has attempts")
