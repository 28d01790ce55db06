package controller

import (
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"bandup/models"
	"bandup/services"
	"bandup/utils"
)

// Chart uploads are rendered screenshots, not photos; 5MB is generous.
const maxChartImageBytes = 5 * 1024 * 1024

var allowedChartImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

type AIToolsController struct {
	Tools  *services.AIToolsService
	Logger *log.Logger
}

func NewAIToolsController(tools *services.AIToolsService, logger *log.Logger) *AIToolsController {
	return &AIToolsController{
		Tools:  tools,
		Logger: logger,
	}
}

type RewriteRequest struct {
	Text string `json:"text" validate:"required"`
}

// RewriteText bills the rewrite feature and returns a band 8+ rendition of the
// submitted passage.
func (tc *AIToolsController) RewriteText(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req RewriteRequest
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

	rewritten, err := tc.Tools.Rewrite(c.Context(), user, req.Text)
	if err != nil {
		return respondServiceError(c, "rewrite_text", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"rewritten": rewritten,
	})
}

// AnalyzeChart accepts a multipart chart image upload and returns whether the
// chart is usable as a Task 1 prompt, plus the extracted data points.
func (tc *AIToolsController) AnalyzeChart(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing image file",
		})
	}
	if fileHeader.Size > maxChartImageBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "Image exceeds the 5MB limit",
		})
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if !allowedChartImageTypes[mimeType] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported image type; use PNG, JPEG or WebP",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondServiceError(c, "analyze_chart", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return respondServiceError(c, "analyze_chart", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}

	analysis, err := tc.Tools.AnalyzeChart(c.Context(), user, image, mimeType)
	if err != nil {
		return respondServiceError(c, "analyze_chart", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"analysis": analysis,
	})
}
