package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bandup/services"
	"bandup/utils"
)

// Stable machine-checkable reason codes (§ HTTP contract). The UI branches on
// these to offer "buy credits" / "upgrade" flows instead of a generic error.
const (
	ReasonInsufficientCredits = "INSUFFICIENT_CREDITS"
	ReasonPremiumRequired     = "PREMIUM_REQUIRED"
	ErrorInternal             = "INTERNAL_ERROR"
)

// respondServiceError maps service-layer errors to the response contract.
// Expected failures (insufficient credits, not found, bad state) get their
// own shapes; anything else becomes an INTERNAL_ERROR with a freshly minted
// trace id that is also attached to the log line and Sentry event.
func respondServiceError(c *fiber.Ctx, operation string, err error, logCtx map[string]interface{}) error {
	if shortfall, ok := services.AsInsufficientFunds(err); ok {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success":   false,
			"reason":    ReasonInsufficientCredits,
			"required":  shortfall.Required,
			"available": shortfall.Available,
			"message":   "Not enough credits for this feature",
		})
	}
	if services.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if errors.Is(err, services.ErrPremiumRequired) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"reason":  ReasonPremiumRequired,
			"message": "This feature requires a premium subscription",
		})
	}
	if errors.Is(err, services.ErrAlreadyEvaluated) ||
		errors.Is(err, services.ErrNoContent) ||
		errors.Is(err, services.ErrEmptyContent) ||
		errors.Is(err, services.ErrInvalidAmount) ||
		errors.Is(err, services.ErrNotRefundable) ||
		errors.Is(err, services.ErrAlreadyRefunded) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Unknown feature keys land here too: a misconfigured catalog is an
	// internal problem, never the user's.
	traceID := utils.NewTraceID()
	if logCtx == nil {
		logCtx = map[string]interface{}{}
	}
	logCtx["path"] = c.Path()
	utils.LogError(traceID, operation, err, logCtx)

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success":  false,
		"error":    ErrorInternal,
		"trace_id": traceID,
	})
}
