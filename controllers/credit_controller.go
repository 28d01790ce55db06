package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"bandup/models"
	"bandup/services"
	"bandup/utils"
)

type CreditController struct {
	Credits *services.CreditService
	Pricing *services.PricingCatalog
	Policy  *services.SubscriptionPolicy
	Logger  *log.Logger
}

func NewCreditController(credits *services.CreditService, pricing *services.PricingCatalog, policy *services.SubscriptionPolicy, logger *log.Logger) *CreditController {
	return &CreditController{
		Credits: credits,
		Pricing: pricing,
		Policy:  policy,
		Logger:  logger,
	}
}

type GrantCreditsRequest struct {
	UserID      uint   `json:"user_id" validate:"required"`
	Amount      int    `json:"amount" validate:"required,gte=0"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

type RefundRequest struct {
	UserID        uint `json:"user_id" validate:"required"`
	TransactionID uint `json:"transaction_id" validate:"required"`
}

type SetPricingRequest struct {
	Cost int `json:"cost" validate:"gte=0"`
}

// GetBalance returns the caller's current credit balance.
func (cc *CreditController) GetBalance(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	balance, err := cc.Credits.Balance(c.Context(), user.ID)
	if err != nil {
		return respondServiceError(c, "get_balance", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	return c.JSON(fiber.Map{"balance": balance})
}

// GetHistory returns the caller's ledger, newest first.
func (cc *CreditController) GetHistory(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	entries, err := cc.Credits.Transactions(c.Context(), user.ID)
	if err != nil {
		return respondServiceError(c, "get_history", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}
	return c.JSON(entries)
}

// CheckFeatureAccess reports whether the caller's subscription allows a
// feature and what it currently costs.
func (cc *CreditController) CheckFeatureAccess(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	featureKey := c.Params("feature")

	allowed := cc.Policy.CanAccessFeature(user, featureKey)

	cost, err := cc.Pricing.Cost(c.Context(), featureKey)
	if err != nil {
		if services.IsUnknownFeature(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Unknown feature",
			})
		}
		return respondServiceError(c, "check_feature_access", err, map[string]interface{}{
			"user_id": user.ID,
			"feature": featureKey,
		})
	}

	return c.JSON(fiber.Map{
		"allowed":    allowed,
		"cost":       cost,
		"affordable": user.CreditsBalance >= cost,
	})
}

// GrantCredits is the admin top-up endpoint.
func (cc *CreditController) GrantCredits(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)

	var req GrantCreditsRequest
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

	description := req.Description
	if description == "" {
		description = "Admin credit grant"
	}

	entry, err := cc.Credits.CreditUser(c.Context(), req.UserID, req.Amount,
		models.TransactionCreditAdded, description)
	if err != nil {
		return respondServiceError(c, "grant_credits", err, map[string]interface{}{
			"admin_id": admin.ID,
			"user_id":  req.UserID,
		})
	}

	utils.LogEvent("credits_granted", map[string]interface{}{
		"admin_id": admin.ID,
		"user_id":  req.UserID,
		"amount":   req.Amount,
	})
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// RefundTransaction compensates a prior usage charge. Support uses this for
// evaluations that were billed but never delivered.
func (cc *CreditController) RefundTransaction(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)

	var req RefundRequest
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

	entry, err := cc.Credits.Refund(c.Context(), req.UserID, req.TransactionID)
	if err != nil {
		return respondServiceError(c, "refund_transaction", err, map[string]interface{}{
			"admin_id":       admin.ID,
			"user_id":        req.UserID,
			"transaction_id": req.TransactionID,
		})
	}

	utils.LogEvent("transaction_refunded", map[string]interface{}{
		"admin_id":       admin.ID,
		"user_id":        req.UserID,
		"transaction_id": req.TransactionID,
	})
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// ListPricing returns the full feature price list (admin).
func (cc *CreditController) ListPricing(c *fiber.Ctx) error {
	pricing, err := cc.Pricing.List(c.Context())
	if err != nil {
		return respondServiceError(c, "list_pricing", err, nil)
	}
	return c.JSON(pricing)
}

// SetPricing updates the cost of one feature key (admin).
func (cc *CreditController) SetPricing(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)
	featureKey := c.Params("feature")

	var req SetPricingRequest
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

	pricing, err := cc.Pricing.SetCost(c.Context(), featureKey, req.Cost)
	if err != nil {
		return respondServiceError(c, "set_pricing", err, map[string]interface{}{
			"admin_id": admin.ID,
			"feature":  featureKey,
		})
	}

	utils.LogEvent("pricing_updated", map[string]interface{}{
		"admin_id": admin.ID,
		"feature":  featureKey,
		"cost":     req.Cost,
	})
	return c.JSON(pricing)
}
