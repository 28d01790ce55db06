package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	"bandup/config"
	controller "bandup/controllers"
	"bandup/middleware"
	"bandup/models"
	"bandup/services"
	"bandup/utils"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	pricing := services.NewPricingCatalog(db)
	credits := services.NewCreditService(db, pricing, log.New(os.Stdout, "CREDITS: ", log.LstdFlags))
	authController := controller.NewAuthController(db, credits, authLogger)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", authController.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	// Shared services
	pricing := services.NewPricingCatalog(db)
	credits := services.NewCreditService(db, pricing, log.New(os.Stdout, "CREDITS: ", log.LstdFlags))
	policy := services.NewSubscriptionPolicy()
	aiClient := utils.NewAIClient(config.AppConfig.AI)
	attempts := services.NewAttemptService(db, credits, policy, aiClient, log.New(os.Stdout, "ATTEMPT: ", log.LstdFlags))
	tools := services.NewAIToolsService(credits, aiClient, log.New(os.Stdout, "AITOOLS: ", log.LstdFlags))

	// Controllers with their respective loggers
	attemptController := controller.NewAttemptController(attempts, log.New(os.Stdout, "ATTEMPT: ", log.LstdFlags))
	creditController := controller.NewCreditController(credits, pricing, policy, log.New(os.Stdout, "CREDITS: ", log.LstdFlags))
	exerciseController := controller.NewExerciseController(db, log.New(os.Stdout, "EXERCISE: ", log.LstdFlags))
	toolsController := controller.NewAIToolsController(tools, log.New(os.Stdout, "AITOOLS: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Exercise routes
	exercises := api.Group("/exercises")
	exercises.Get("/", exerciseController.ListExercises)
	exercises.Get("/:id", exerciseController.GetExercise)
	exercises.Post("/:id/attempts", attemptController.StartAttempt)

	// Staff-only exercise management
	manage := exercises.Group("", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin))
	manage.Post("/", exerciseController.CreateExercise)
	manage.Put("/:id", exerciseController.UpdateExercise)
	manage.Post("/:id/publish", exerciseController.PublishExercise)
	manage.Post("/:id/unpublish", exerciseController.UnpublishExercise)
	manage.Delete("/:id", exerciseController.DeleteExercise)

	// Attempt lifecycle routes. Submit and reevaluate call the AI grader, so
	// they sit behind the per-user rate limiter.
	attemptRoutes := api.Group("/attempts")
	attemptRoutes.Get("/", attemptController.ListAttempts)
	attemptRoutes.Get("/:id", attemptController.GetAttempt)
	attemptRoutes.Patch("/:id", attemptController.UpdateAttempt)
	attemptRoutes.Put("/:id/draft", attemptController.SaveDraft)
	attemptRoutes.Post("/:id/submit", middleware.AIRateLimiter(), attemptController.SubmitAttempt)
	attemptRoutes.Post("/:id/reevaluate", middleware.AIRateLimiter(), attemptController.Reevaluate)

	// Credit routes
	creditRoutes := api.Group("/credits")
	creditRoutes.Get("/balance", creditController.GetBalance)
	creditRoutes.Get("/history", creditController.GetHistory)
	creditRoutes.Get("/access/:feature", creditController.CheckFeatureAccess)
	creditRoutes.Get("/pricing", creditController.ListPricing)

	// AI utility routes
	toolRoutes := api.Group("/tools", middleware.AIRateLimiter())
	toolRoutes.Post("/rewrite", toolsController.RewriteText)
	toolRoutes.Post("/analyze-chart", toolsController.AnalyzeChart)

	// Admin routes
	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Post("/credits/grant", creditController.GrantCredits)
	admin.Post("/credits/refund", creditController.RefundTransaction)
	admin.Put("/pricing/:feature", creditController.SetPricing)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
