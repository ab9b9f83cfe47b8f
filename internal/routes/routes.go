package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/config"
	"github.com/example/helpdeskpro/internal/handlers"
	"github.com/example/helpdeskpro/internal/middleware"
	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
)

// Deps carries the collaborators shared by the HTTP handlers.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Notifier *services.Notifier
	Media    services.MediaStore
	Payments services.PaymentGateway
	Google   services.GoogleVerifier
	Cache    services.Cache
	Activity services.ActivityLog
	Alerts   services.AdminAlerter
	Jobs     *services.JobRunner
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	db, cfg := d.DB, d.Config

	authHandler := handlers.NewAuthHandler(db, cfg, d.Notifier, d.Google)
	resetHandler := handlers.NewPasswordResetHandler(db, d.Notifier)
	profileHandler := handlers.NewProfileHandler(db, d.Media)
	ticketHandler := handlers.NewTicketHandler(db, d.Notifier, d.Alerts, d.Activity)
	catalogHandler := handlers.NewCatalogHandler(db, d.Cache)
	productHandler := handlers.NewProductHandler(db, d.Cache, d.Media)
	cartHandler := handlers.NewCartHandler(db)
	orderHandler := handlers.NewOrderHandler(db, cfg, d.Payments, d.Alerts, d.Activity)
	uploadHandler := handlers.NewUploadHandler(d.Media)
	adminHandler := handlers.NewAdminHandler(db)
	marketingHandler := handlers.NewMarketingHandler(db)
	settingsHandler := handlers.NewSettingsHandler(db, cfg.AppName, cfg.SupportEmail)
	cronHandler := handlers.NewCronHandler(d.Jobs)

	requireAuth := middleware.AuthMiddleware(cfg)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/google", authHandler.GoogleLogin)
	auth.Post("/forgot-password", resetHandler.ForgotPassword)
	auth.Post("/verify-reset-code", resetHandler.VerifyResetCode)
	auth.Post("/reset-password", resetHandler.ResetPassword)

	// Catalog routes
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	categories.Post("/", requireAuth, adminOnly, catalogHandler.CreateCategory)
	categories.Put("/:id", requireAuth, adminOnly, catalogHandler.UpdateCategory)
	categories.Delete("/:id", requireAuth, adminOnly, catalogHandler.DeleteCategory)

	// Products
	products := api.Group("/products")
	productHandler.RegisterProductRoutes(products, requireAuth, adminOnly)

	// Storefront content
	api.Get("/hero", marketingHandler.ListHeroSlides)
	api.Post("/hero", requireAuth, adminOnly, marketingHandler.CreateHeroSlide)
	api.Put("/hero/:id", requireAuth, adminOnly, marketingHandler.UpdateHeroSlide)
	api.Delete("/hero/:id", requireAuth, adminOnly, marketingHandler.DeleteHeroSlide)
	api.Get("/settings", settingsHandler.GetSettings)

	// Cart: reads work for guests, writes need a session.
	cart := api.Group("/cart")
	cart.Get("/", middleware.OptionalAuth(cfg), cartHandler.GetCart)
	cart.Post("/add", requireAuth, cartHandler.AddItem)
	cart.Put("/update", requireAuth, cartHandler.UpdateItem)
	cart.Delete("/remove", requireAuth, cartHandler.RemoveItem)
	cart.Delete("/clear", requireAuth, cartHandler.ClearCart)
	cart.Post("/merge", requireAuth, cartHandler.MergeCart)

	// PayPal: the capture URL is a browser redirect and carries no bearer token.
	paypal := api.Group("/paypal")
	paypal.Post("/create-order", requireAuth, orderHandler.CreatePaypalOrder)
	paypal.Get("/capture-order", orderHandler.CapturePaypalOrder)

	// Scheduled jobs
	cron := api.Group("/cron", middleware.CronSecret(cfg.CronSecret))
	cron.Get("/pending-reminders", cronHandler.PendingReminders)
	cron.Get("/daily-new-products", cronHandler.DailyNewProducts)

	// Profile
	api.Get("/profile", requireAuth, profileHandler.GetProfile)
	api.Put("/users/update-profile", requireAuth, profileHandler.UpdateProfile)

	// Tickets
	tickets := api.Group("/tickets", requireAuth)
	tickets.Get("/", ticketHandler.ListTickets)
	tickets.Post("/", ticketHandler.CreateTicket)
	tickets.Get("/:id", ticketHandler.GetTicket)
	tickets.Patch("/:id", ticketHandler.UpdateTicket)
	tickets.Delete("/:id", adminOnly, ticketHandler.DeleteTicket)
	tickets.Post("/:id/messages", ticketHandler.AddMessage)
	tickets.Get("/:id/history", ticketHandler.TicketHistory)

	// Orders
	orders := api.Group("/orders", requireAuth)
	orders.Post("/", orderHandler.CreateTestingOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Patch("/:id", adminOnly, orderHandler.UpdateShippingStatus)

	// Uploads
	upload := api.Group("/upload", requireAuth)
	upload.Post("/", uploadHandler.Upload)
	upload.Delete("/", uploadHandler.Delete)

	// Admin
	admin := api.Group("/admin", requireAuth, adminOnly)
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Patch("/users/:id/role", adminHandler.UpdateUserRole)
	admin.Get("/tickets", adminHandler.ListAllTickets)
	admin.Get("/agents", adminHandler.ListAgents)
	admin.Put("/settings", settingsHandler.UpdateSettings)
	admin.Get("/orders", orderHandler.AdminListOrders)
	admin.Get("/orders/:id", orderHandler.AdminGetOrder)
	admin.Patch("/orders/:id", orderHandler.AdminUpdateOrder)
	admin.Get("/orders/:id/history", orderHandler.OrderHistory)
}
