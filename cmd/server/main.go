package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/config"
	"github.com/example/helpdeskpro/internal/database"
	"github.com/example/helpdeskpro/internal/middleware"
	"github.com/example/helpdeskpro/internal/routes"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

const bodyLimit = 12 << 20

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	ctx, shutdown := utils.NewShutdownManager(context.Background())

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: middleware.ErrorHandler,
		BodyLimit:    bodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Stop accepting requests before closing the stores they use.
	shutdown.Register(func(ctx context.Context) error {
		return app.ShutdownWithContext(ctx)
	})

	deps := buildDeps(ctx, cfg, db, shutdown)
	routes.Register(app, deps)

	if cfg.CronEnabled {
		services.NewScheduler(deps.Jobs).Start(ctx)
		log.Println("[Cron] In-process scheduler started")
	}

	shutdown.Register(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	shutdown.StartListening()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
	shutdown.Wait()
}

func buildDeps(ctx context.Context, cfg *config.Config, db *gorm.DB, shutdown *utils.ShutdownManager) routes.Deps {
	var mailer services.Mailer = services.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.AppName)
	}
	notifier := services.NewNotifier(mailer, cfg.AppName, cfg.PublicURL, true)

	var cache services.Cache = services.NewMemoryCache()
	if cfg.RedisURL != "" {
		redisCache, err := services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Printf("[Redis] Connection failed, continuing without cache: %v", err)
		} else {
			cache = redisCache
			shutdown.Register(func(context.Context) error { return redisCache.Close() })
		}
	}

	var activity services.ActivityLog = services.NoopActivityLog{}
	if cfg.MongoURI != "" {
		client, err := services.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.Printf("[Mongo] Connection failed, activity timeline disabled: %v", err)
		} else if mongoLog, err := services.NewMongoActivityLog(ctx, client, cfg.MongoDB); err != nil {
			log.Printf("[Mongo] Activity collection setup failed: %v", err)
		} else {
			activity = mongoLog
			shutdown.Register(func(ctx context.Context) error { return client.Disconnect(ctx) })
		}
	}

	return routes.Deps{
		DB:       db,
		Config:   cfg,
		Notifier: notifier,
		Media:    buildMediaStore(ctx, cfg),
		Payments: buildPaymentGateway(cfg),
		Google:   services.NewGoogleAuthService(cfg.GoogleClientID),
		Cache:    cache,
		Activity: activity,
		Alerts:   services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat),
		Jobs:     services.NewJobRunner(db, notifier, cache, cfg.SupportEmail),
	}
}

func buildMediaStore(ctx context.Context, cfg *config.Config) services.MediaStore {
	switch cfg.MediaProvider {
	case "minio":
		store, err := services.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioBucket, cfg.MinioPublicURL, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("[Media] MinIO unavailable, uploads disabled: %v", err)
			return services.DisabledMediaStore{}
		}
		return store
	default:
		store, err := services.NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			log.Printf("[Media] Cloudinary unavailable, uploads disabled: %v", err)
			return services.DisabledMediaStore{}
		}
		return store
	}
}

func buildPaymentGateway(cfg *config.Config) services.PaymentGateway {
	if cfg.PaypalClientID == "" || cfg.PaypalSecret == "" {
		log.Println("[PayPal] Credentials not configured, checkout disabled")
		return services.DisabledPaymentGateway{}
	}
	gateway, err := services.NewPaypalGateway(cfg.PaypalClientID, cfg.PaypalSecret, cfg.PaypalMode)
	if err != nil {
		log.Printf("[PayPal] Client setup failed, checkout disabled: %v", err)
		return services.DisabledPaymentGateway{}
	}
	return gateway
}
