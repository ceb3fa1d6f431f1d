package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	config "wildlife-licensing-backend/config"
	"wildlife-licensing-backend/internal/bootstrap"
	"wildlife-licensing-backend/middleware"
	"wildlife-licensing-backend/seeds"
	"wildlife-licensing-backend/token"
	"wildlife-licensing-backend/utils"

	// Repositories
	applications_repositories "wildlife-licensing-backend/applications/repositories"
	licence_repositories "wildlife-licensing-backend/licences/repositories"
	notifications_repositories "wildlife-licensing-backend/notifications/repositories"
	users_repositories "wildlife-licensing-backend/users/repositories"

	// Services
	applications_services "wildlife-licensing-backend/applications/services"
	licences_services "wildlife-licensing-backend/licences/services"
	notifications_services "wildlife-licensing-backend/notifications/services"
	payments_services "wildlife-licensing-backend/payments/services"
	users_services "wildlife-licensing-backend/users/services"

	// Controllers and routes
	applications_controllers "wildlife-licensing-backend/applications/controllers"
	application_routes "wildlife-licensing-backend/applications/routes"
	users_controllers "wildlife-licensing-backend/users/controllers"
	user_routes "wildlife-licensing-backend/users/routes"

	// bleve
	bleveControllers "wildlife-licensing-backend/bleve/controllers"
	bleveRepositories "wildlife-licensing-backend/bleve/repositories"
	bleveRoutes "wildlife-licensing-backend/bleve/routes"
	bleveServices "wildlife-licensing-backend/bleve/services"

	// WebSocket
	"wildlife-licensing-backend/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg, err := config.LoadLicensingConfig()
	if err != nil {
		panic(err)
	}
	logger := config.InitLogger(cfg.LogLevel, cfg.LogDir)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database and configs
	db := config.ConfigureDatabase()
	redisClient, err := config.InitRedisServer(ctx, cfg.RedisAddress, config.GetEnv("REDIS_PASSWORD"))
	if err != nil {
		logger.Fatal("Cannot connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	if cfg.SeedOnStart {
		if err := seeds.SeedLicensingAll(db, cfg.AdminEmail, cfg.GSTRate); err != nil {
			logger.Fatal("Database seeding failed", zap.Error(err))
		}
	}

	tokenMaker, err := token.NewPasetoMaker(cfg.TokenSymmetricKey)
	if err != nil {
		logger.Fatal("Cannot create token maker", zap.Error(err))
	}

	// Background email delivery
	asynqRedisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddress, Password: config.GetEnv("REDIS_PASSWORD")}
	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	mailer := utils.InitializeMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	emailWorker := notifications_services.NewEmailWorker(mailer, cfg.MailFrom, cfg.MailPerMin, notifications_repositories.NewEmailLogRepository(db), logger)
	asynqServer := asynq.NewServer(asynqRedisOpt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"notifications": 1},
	})
	go func() {
		if err := asynqServer.Run(emailWorker.Mux()); err != nil {
			logger.Error("Email worker stopped", zap.Error(err))
		}
	}()
	defer asynqServer.Shutdown()
	notifier := notifications_services.NewQueueNotifier(asynqClient, logger)

	// Repositories
	userRepo := users_repositories.NewUserRepository(db)
	catalogRepo := licence_repositories.NewCachedCatalogRepository(licence_repositories.NewCatalogRepository(db), redisClient, cfg.CatalogCacheTTL, logger)
	applicationRepo := applications_repositories.NewApplicationRepository(db)
	catalog := licences_services.NewPurposeCatalog(catalogRepo)

	gstRate, err := catalog.GSTRate(ctx, cfg.GSTRate)
	if err != nil {
		logger.Fatal("Failed to load GST rate", zap.Error(err))
	}
	feeGate, err := applications_services.ParseFeeGate(cfg.CheckoutFeeGate)
	if err != nil {
		logger.Fatal("Invalid checkout fee gate", zap.Error(err))
	}

	var gateway payments_services.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payments_services.NewStripeGateway(payments_services.StripeConfig{
			SecretKey:  cfg.StripeSecretKey,
			SuccessURL: cfg.StripeSuccessURL,
			CancelURL:  cfg.StripeCancelURL,
			Currency:   cfg.Currency,
		}, logger)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, online payments are disabled")
	}

	// Search index and live status updates
	indexingService := bleveServices.NewIndexingService(logger, cfg.SearchIndexDir)
	defer indexingService.Close()
	bleveServiceRepo, bleveInterfaceRepo := bleveRepositories.NewBleveRepository(indexingService, userRepo, logger)

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	orchestrator := applications_services.NewApplicationOrchestrator(applications_services.OrchestratorDeps{
		Applications: applicationRepo,
		Catalog:      catalog,
		Users:        userRepo,
		Fees:         applications_services.NewFeePolicy(cfg.GSTFree, gstRate),
		Gate:         feeGate,
		Gateway:      gateway,
		Notifier:     notifier,
		Observers:    []applications_services.ApplicationObserver{bleveServiceRepo, wsHub},
		Logger:       logger,
	})

	if err := bootstrap.IndexBleveData(ctx, applicationRepo, bleveInterfaceRepo); err != nil {
		logger.Error("Initial search indexing failed", zap.Error(err))
	}

	scheduler, err := utils.StartScheduler(ctx, utils.SchedulerConfig{
		ReminderSchedule: cfg.ReminderSchedule,
		ReminderAfter:    cfg.ReminderAfter,
		CleanupSchedule:  cfg.CleanupSchedule,
		ExportDir:        cfg.ExportDir,
		ExportTTL:        cfg.ExportTTL,
	}, orchestrator, logger)
	if err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	// HTTP
	app := fiber.New(fiber.Config{ReadTimeout: 30 * time.Second, WriteTimeout: 60 * time.Second})
	app.Use(middleware.Correlation())
	middleware.InitCors(app, cfg.CORSOrigins)

	session := &middleware.AppContext{PasetoMaker: tokenMaker, Ctx: ctx, RedisClient: redisClient, SecureCookies: cfg.SecureCookies}
	protected := middleware.ProtectedRoute(session)

	loginController := &users_controllers.LoginController{
		Login:    users_services.NewLoginService(userRepo, users_services.NewOtpService(redisClient), notifier, logger),
		UserRepo: userRepo,
		Session:  session,
	}
	user_routes.InitRoutes(app, loginController, protected)

	application_routes.ApplicationRouterInit(app, &applications_controllers.ApplicationController{
		Orchestrator:  orchestrator,
		ExportDir:     cfg.ExportDir,
		WebhookSecret: cfg.StripeWebhookKey,
	}, protected)

	bleveRoutes.InitBleveRoutes(app, bleveControllers.NewSearchController(bleveInterfaceRepo, orchestrator), protected)

	wsHandler := websocket.NewWsHandler(wsHub, tokenMaker, orchestrator)
	app.Get("/ws", wsHandler.HandleWebSocket)
	logger.Info("WebSocket endpoint registered at /ws")

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("Server failed", zap.String("port", cfg.Port), zap.Error(err))
	}
}
