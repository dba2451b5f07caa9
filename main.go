package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rewards-settlement/config"
	"rewards-settlement/events"
	"rewards-settlement/handlers"
	"rewards-settlement/logging"
	"rewards-settlement/models"
	"rewards-settlement/services"
	"rewards-settlement/utils"
	"rewards-settlement/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	if err := logging.InitLogger(cfg.LogProduction); err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	logger := logging.Logger
	defer logger.Sync() //nolint:errcheck

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL environment variable not set")
	}
	if cfg.AdminJWTSecret == "" {
		logger.Fatal("ADMIN_JWT_SECRET environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := events.Connect(cfg.RabbitMQURL, cfg.EventsExchange, logging.Named("events"))
	defer publisher.Close()

	ledger := services.NewBalanceLedger(db, cfg.NegativeTotalPolicy, publisher, logger)
	referrals := services.NewReferralSettlement(db, ledger, cfg.ReferralBonus, logger)
	svc := &handlers.Services{
		Ledger:        ledger,
		Deposits:      services.NewDepositService(db, ledger, referrals, publisher, logger),
		Users:         services.NewUserService(db, referrals, logger),
		Tasks:         services.NewTaskService(db, services.NewSubmissionReviewGateway(db, publisher, logger), logger),
		Draws:         services.NewLuckyDrawService(db, services.NewParticipationReviewGateway(db, publisher, logger), logger),
		Withdrawals:   services.NewWithdrawalService(db, publisher, logger),
		Notifications: services.NewNotificationService(db, logger),
		Dashboard:     services.NewDashboardService(db),
		Receipts:      utils.PassthroughReceipts{},
	}

	if cfg.R2Enabled() {
		signer, err := utils.NewR2ReceiptSigner(ctx, utils.R2Config{
			AccountID:       cfg.CloudflareAccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2BucketName,
			Endpoint:        cfg.R2Endpoint,
			TTL:             cfg.ReceiptURLTTL,
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		svc.Receipts = signer
	} else {
		logger.Warn("⚠️  R2 not configured, receipt references are returned as stored")
	}

	if cfg.SyncServiceURL != "" {
		workers.NewUserSyncWorker(svc.Users, cfg.SyncServiceURL, cfg.ServiceToken, cfg.UserSyncInterval, utils.HTTPClient, logger).Start(ctx)
		workers.NewDepositSyncWorker(svc.Deposits, cfg.SyncServiceURL, cfg.ServiceToken, cfg.DepositSyncInterval, utils.HTTPClient, logger).Start(ctx)
	} else {
		logger.Warn("⚠️  SYNC_SERVICE_URL not set, sync workers disabled")
	}

	scheduler, err := svc.Draws.StartDrawScheduler(cfg.SchedulerInterval)
	if err != nil {
		logger.Fatal("failed to start draw scheduler", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 4 * 1024 * 1024,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Origins(), ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	handlers.Setup(app, svc, handlers.RouterConfig{
		AdminJWTSecret: cfg.AdminJWTSecret,
		ServiceToken:   cfg.ServiceToken,
		Log:            logging.Named("http"),
	})

	go func() {
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("✅ Server running", zap.String("port", cfg.ServerPort))
	logger.Info("✅ CORS configured", zap.Strings("origins", cfg.Origins()))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("scheduler shutdown", zap.Error(err))
	}
}
