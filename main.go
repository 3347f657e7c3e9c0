package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"referral-reward-system/config"
	"referral-reward-system/handlers"
	"referral-reward-system/logging"
	"referral-reward-system/middleware"
	"referral-reward-system/models"
	"referral-reward-system/services"
	"referral-reward-system/workers"
)

func main() {
	// A missing .env is fine in production, env vars come from the
	// platform there.
	_ = godotenv.Load()

	logger := logging.NewLogger()
	defer logger.Sync() //nolint:errcheck
	log := logger.Sugar()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	if cfg.ServiceToken == "" {
		log.Fatal("REWARD_SERVICE_TOKEN is not set, service cannot authenticate Gateway requests")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}

	// tutorial_steps is owned by the tutorial tracker; migrating it here
	// keeps local development self-contained.
	if err := db.AutoMigrate(
		&models.User{},
		&models.RewardSetting{},
		&models.RewardEvent{},
		&models.UserCredits{},
		&models.CreditTransaction{},
		&models.TutorialStep{},
	); err != nil {
		log.Fatalw("failed to migrate database", "error", err)
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Infow("settings cache enabled", "addr", cfg.RedisAddr)
	}

	ledgerStore := services.NewGormLedgerStore(db)
	rewardService := services.NewRewardService(ledgerStore, log, cfg.InitialCreditAllotment)
	settingsService := services.NewSettingsService(db, cache, log)
	referralService := services.NewReferralService(db, rewardService, settingsService, log)
	codeProvisioner := services.NewReferralCodeProvisioner(db, log)

	app := fiber.New(fiber.Config{
		AppName: "referral-reward-system",
	})

	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log))

	origins := make([]string, 0)
	for _, origin := range strings.Split(cfg.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
	}))

	handlers.SetupReferralRoutes(app, referralService, codeProvisioner, log)
	handlers.SetupAdminRoutes(app, settingsService, rewardService, codeProvisioner, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backfillWorker *workers.CodeBackfillWorker
	if cfg.CodeBackfillInterval > 0 {
		backfillWorker = workers.NewCodeBackfillWorker(codeProvisioner, cfg.CodeBackfillInterval, log)
		if err := backfillWorker.Start(); err != nil {
			log.Fatalw("failed to start backfill worker", "error", err)
		}
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			log.Errorw("metrics server stopped", "error", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorw("server error", "error", err)
		}
	}()

	log.Infow("referral reward service running",
		"port", cfg.Port, "metrics_port", cfg.MetricsPort,
		"initial_allotment", cfg.InitialCreditAllotment)

	<-ctx.Done()
	log.Info("shutting down")
	if backfillWorker != nil {
		backfillWorker.Stop()
	}
	if err := app.Shutdown(); err != nil {
		log.Errorw("server shutdown failed", "error", err)
	}
}
