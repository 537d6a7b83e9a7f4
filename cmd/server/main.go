package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recharge_desk/internal/config"
	"recharge_desk/internal/handler"
	"recharge_desk/internal/logger"
	"recharge_desk/internal/repository"
	"recharge_desk/internal/service"
	"recharge_desk/internal/storage"
	"recharge_desk/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})
	if envErr != nil {
		log.Info().Msg("No .env file found or error loading, relying on environment variables")
	}
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// --- Store ---
	var store repository.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("Using in-memory store, data will not survive a restart")
		store = repository.NewMemoryStore()
	default:
		dbPool, err := config.ConnectDB(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := config.AutoMigrate(ctx, dbPool); err != nil {
			log.Fatal().Err(err).Msg("Failed to auto-migrate database")
		}
		store = repository.NewPostgresStore(dbPool)
	}

	// --- Receipt storage ---
	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to initialize receipt storage")
	}

	// --- Services ---
	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret, cfg.JWTTTL)
	policy, err := service.NewStatusPolicy(cfg.StatusPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid status policy")
	}

	auditService := service.NewAuditService(store)
	authService := service.NewAuthService(store, jwtUtil)
	transactionService := service.NewTransactionService(store, auditService, policy, cfg.PixKey)
	receiptService := service.NewReceiptService(store, files, auditService, cfg.MaxUploadBytes)

	if err := authService.BootstrapAdmin(ctx, cfg.AdminSeedPassword); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed admin account")
	}

	// --- Router ---
	router, err := handler.NewRouter(handler.Deps{
		Auth:           authService,
		Transactions:   transactionService,
		Receipts:       receiptService,
		Audit:          auditService,
		JWT:            jwtUtil,
		Health:         store,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	// --- Start Server ---
	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.StoreDriver).
			Str("storage", cfg.Storage.Driver).
			Str("status_policy", cfg.StatusPolicy).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
