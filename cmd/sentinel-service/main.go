package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pb-sentinel/internal/sentinel/config"
	delivery "pb-sentinel/internal/sentinel/delivery/http"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/internal/sentinel/service"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
	"pb-sentinel/pkg/postgres"
	"pb-sentinel/pkg/redis"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the sentinel service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Sentinel Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	assetRepo := repository.NewAssetRepository(db.DB)
	thresholdRepo := repository.NewThresholdRepository(db.DB)
	valuationRepo := repository.NewValuationRepository(db.DB)
	signalRepo := repository.NewSignalRepository(db.DB)
	positionRepo := repository.NewPositionRepository(db.DB)
	portfolioRepo := repository.NewPortfolioRepository(db.DB)
	ledgerRepo := repository.NewLedgerRepository(db.DB)
	scanRunRepo := repository.NewScanRunRepository(db.DB)
	marketDataRepo := repository.NewMarketDataRepository(cfg, appLogger)
	fundamentalsRepo := repository.NewFundamentalsRepository(cfg, appLogger)

	// Initialize services
	valuationSvc := service.NewValuationService(valuationRepo, marketDataRepo, positionRepo, redisClient, appLogger, cfg.App.Account)
	thresholdSvc := service.NewThresholdService(thresholdRepo, valuationRepo, cfg, appLogger)

	var filters []service.SignalFilter
	if cfg.Signal.EnableCooldown {
		filters = append(filters, service.NewCooldownFilter(signalRepo, cfg.Signal.CooldownDays))
	}
	if cfg.Signal.EnableROEFilter {
		filters = append(filters, service.NewROEFilter(fundamentalsRepo, appLogger, cfg.Signal.MinROE))
	}
	signalSvc := service.NewSignalService(signalRepo, positionRepo, thresholdSvc, valuationSvc, filters, cfg, appLogger)
	riskSvc := service.NewRiskService(positionRepo, portfolioRepo, assetRepo, ledgerRepo, cfg, appLogger)
	actionSvc := service.NewActionService(ledgerRepo, positionRepo, portfolioRepo, riskSvc, signalSvc, appLogger)
	scannerSvc := service.NewScannerService(scanRunRepo, assetRepo, valuationSvc, signalSvc, redisClient, cfg, appLogger)
	poolSvc := service.NewPoolService(assetRepo, appLogger)

	if err := portfolioRepo.EnsureExists(ctx, cfg.App.Account); err != nil {
		appLogger.Fatal("Failed to initialize portfolio", logger.ErrorField(err))
	}

	// Optionally (re)start the scan loop on a cron schedule. Starting is
	// idempotent: a live loop keeps the run token and the attempt is a no-op.
	var scheduler *cron.Cron
	if cfg.Scanner.CronSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Scanner.CronSchedule, func() {
			if err := scannerSvc.Start(context.Background()); err != nil && err != apperrors.ErrScanAlreadyRunning {
				appLogger.Error("Scheduled scanner start failed", logger.ErrorField(err))
			}
		})
		if err != nil {
			appLogger.Fatal("Invalid scanner cron schedule", logger.ErrorField(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	assetHandler := delivery.NewAssetHandler(poolSvc, appLogger)
	assetsGroup := apiV1.Group("/assets")
	assetHandler.RegisterRoutes(assetsGroup)

	valuationHandler := delivery.NewValuationHandler(valuationSvc, poolSvc, appLogger)
	valuationHandler.RegisterRoutes(assetsGroup)

	thresholdHandler := delivery.NewThresholdHandler(thresholdSvc, poolSvc, appLogger)
	thresholdHandler.RegisterRoutes(assetsGroup)

	signalHandler := delivery.NewSignalHandler(signalSvc, appLogger)
	signalsGroup := apiV1.Group("/signals")
	signalHandler.RegisterRoutes(signalsGroup)

	actionHandler := delivery.NewActionHandler(actionSvc, cfg.App.Account, appLogger)
	actionsGroup := apiV1.Group("/actions")
	actionHandler.RegisterRoutes(actionsGroup)

	portfolioHandler := delivery.NewPortfolioHandler(riskSvc, cfg.App.Account, appLogger)
	portfolioHandler.RegisterRoutes(apiV1)

	scannerHandler := delivery.NewScannerHandler(scannerSvc, appLogger)
	scannerGroup := apiV1.Group("/scanner")
	scannerHandler.RegisterRoutes(scannerGroup)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scannerSvc.Shutdown(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "sentinel-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing sentinel-service CLI: %s\n", err)
		os.Exit(1)
	}
}
