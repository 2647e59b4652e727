package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"carpool/internal/app"
	"carpool/internal/config"
	"carpool/internal/events"
	"carpool/internal/handler"
	"carpool/internal/middleware"
	internalRedis "carpool/internal/redis"
	"carpool/internal/repository/postgres"
	"carpool/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled (with DB instrumentation)")
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	publisher, err := app.NewEventPublisher(ctx, cfg.Events, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize event publisher")
	}
	defer publisher.Close()
	logger.WithField("driver", cfg.Events.Driver).Info("Event publisher ready")

	// Wire dependencies.
	server, sweeper, err := wireServer(ctx, db, redisClient, publisher, nrApp, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to wire server")
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if cfg.Booking.SweeperEnabled {
		go sweeper.Run(workerCtx)
		logger.WithField("interval", cfg.Booking.SweepInterval.String()).Info("Booking sweeper started")
	}

	// Start server in goroutine.
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}

	logger.Info("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the sweeper.
func wireServer(
	ctx context.Context,
	db *sql.DB,
	redisClient *redis.Client,
	publisher events.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *logrus.Logger,
) (*http.Server, *service.Sweeper, error) {
	issuer, err := middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}

	processor, err := app.NewProcessor(cfg.Payment)
	if err != nil {
		return nil, nil, err
	}

	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient, cfg.Booking.SettlementTTL)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient, internalRedis.IdempotencyTTL)

	// Initialize repositories.
	txManager := postgres.NewTxManager(db, cfg.Booking.TxMaxRetries)
	profileRepo := postgres.NewProfileRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	authRepo := postgres.NewAuthorizationRepository(db)
	payoutRepo := postgres.NewPayoutRepository(db)

	// Initialize services.
	notificationService := service.NewNotificationService(publisher, logger)
	gateway := service.NewPaymentGateway(authRepo, processor, logger)
	inventory := service.NewInventoryController(txManager, rideRepo, cfg.Booking.ReservationTTL, logger)
	bookingService := service.NewBookingService(
		txManager, bookingRepo, rideRepo, profileRepo,
		inventory, gateway, lockStore, cacheStore, notificationService,
		service.BookingConfig{HoldTTL: cfg.Booking.HoldTTL, LockTTL: cfg.Booking.LockTTL},
		logger,
	)
	rideService := service.NewRideService(rideRepo, profileRepo, logger)
	profileService := service.NewProfileService(profileRepo)
	driverService := service.NewDriverService(profileRepo, logger)
	if err := driverService.PromoteAdmins(ctx, cfg.Auth.AdminProfileIDs); err != nil {
		return nil, nil, err
	}
	settlementService := service.NewSettlementService(bookingRepo, rideRepo, payoutRepo, profileRepo, cacheStore, notificationService, logger)
	sweeper := service.NewSweeper(inventory, bookingService, rideRepo, bookingRepo, cfg.Booking.SweepInterval, logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		BookingHandler: handler.NewBookingHandler(bookingService),
		RideHandler:    handler.NewRideHandler(rideService),
		ProfileHandler: handler.NewProfileHandler(profileService, issuer),
		AdminHandler:   handler.NewAdminHandler(settlementService),
		DriverHandler:  handler.NewDriverHandler(driverService),
		TokenIssuer:    issuer,
		Idempotency:    idempotencyStore,
		NewRelicApp:    nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sweeper, nil
}
