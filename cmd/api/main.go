package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slotwise/booking-api/internal/config"
	"github.com/slotwise/booking-api/internal/handler"
	appointmentHandler "github.com/slotwise/booking-api/internal/handler/appointment"
	availabilityHandler "github.com/slotwise/booking-api/internal/handler/availability"
	bookingHandler "github.com/slotwise/booking-api/internal/handler/booking"
	slotHandler "github.com/slotwise/booking-api/internal/handler/slot"
	"github.com/slotwise/booking-api/internal/middleware"
	"github.com/slotwise/booking-api/internal/repository/postgres"
	"github.com/slotwise/booking-api/internal/router"
	appointmentService "github.com/slotwise/booking-api/internal/service/appointment"
	auditService "github.com/slotwise/booking-api/internal/service/audit"
	availabilityService "github.com/slotwise/booking-api/internal/service/availability"
	bookingService "github.com/slotwise/booking-api/internal/service/booking"
	slotService "github.com/slotwise/booking-api/internal/service/slot"
	internalWorker "github.com/slotwise/booking-api/internal/worker"
	"github.com/slotwise/booking-api/pkg/cache"
	"github.com/slotwise/booking-api/pkg/logger"
	"github.com/slotwise/booking-api/pkg/messaging/redis"
	"github.com/slotwise/booking-api/pkg/metrics"
	"github.com/slotwise/booking-api/pkg/validator"
	"github.com/slotwise/booking-api/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	baseRepo := postgres.NewBaseRepository(db)
	slotRepo := postgres.NewSlotRepository(baseRepo)
	appointmentRepo := postgres.NewAppointmentRepository(baseRepo)
	workingHoursRepo := postgres.NewWorkingHoursRepository(baseRepo)
	auditRepo := postgres.NewAuditRepository(baseRepo)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	// Initialize services
	m := metrics.NewMetrics("booking", "core")
	hoursCache := cache.New(cache.Config{
		DefaultTTL:      time.Duration(cfg.Booking.AvailabilityCacheTTLSeconds) * time.Second,
		CleanupInterval: 10 * time.Minute,
	})

	slotSvc := slotService.NewService(slotRepo, m).
		WithDefaultHold(time.Duration(cfg.Booking.DefaultHoldSeconds) * time.Second)
	availabilitySvc := availabilityService.NewService(workingHoursRepo, slotRepo, hoursCache)
	auditSvc := auditService.NewService(auditRepo)
	appointmentSvc := appointmentService.NewService(appointmentRepo, slotSvc, availabilitySvc, auditSvc, outboxRepo, m)
	bookingSvc := bookingService.NewService(slotSvc, appointmentRepo, availabilitySvc, outboxRepo)

	// Initialize handlers
	v := validator.New()
	h := handler.NewHandler(db)
	slotH := slotHandler.NewHandler(slotSvc, v)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc, v)
	bookingH := bookingHandler.NewHandler(bookingSvc, v)
	availabilityH := availabilityHandler.NewHandler(availabilitySvc)

	// Setup router
	r := router.NewRouter(h, slotH, appointmentH, bookingH, availabilityH, router.Config{
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		CORSConfig:     middleware.DefaultCORSConfig(),
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	})
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis message broker
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger.ZL())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Initialize and start outbox processor with broker
	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{}, appLogger, m)
	go outboxProcessor.Start(ctx)

	// Start the hold reaper so abandoned reservations return to the pool.
	reaper := internalWorker.NewReaper(slotSvc, time.Duration(cfg.Booking.ReapIntervalSeconds)*time.Second)
	go reaper.Start(ctx)

	// Start server
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
