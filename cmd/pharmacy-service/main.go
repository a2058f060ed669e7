package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/handler"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmaflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/config"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/messaging"
	"github.com/pharmaflow/pharmacy-backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	stockRepo := repository.NewStockRepository(db)
	historyRepo := repository.NewStockHistoryRepository(db)
	consumptionRepo := repository.NewConsumptionRepository(db)
	usageRepo := repository.NewDailyUsageRepository(db)
	expiryRepo := repository.NewExpiryRegisterRepository(db)
	medicineRepo := repository.NewMedicineRepository(db)

	// Initialize services
	stockService := service.NewStockService(db, stockRepo, historyRepo, consumptionRepo, usageRepo, medicineRepo, publisher, log)
	sweepService := service.NewSweepService(db, stockRepo, expiryRepo, historyRepo, publisher, log)
	reportService := service.NewReportService(stockRepo, usageRepo, log)

	// Initialize handlers
	stockHandler := handler.NewStockHandler(stockService, log)
	expiryHandler := handler.NewExpiryHandler(sweepService, log)
	reportHandler := handler.NewReportHandler(reportService, log)
	medicineHandler := handler.NewMedicineHandler(stockService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the background sweep scheduler
	if cfg.Sweep.Enabled {
		scheduler := service.NewSweepScheduler(sweepService, cfg.Sweep.Interval, log)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		// Stock routes
		r.Route("/stock", func(r chi.Router) {
			r.Get("/", stockHandler.CurrentStock)
			r.Post("/receipts", stockHandler.Receive)
			r.Post("/consumptions", stockHandler.Consume)
			r.Get("/consumptions", stockHandler.Consumptions)
			r.Get("/history", stockHandler.History)
			r.Get("/expiry-dates", stockHandler.ExpiryDates)
		})

		// Expiry register routes
		r.Route("/expiry-register", func(r chi.Router) {
			r.Get("/", expiryHandler.List)
			r.Get("/pending-count", expiryHandler.PendingCount)
			r.Put("/{id}/remove", expiryHandler.MarkRemoved)
		})

		// On-demand sweeps
		r.Post("/sweeps/expiry", expiryHandler.SweepExpiry)
		r.Post("/sweeps/archive", expiryHandler.SweepArchive)

		// Medicine catalogue
		r.Get("/medicines", medicineHandler.List)
		r.Get("/medicine-forms", medicineHandler.Forms)

		// Reports
		r.Get("/reports/monthly-usage", reportHandler.MonthlyUsage)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler before closing connections
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
