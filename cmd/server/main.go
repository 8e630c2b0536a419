package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/fitpact/deposit-engine/internal/config"
	"github.com/fitpact/deposit-engine/internal/handler"
	"github.com/fitpact/deposit-engine/internal/lock"
	"github.com/fitpact/deposit-engine/internal/repository"
	"github.com/fitpact/deposit-engine/internal/service"
	"github.com/fitpact/deposit-engine/pkg/response"
)

func main() {
	// Load .env for local development; ignored when absent
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	depositRepo := repository.NewDepositRepository(db)
	contractRepo := repository.NewContractRepository(db)
	checkInRepo := repository.NewCheckInRepository(db)

	// Per-record locks are shared across all service instances
	locker := lock.NewRedisLocker(redisClient, cfg.LockTTL(), cfg.LockRetryInterval(), cfg.Lock.MaxRetries)

	// Collaborators; vendor adapters live outside this service
	gateway := service.LogGateway{CashierBaseURL: "https://pay.fitpact.cn/cashier"}
	notifier := service.LogNotifier{}
	plans := service.WeekdayPlanProvider{Location: cfg.DayLocation()}

	// Initialize services
	depositService := service.NewDepositService(depositRepo, locker, gateway, notifier, cfg)
	contractService := service.NewContractService(contractRepo, depositService, locker, notifier, cfg)
	progressService := service.NewProgressService(contractRepo, checkInRepo, depositService, plans, locker, notifier, cfg)

	depositHandler := handler.NewDepositHandler(depositService, contractService)
	contractHandler := handler.NewContractHandler(contractService, progressService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(depositHandler, contractHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(depositHandler *handler.DepositHandler, contractHandler *handler.ContractHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/deposits", depositHandler.CreateDeposit).Methods("POST")
	api.HandleFunc("/deposits/{depositId}", depositHandler.GetDeposit).Methods("GET")
	api.HandleFunc("/deposits/{depositId}/usage", depositHandler.GetUsage).Methods("GET")
	api.HandleFunc("/deposits/{depositId}/refund", depositHandler.RequestRefund).Methods("POST")
	api.HandleFunc("/users/{userId}/deposits/stats", depositHandler.GetStats).Methods("GET")

	api.HandleFunc("/payments/callback", depositHandler.PaymentCallback).Methods("POST")
	api.HandleFunc("/refunds/callback", depositHandler.RefundCallback).Methods("POST")

	api.HandleFunc("/contracts", contractHandler.CreateContract).Methods("POST")
	api.HandleFunc("/contracts/{contractId}", contractHandler.GetContract).Methods("GET")
	api.HandleFunc("/contracts/{contractId}/settle", contractHandler.SettleContract).Methods("POST")
	api.HandleFunc("/contracts/{contractId}/evaluate", contractHandler.EvaluateDay).Methods("POST")

	api.HandleFunc("/checkins", contractHandler.SubmitCheckIn).Methods("POST")
	api.HandleFunc("/checkins/{checkInId}/review", contractHandler.ReviewCheckIn).Methods("POST")

	return router
}
