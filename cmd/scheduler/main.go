package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/fitpact/deposit-engine/internal/config"
	"github.com/fitpact/deposit-engine/internal/lock"
	"github.com/fitpact/deposit-engine/internal/repository"
	"github.com/fitpact/deposit-engine/internal/service"
)

func main() {
	log.Println("Starting progress scheduler...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	depositRepo := repository.NewDepositRepository(db)
	contractRepo := repository.NewContractRepository(db)
	checkInRepo := repository.NewCheckInRepository(db)

	locker := lock.NewRedisLocker(redisClient, cfg.LockTTL(), cfg.LockRetryInterval(), cfg.Lock.MaxRetries)
	gateway := service.LogGateway{CashierBaseURL: "https://pay.fitpact.cn/cashier"}
	notifier := service.LogNotifier{}
	plans := service.WeekdayPlanProvider{Location: cfg.DayLocation()}

	depositService := service.NewDepositService(depositRepo, locker, gateway, notifier, cfg)
	contractService := service.NewContractService(contractRepo, depositService, locker, notifier, cfg)
	progressService := service.NewProgressService(contractRepo, checkInRepo, depositService, plans, locker, notifier, cfg)

	// Initialize cron scheduler in the business timezone so "midnight"
	// matches the users' day boundary
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.DayLocation()))

	// Schedule tasks
	setupCronJobs(c, cfg, depositService, contractService, progressService)

	// Start the scheduler
	c.Start()
	log.Println("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	c.Stop()
	log.Println("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, deposits *service.DepositService, contracts *service.ContractService, progress *service.ProgressService) {
	// Nightly job: evaluate every elapsed day of every active contract,
	// then settle contracts whose end date has passed
	_, err := c.AddFunc(cfg.Business.EvaluationCron, func() {
		log.Println("Running nightly progress evaluation...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		now := time.Now()
		if err := progress.EvaluatePending(ctx, now); err != nil {
			log.Printf("Progress evaluation failed: %v", err)
		}
		if err := contracts.SettleExpired(ctx, now); err != nil {
			log.Printf("Expired-contract settlement failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling progress evaluation job: %v", err)
	}

	// Hourly job: expire pending deposits whose payment window lapsed
	_, err = c.AddFunc(cfg.Business.ExpirySweepCron, func() {
		log.Println("Running deposit expiry sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := deposits.ExpireStale(ctx, time.Now()); err != nil {
			log.Printf("Deposit expiry sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling deposit expiry sweep: %v", err)
	}

	log.Println("Cron jobs scheduled successfully")
}
