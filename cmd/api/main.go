package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/database"
	"github.com/mentorhub/backend/internal/handlers"
	"github.com/mentorhub/backend/internal/jobs"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/queue"
	"github.com/mentorhub/backend/internal/routes"
	"github.com/mentorhub/backend/internal/services/badges"
	"github.com/mentorhub/backend/internal/services/credits"
	"github.com/mentorhub/backend/internal/services/leaderboard"
	"github.com/mentorhub/backend/internal/services/referrals"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := config.LoadConfig()

	// Setup database connection and run migrations
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Redis backs the job queue
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid Redis URL: %v", err)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisOpts.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOpts)

	jobQueue, err := queue.NewRedisQueue(redisClient, db)
	if err != nil {
		log.Fatalf("Failed to initialize job queue: %v", err)
	}

	// Build services. The leaderboard notifier is wired after
	// construction so the credit service has no import cycle with jobs.
	creditSvc, err := credits.NewCreditService(db, cfg.Gamification)
	if err != nil {
		log.Fatalf("Failed to initialize credit service: %v", err)
	}
	badgeSvc := badges.NewBadgeService(db, creditSvc)
	leaderboardSvc := leaderboard.NewLeaderboardService(db)
	referralSvc := referrals.NewReferralService(db, creditSvc)

	creditSvc.SetNotifier(jobs.NewQueueToucher(jobQueue))

	// Background jobs and recurring sweeps
	scheduler := gocron.NewScheduler(time.UTC)
	if err := jobs.Register(jobQueue, scheduler, leaderboardSvc, referralSvc); err != nil {
		log.Fatalf("Failed to register jobs: %v", err)
	}
	jobQueue.Start(2)
	scheduler.StartAsync()

	// Initialize router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	rateLimiter := middleware.NewRateLimiter(10, 20)

	creditHandler := handlers.NewCreditHandler(creditSvc)
	badgeHandler := handlers.NewBadgeHandler(badgeSvc)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardSvc)
	referralHandler := handlers.NewReferralHandler(referralSvc)

	routes.RegisterRoutes(router, creditHandler, badgeHandler, leaderboardHandler, referralHandler, rateLimiter)

	// Shut the workers down cleanly on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down")
		scheduler.Stop()
		jobQueue.Stop()
		rateLimiter.Stop()
		os.Exit(0)
	}()

	log.Printf("MentorHub gamification API running on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
