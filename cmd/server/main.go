package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/ratelimit"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.BaseURL == "" {
		slog.Error("BASE_URL is not set; scheduling requests will be rejected")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	asynqClient := asynq.NewClient(redisConn)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	delayQueue := queue.NewAsynqClient(asynqClient, inspector, cfg.QueueName)
	signer := queue.NewSigner(cfg.QueueSigningKey)

	app := fiber.New(fiber.Config{
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 1 * time.Minute,
		BodyLimit:    60 * 1024 * 1024, // 60 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	prom := fiberprometheus.New("postflow")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	instagramService := service.NewInstagramService()
	publishers := service.NewPublishers(service.NewTwitterService(), service.NewLinkedInService(), instagramService)
	credentialService := service.NewCredentialService(*cfg, socialAccountRepo, service.NewTokenRefreshers(*cfg, instagramService))

	schedulerService := service.NewSchedulerService(*cfg, postRepo, credentialService, delayQueue)
	executorService := service.NewExecutorService(postRepo, historyRepo, credentialService, publishers)
	bulkService := service.NewBulkService(*cfg, postRepo, delayQueue)
	postService := service.NewPostService(postRepo, historyRepo, delayQueue)
	adapterService := service.NewAdapterService(*cfg)

	var uploader service.ObjectUploader
	if cfg.R2.AccountID != "" {
		r2Client, err := service.NewR2Client(context.Background(), *cfg)
		if err != nil {
			log.Fatalf("Failed to configure R2: %v", err)
		}
		uploader = r2Client
	}
	r2Service := service.NewR2Service(*cfg, uploader)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	apiLimit := middleware.NewRateLimitMiddleware("api", ratelimit.NewSlidingWindow(rdb, "api", cfg.RateLimitAPI, time.Minute))
	aiLimit := middleware.NewRateLimitMiddleware("ai", ratelimit.NewSlidingWindow(rdb, "ai", cfg.RateLimitAI, time.Hour))
	queueMiddleware := middleware.NewQueueMiddleware(signer)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		status := fiber.Map{"database": "healthy", "redis": "healthy"}
		code := fiber.StatusOK
		if err := db.PingContext(ctx); err != nil {
			status["database"] = "unhealthy"
			code = fiber.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "unhealthy"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(status)
	})

	execute := handlers.NewExecuteHandler(executorService)
	app.Post(service.ExecuteCallbackPath, queueMiddleware.VerifySignature(), execute.Execute)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	schedule := handlers.NewScheduleHandler(schedulerService)
	api.Post("/schedule", apiLimit.Limit(), schedule.Schedule)
	api.Post("/post/retry", apiLimit.Limit(), schedule.RetryPost)
	api.Post("/batch/schedule", apiLimit.Limit(), schedule.BatchSchedule)
	api.Post("/drafts", apiLimit.Limit(), schedule.SaveDraft)
	api.Post("/posts/:id/schedule", apiLimit.Limit(), schedule.ScheduleDraft)

	post := handlers.NewPostHandler(postService, bulkService)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/bulk", apiLimit.Limit(), post.Bulk)
	api.Get("/posts/:id", post.GetPost)
	api.Get("/posts/:id/history", post.PostHistory)
	api.Delete("/posts/:id", apiLimit.Limit(), post.RemovePost)

	media := handlers.NewMediaHandler(r2Service, adapterService)
	api.Post("/media", apiLimit.Limit(), media.Upload)
	api.Post("/adapt", aiLimit.Limit(), media.Adapt)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, credentialService)
	reconcileJob := job.NewReconcileJob(postRepo)

	c := cron.New()
	if err := c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Failed to schedule token refresh: %v", err)
	}
	if err := c.AddFunc("@every 00h05m00s", reconcileJob.ReconcileStalePosts); err != nil {
		log.Fatalf("Failed to schedule reconciliation: %v", err)
	}
	c.Start()
	defer c.Stop()

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:    cfg.QueueConcurrency,
		Queues:         map[string]int{cfg.QueueName: 1},
		RetryDelayFunc: queue.RetryDelay,
	})

	mux := asynq.NewServeMux()
	deliverer := queue.NewDeliverer(signer, &http.Client{Timeout: 25 * time.Second})
	mux.HandleFunc(queue.TaskTypeDeliver, deliverer.HandleDeliveryTask)

	go func() {
		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, server)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	log.Println("Server shutdown complete.")
}
