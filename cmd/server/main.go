package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/postdeck/postdeck/configs"
	"github.com/postdeck/postdeck/internal/api/handlers"
	"github.com/postdeck/postdeck/internal/api/middleware"
	"github.com/postdeck/postdeck/internal/dispatch"
	"github.com/postdeck/postdeck/internal/jobs"
	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/platforms"
	"github.com/postdeck/postdeck/internal/queue"
	"github.com/postdeck/postdeck/internal/repository"
	"github.com/postdeck/postdeck/internal/scheduler"
	"github.com/postdeck/postdeck/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	// One HTTP client shared by every adapter; timeouts come from config
	// rather than per-adapter constants.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	registry := platforms.NewRegistry(
		platforms.NewFacebookAdapter(httpClient),
		platforms.NewInstagramAdapter(httpClient, cfg.InstagramPollInterval, cfg.InstagramPollMaxAttempts, cfg.InstagramImageIngestDelay),
		platforms.NewXAdapter(httpClient, cfg.XPollInterval, cfg.XPollMaxAttempts),
		platforms.NewLinkedInAdapter(httpClient),
		platforms.NewTumblrAdapter(httpClient),
		platforms.NewPinterestAdapter(httpClient),
	)

	stager := media.NewR2Stager(*cfg)
	orchestrator := dispatch.NewOrchestrator(postRepo, connectionRepo, attemptRepo, registry, stager, cfg.SecretKey, cfg.DispatchConcurrency)
	runner := scheduler.NewRunner(postRepo, attemptRepo, orchestrator)

	apiKeyService := service.NewApiKeyService(apiKeyRepo)
	postService := service.NewPostService(db, postRepo, connectionRepo, attemptRepo, orchestrator, client)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	cronHandler := handlers.NewCronHandler(runner, cfg.CronSecret)
	app.Post("/cron/run", cronHandler.Run)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)

	account := handlers.NewAccountHandler(connectionRepo)
	api.Get("/accounts", account.ListAccounts)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)

	// cron jobs
	refreshTokenJob := jobs.NewTokenRefreshJob(connectionRepo, cfg.LinkedInClientID, cfg.LinkedInClientSecret, cfg.SecretKey)
	sweep := func() {
		if _, err := runner.Run(context.Background()); err != nil {
			log.Printf("Scheduler sweep failed: %v", err)
		}
	}

	c := cron.New()
	c.AddFunc("@every 00h01m00s", sweep)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	// queue
	worker := queue.NewWorker(postRepo, orchestrator)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDispatchPost, worker.HandleDispatchPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
