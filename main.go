package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sadaltman/hackiiit-bsr/internal/api"
	"github.com/sadaltman/hackiiit-bsr/internal/cache"
	"github.com/sadaltman/hackiiit-bsr/internal/config"
	"github.com/sadaltman/hackiiit-bsr/internal/db"
	"github.com/sadaltman/hackiiit-bsr/internal/email"
	"github.com/sadaltman/hackiiit-bsr/internal/services"
	"github.com/sadaltman/hackiiit-bsr/internal/storage"
	"github.com/sadaltman/hackiiit-bsr/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Schema bootstrap: indexes back the purchase-request uniqueness and
	// search, category seed makes a fresh database usable.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(startupCtx, mongoDb); err != nil {
		cancelStartup()
		log.Fatalf("Failed to ensure database indexes: %v", err)
	}
	if err := services.NewCategoryService(mongoDb).SeedDefaults(startupCtx); err != nil {
		cancelStartup()
		log.Fatalf("Failed to seed categories: %v", err)
	}
	cancelStartup()

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	var wg sync.WaitGroup
	var mainApiSrv *http.Server

	fmt.Printf("Starting %s in '%s' mode...\n", cfg.AppName, cfg.RunMode)

	apiMode := func() {
		mainApiRouter := api.SetupRouter(cfg, mongoDb, redisClient, taskClient)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("API ListenAndServe error: %v", err)
			}
			fmt.Println("API server stopped.")
		}()
	}

	bgMode := func() {
		emailSender := email.NewSMTPSender(cfg)

		var s3StorageService storage.IS3Storage
		if cfg.AwsS3Bucket != "" {
			s3StorageService, err = storage.NewS3Storage(cfg)
			if err != nil {
				log.Fatalf("Failed to initialize S3 storage for worker: %v", err)
			}
		}

		listingService := services.NewListingService(mongoDb, cfg)
		userService := services.NewUserService(mongoDb, cfg)
		taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, s3StorageService, listingService, userService)

		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Println("Background task server starting...")
			if err := tasks.SetupServer(redisClient, taskProcessor); err != nil {
				log.Printf("Background task server error: %v", err)
			}
			fmt.Println("Background task server stopped.")
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
	}

	// The asynq server installs its own signal handler and drains in-flight
	// tasks before Run returns.
	wg.Wait()
	fmt.Println("Server gracefully stopped")
}
