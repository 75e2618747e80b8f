package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sadaltman/hackiiit-bsr/internal/api/handlers"
	"github.com/sadaltman/hackiiit-bsr/internal/api/middleware"
	"github.com/sadaltman/hackiiit-bsr/internal/config"
	"github.com/sadaltman/hackiiit-bsr/internal/services"
	"github.com/sadaltman/hackiiit-bsr/internal/storage"
	"github.com/sadaltman/hackiiit-bsr/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client) *gin.Engine {
	userService := services.NewUserService(db, cfg)
	listingService := services.NewListingService(db, cfg)
	messageService := services.NewMessageService(db)
	categoryService := services.NewCategoryService(db)
	configService := services.NewConfigService(cfg, rdb)

	var notifier services.IDecisionNotifier
	if taskClient != nil {
		notifier = tasks.NewNotifier(taskClient)
	}
	purchaseService := services.NewPurchaseService(listingService, messageService, notifier)

	var s3StorageService storage.IS3Storage
	if cfg.AwsS3Bucket != "" {
		var err error
		s3StorageService, err = storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
		}
	}

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	restUserHandler := handlers.NewRestUserHandler(userService)
	restListingHandler := handlers.NewRestListingHandler(listingService, messageService, purchaseService, s3StorageService, taskClient)
	restMessageHandler := handlers.NewRestMessageHandler(messageService, userService, listingService)
	restCategoryHandler := handlers.NewRestCategoryHandler(categoryService)
	restConfigHandler := handlers.NewRestConfigHandler(configService)

	v1 := r.Group("/v1")
	{
		// Public routes
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		v1.GET("/config", restConfigHandler.GetPublicConfig)
		v1.GET("/category", restCategoryHandler.ListCategories)

		v1.POST("/user", restUserHandler.Register)
		v1.POST("/user/login", restUserHandler.Login)
		v1.GET("/user/:id", restUserHandler.GetProfile)

		v1.GET("/listing/search", restListingHandler.SearchListings)
		v1.GET("/listing/recent", restListingHandler.RecentListings)
		v1.GET("/listing/:id", restListingHandler.GetListingByID)

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/listing", restListingHandler.CreateListing)
			authRequired.GET("/listing/mine", restListingHandler.MyListings)
			authRequired.PUT("/listing/:id", restListingHandler.UpdateListing)
			authRequired.DELETE("/listing/:id", restListingHandler.DeleteListing)

			authRequired.POST("/listing/:id/buy", restListingHandler.BuyListing)
			authRequired.POST("/listing/:id/approve/:user_id", restListingHandler.ApprovePurchase)
			authRequired.POST("/listing/:id/decline/:user_id", restListingHandler.DeclinePurchase)

			authRequired.POST("/listing/:id/image", restListingHandler.RequestImageUpload)
			authRequired.POST("/listing/:id/image/confirm", restListingHandler.ConfirmImageUpload)

			authRequired.POST("/message", restMessageHandler.SendMessage)
			authRequired.GET("/message", restMessageHandler.GetConversations)
			authRequired.GET("/message/unread", restMessageHandler.GetUnreadCount)
			authRequired.GET("/message/:user_id/:listing_id", restMessageHandler.GetThread)
		}
	}

	return r
}
