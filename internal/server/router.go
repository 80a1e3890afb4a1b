// Package server assembles the HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradi/internal/handlers"
	"tradi/internal/middleware"
	"tradi/internal/services"
)

// Deps are the collaborators the router hands to its handlers. Syncer may be
// nil, in which case the sync endpoint answers 503.
type Deps struct {
	UserService      services.UserServicer
	CatalogueService services.CatalogueServicer
	PositionService  services.PositionServicer
	AuditService     services.AuditServicer
	Syncer           handlers.CatalogueSyncer

	JWTSecret      string
	TokenTTL       time.Duration
	PipelineAPIKey string
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(deps Deps) *gin.Engine {
	authHandler := handlers.NewAuthHandler(deps.UserService, deps.AuditService, deps.JWTSecret, deps.TokenTTL)
	catalogueHandler := handlers.NewCatalogueHandler(deps.CatalogueService, deps.AuditService)
	positionHandler := handlers.NewPositionHandler(deps.PositionService, deps.AuditService)
	syncHandler := handlers.NewCatalogueSyncHandler(deps.Syncer)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(deps.JWTSecret))

	protected.GET("/profile", authHandler.GetProfile)

	assets := protected.Group("/assets")
	assets.GET("", catalogueHandler.ListAssets)
	assets.GET("/:id", catalogueHandler.GetAsset)

	pairs := protected.Group("/trading-pairs")
	pairs.GET("", catalogueHandler.ListTradingPairs)
	pairs.GET("/grouped", catalogueHandler.GroupTradingPairs)
	pairs.GET("/lookup", catalogueHandler.LookupTradingPair)
	pairs.GET("/:id", catalogueHandler.GetTradingPair)

	positions := protected.Group("/positions")
	positions.POST("", positionHandler.CreatePosition)
	positions.GET("", positionHandler.ListPositions)
	positions.GET("/:id", positionHandler.GetPosition)
	positions.PATCH("/:id", positionHandler.UpdatePosition)
	positions.DELETE("/:id", positionHandler.DeletePosition)
	positions.POST("/:id/close", positionHandler.ClosePosition)
	positions.POST("/:id/comments", positionHandler.AddComment)

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(deps.PipelineAPIKey))

	pipeline.POST("/assets", catalogueHandler.CreateAsset)
	pipeline.PATCH("/assets/:id", catalogueHandler.UpdateAsset)
	pipeline.POST("/trading-pairs", catalogueHandler.CreateTradingPair)
	pipeline.POST("/catalogue/sync", syncHandler.Sync)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
