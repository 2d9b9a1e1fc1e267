// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"relatio/internal/domain/customfield"
	"relatio/internal/domain/records/contact"
	"relatio/internal/domain/records/lead"
	"relatio/internal/infrastructure/http/v1/handlers"
	"relatio/internal/infrastructure/http/v1/middleware"
	"relatio/internal/infrastructure/storage/postgres"
	"relatio/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Services
	CustomFields *customfield.Service
	Leads        *lead.Service
	Contacts     *contact.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()
	customFieldHandler := handlers.NewCustomFieldHandler(base, cfg.CustomFields)
	leadHandler := handlers.NewLeadHandler(base, cfg.Leads)
	contactHandler := handlers.NewContactHandler(base, cfg.Contacts)

	// API v1: everything is organization-scoped via the JWT.
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	{
		customFields := api.Group("/custom-fields")
		{
			customFields.GET("", customFieldHandler.ListByEntityType)
			customFields.POST("", middleware.RequireRole("admin"), customFieldHandler.Create)
			customFields.GET("/:id", customFieldHandler.GetByID)
			customFields.GET("/:id/history", middleware.RequireRole("admin"), customFieldHandler.History)
			customFields.PATCH("/:id", middleware.RequireRole("admin"), customFieldHandler.Update)
			customFields.DELETE("/:id", middleware.RequireRole("admin"), customFieldHandler.Delete)
		}

		leads := api.Group("/leads")
		{
			leads.GET("", leadHandler.List)
			leads.POST("", leadHandler.Create)
			leads.POST("/search", leadHandler.Search)
			leads.GET("/:id", leadHandler.GetByID)
			leads.PUT("/:id", leadHandler.Update)
			leads.DELETE("/:id", leadHandler.Delete)
			leads.GET("/:id/contacts", contactHandler.ListByLead)
		}

		contacts := api.Group("/contacts")
		{
			contacts.GET("", contactHandler.List)
			contacts.POST("", contactHandler.Create)
			contacts.POST("/search", contactHandler.Search)
			contacts.GET("/:id", contactHandler.GetByID)
			contacts.PUT("/:id", contactHandler.Update)
			contacts.DELETE("/:id", contactHandler.Delete)
		}
	}

	return router
}
