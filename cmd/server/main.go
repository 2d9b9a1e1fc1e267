// Package main is the entry point for the Relatio API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relatio/internal/domain/auth"
	"relatio/internal/domain/customfield"
	"relatio/internal/domain/records/contact"
	"relatio/internal/domain/records/lead"
	"relatio/internal/infrastructure/cache"
	v1 "relatio/internal/infrastructure/http/v1"
	"relatio/internal/infrastructure/storage/postgres"
	"relatio/internal/infrastructure/storage/postgres/customfield_repo"
	"relatio/internal/infrastructure/storage/postgres/record_repo"
	"relatio/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting relatio server")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Definition cache with LISTEN/NOTIFY invalidation ---
	memCache := cache.NewMemory()
	definitionCache := cache.NewReadThrough[[]customfield.Definition](
		memCache,
		getEnvDuration("SCHEMA_CACHE_TTL", cache.DefaultTTL),
	)

	listener := cache.NewListener(pool.Unwrap(), memCache)
	listener.Start(ctx)
	defer listener.Stop()

	// --- Audit ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Custom field registry ---
	definitionRepo := customfield_repo.NewDefinitionRepo(txManager)
	fieldCfg := customfield.DefaultServiceConfig()
	if quota := getEnvInt("CUSTOM_FIELD_QUOTA", 0); quota > 0 {
		fieldCfg.MaxPerEntityType = quota
	}
	fieldService := customfield.NewService(definitionRepo, definitionCache, txManager, auditService, fieldCfg)

	validator := customfield.NewValidator(fieldService)
	translator := customfield.NewTranslator(fieldService)

	// --- Record services ---
	leadRepo := record_repo.NewLeadRepo(txManager)
	contactRepo := record_repo.NewContactRepo(txManager)

	leadService := lead.NewService(leadRepo, validator, translator, txManager)
	contactService := contact.NewService(contactRepo, leadRepo, validator, translator, txManager)

	// --- JWT ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		CustomFields: fieldService,
		Leads:        leadService,
		Contacts:     contactService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
