package main

import (
	"context"
	"fmt"
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

	"hpcredit/internal/catalog"
	"hpcredit/internal/handler"
	"hpcredit/internal/identity"
	"hpcredit/internal/middleware"
	"hpcredit/internal/repository/postgres"
	"hpcredit/internal/store"
	"hpcredit/internal/wizard"
	"hpcredit/pkg/cache"
	"hpcredit/pkg/config"
	"hpcredit/pkg/logger"
	"hpcredit/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("wizard-service")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Wizard Service", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	redisCache := cache.NewRedisCache(redisClient)

	// External collaborators
	catalogClient := catalog.NewClient(cfg.Catalog, redisCache, log)
	ocrClient := identity.NewClient(cfg.OCR, log)

	// Repositories
	profileRepo := postgres.NewProfileRepository(db)
	appRepo := postgres.NewApplicationRepository(db)

	// Session manager
	snapshots := store.NewSessionStore(redisCache, cfg.Session.TTL)
	manager := wizard.NewManager(wizard.Deps{
		Catalog:  catalogClient,
		Calc:     catalogClient,
		Parser:   ocrClient,
		Profiles: profileRepo,
		Apps:     appRepo,
	}, snapshots, log)

	// Handlers
	val := validator.New()
	wizardHandler := handler.NewWizardHandler(manager, val, log, cfg.Upload.MaxFileSize)
	appHandler := handler.NewApplicationHandler(appRepo, log)
	systemHandler := handler.NewSystemHandler(db, redisClient)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(cfg.Upload.MaxFileSize))

	// Health check routes (no auth)
	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Ready).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate)
	api.Use(middleware.NewRateLimiter(redisClient, 120, time.Minute).Limit)

	wizardHandler.RegisterRoutes(api)
	appHandler.RegisterRoutes(api)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Wizard service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down wizard service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Wizard service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Wizard service stopped gracefully", nil)
}
