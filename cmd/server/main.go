package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/aotal/dicom-api-mcp-project/internal/adapters"
	"github.com/aotal/dicom-api-mcp-project/internal/cache"
	"github.com/aotal/dicom-api-mcp-project/internal/config"
	"github.com/aotal/dicom-api-mcp-project/internal/database"
	"github.com/aotal/dicom-api-mcp-project/internal/handlers"
	"github.com/aotal/dicom-api-mcp-project/internal/middleware"
	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/repository"
	"github.com/aotal/dicom-api-mcp-project/internal/scp"
	"github.com/aotal/dicom-api-mcp-project/internal/services"
	"github.com/aotal/dicom-api-mcp-project/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare storage directory")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting DICOM Gateway")

	// Audit database is optional
	var auditRepo *repository.AuditRepository
	if cfg.Database.Enabled {
		if err := database.Connect(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to audit database")
		}
		defer database.Close()
		auditRepo = repository.NewAuditRepository()
	} else {
		log.Info().Msg("Audit database disabled")
	}

	// Initialize cache
	var cacheImpl cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}

	// Local C-STORE receiver for incoming C-MOVE sub-operations
	receiver := scp.New(cfg.SCP.AET, cfg.SCP.Port, cfg.SCP.StorageDir)
	receiver.Start()
	defer func() {
		if err := receiver.Stop(); err != nil {
			log.Warn().Err(err).Msg("C-STORE receiver did not stop cleanly")
		}
	}()

	// Adapter factory and the configured remote node
	adapterFactory := adapters.NewAdapterFactory(cfg.Client.AET)
	defer adapterFactory.CloseAll()

	node := models.PACSNode{
		ID:      uuid.New(),
		Name:    "primary",
		Type:    models.PACSType(cfg.PACS.Type),
		Host:    cfg.PACS.Host,
		Port:    cfg.PACS.Port,
		AETitle: cfg.PACS.AET,
	}

	// Initialize services
	pacsService := services.NewPACSService(
		node,
		adapterFactory,
		cacheImpl,
		cfg.Cache.TTL,
		auditRepo,
		cfg.SCP.AET,
		cfg.SCP.StorageDir,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	pacsHandler := handlers.NewPACSHandler(pacsService)
	managementHandler := handlers.NewManagementHandler(pacsService, auditRepo)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Query/retrieve API
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/studies", pacsHandler.QueryStudies)
		r.Get("/studies/{studyUID}/series", pacsHandler.QuerySeries)
		r.Get("/studies/{studyUID}/series/{seriesUID}/instances", pacsHandler.QueryInstances)

		r.Post("/retrieve", pacsHandler.Retrieve)
		r.Get("/local/instances/{sopInstanceUID}/metadata", pacsHandler.LocalInstanceMetadata)

		r.Post("/pacs/test", managementHandler.TestConnection)
		r.Get("/nodes", managementHandler.ListNodes)
		r.Get("/audit", managementHandler.ListAudit)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		// WriteTimeout must outlast a worst-case C-MOVE
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
