package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/medibridge/telehealth/backend/go/internal/v1/assistant"
	"github.com/medibridge/telehealth/backend/go/internal/v1/bus"
	"github.com/medibridge/telehealth/backend/go/internal/v1/config"
	"github.com/medibridge/telehealth/backend/go/internal/v1/directory"
	"github.com/medibridge/telehealth/backend/go/internal/v1/health"
	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
	"github.com/medibridge/telehealth/backend/go/internal/v1/middleware"
	"github.com/medibridge/telehealth/backend/go/internal/v1/ratelimit"
	"github.com/medibridge/telehealth/backend/go/internal/v1/relay"
	"github.com/medibridge/telehealth/backend/go/internal/v1/tracing"
)

const serviceName = "telehealth-relay"

func main() {
	// Load .env for local development. Try multiple paths to handle the
	// different ways of running the binary.
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Tracing (optional) ---
	if cfg.OtelCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.OtelCollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracing, continuing without it", "error", err)
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					slog.Error("Failed to shut down tracer provider", "error", err)
				}
			}()
			slog.Info("✅ Tracing initialized", "collector", cfg.OtelCollectorAddr)
		}
	}

	// --- Redis Bus Initialization (Optional) ---
	// Cross-instance event delivery; without it the relay runs single-instance.
	var busService *bus.Service
	if cfg.RedisEnabled {
		busService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("Failed to connect to Redis, running in single-instance mode", "error", err)
			busService = nil
		} else {
			slog.Info("✅ Redis pub/sub initialized for distributed messaging", "addr", cfg.RedisAddr)
		}
	} else {
		slog.Info("Running in single-instance mode (Redis disabled)")
	}

	// --- Rate Limiting ---
	// Backed by Redis when the bus is up, in-process memory otherwise.
	rateLimiter, err := ratelimit.NewRateLimiter(cfg, busService.Client())
	if err != nil {
		slog.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	// --- Hub ---
	origins := splitOrigins(cfg.AllowedOrigins)
	var hub *relay.Hub
	if busService != nil {
		hub = relay.NewHub(busService, rateLimiter, origins)
	} else {
		hub = relay.NewHub(nil, rateLimiter, origins)
	}
	hub.Start(ctx)

	// --- Assistant ---
	assistantClient := assistant.NewClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	assistantHandler := assistant.NewHandler(assistantClient)

	// --- Set up Server ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware(serviceName))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, middleware.HeaderXCorrelationID)
	router.Use(cors.New(corsConfig))

	// Routing
	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/relay", hub.ServeWs)
	}

	apiGroup := router.Group("/api/v1", rateLimiter.GlobalMiddleware())
	{
		apiGroup.GET("/ice", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"iceServers": cfg.ICEServers})
		})
		apiGroup.GET("/doctors", directory.NewHandler(directory.NewCatalog()).List)
		apiGroup.POST("/assistant/chat", assistantHandler.Chat)
		apiGroup.POST("/assistant/specialties", assistantHandler.Specialties)
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(busService, assistantClient)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	go func() {
		slog.Info("Relay server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Disconnect every client so browsers reconnect to another instance.
	hub.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	if busService != nil {
		if err := busService.Close(); err != nil {
			slog.Error("Failed to close Redis connection:", "error", err)
		} else {
			slog.Info("Redis connection closed")
		}
	}

	slog.Info("Server exiting")
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}
