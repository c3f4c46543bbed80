package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livesignal/internal/core/ports"
	"livesignal/internal/core/services"
	httphandlers "livesignal/internal/handlers/http"
	"livesignal/internal/infrastructure/directory"
	"livesignal/internal/infrastructure/middleware"
	"livesignal/internal/infrastructure/monitoring"
	repositories "livesignal/internal/infrastructure/repositories"
	signalws "livesignal/internal/infrastructure/signal"
	"livesignal/pkg/config"
	"livesignal/pkg/logger"
	"livesignal/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/livesignal/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("failed to initialize tracing, continuing without it", "error", err)
	}

	// Initialize repository factory (Redis with in-memory fallback)
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	presenceRepo := repoFactory.CreatePresenceRepository()

	// Identity directory: external user service when configured,
	// otherwise the static in-process list.
	var identityDir ports.IdentityDirectory
	if cfg.Directory.BaseURL != "" {
		identityDir = directory.NewHTTPDirectory(cfg.Directory.BaseURL, cfg.Directory.RequestTimeout.Std(), log)
		log.Infow("using HTTP identity directory", "base_url", cfg.Directory.BaseURL)
	} else {
		identityDir = directory.NewStaticDirectory(cfg.Directory.StaticUsers)
		log.Infow("using static identity directory", "users", len(cfg.Directory.StaticUsers))
	}

	// Initialize monitoring
	collector := monitoring.NewPrometheusCollector()
	healthChecker := monitoring.NewHealthChecker(2 * time.Second)
	healthChecker.AddCheck("presence_store", repoFactory.HealthCheck)

	// Initialize services. The WebSocket server is the endpoint sender
	// for the room service, so it is built first and attached after.
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Std())
	wsServer := signalws.NewWebSocketServer(nil, nil, authService, collector, log)
	wsServer.SetPingInterval(cfg.Signal.PingInterval.Std())
	wsServer.SetReadTimeout(cfg.Signal.PongTimeout.Std())
	wsServer.SetWriteTimeout(cfg.Signal.WriteTimeout.Std())
	if cfg.RateLimiting.Enabled {
		wsServer.SetMessageRateLimit(
			cfg.RateLimiting.WebSocket.MessagesPerSecond,
			cfg.RateLimiting.WebSocket.Burst,
			cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		)
	}

	roomRouter := services.NewRoomService(presenceRepo, identityDir, wsServer, collector, log)
	lifecycle := services.NewLifecycleService(roomRouter, presenceRepo, wsServer, collector, log)
	wsServer.Attach(lifecycle, roomRouter)

	// Initialize HTTP handlers
	liveHandler := httphandlers.NewLiveHandler(presenceRepo, healthChecker, log)
	liveHandler.SetConnectionCounter(wsServer.ConnectionCount)
	authHandler := httphandlers.NewAuthHandler(authService, identityDir, cfg.Auth.TokenTTL.Std())

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authHandler.SetupRoutes(router)
	liveHandler.SetupRoutes(router)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	apiSrv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	// Signaling socket runs on its own listener so media-plane proxies
	// can route it separately from the REST API.
	signalMux := http.NewServeMux()
	signalMux.HandleFunc("/ws", wsServer.HandleWebSocket)
	signalSrv := &http.Server{
		Addr:    cfg.Signal.Address,
		Handler: signalMux,
	}

	serverErr := make(chan error, 2)
	go func() {
		log.Infof("Starting live signal API server on %s", cfg.Server.Address)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	go func() {
		log.Infof("Starting live signaling socket on %s", cfg.Signal.Address)
		if err := signalSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	signalCtx, signalCancel := context.WithTimeout(context.Background(), cfg.Signal.ShutdownTimeout.Std())
	defer signalCancel()
	if err := signalSrv.Shutdown(signalCtx); err != nil {
		log.Errorw("error during signaling socket shutdown", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during API server shutdown", "error", err)
		if closeErr := apiSrv.Close(); closeErr != nil {
			log.Errorw("error force closing API server", "error", closeErr)
		}
	}

	if tracerProvider != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tracerCancel()
		if err := tracerProvider.Shutdown(tracerCtx); err != nil {
			log.Errorw("error shutting down tracer provider", "error", err)
		}
	}

	log.Info("server shutdown complete")
}
