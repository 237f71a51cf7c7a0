// Command authd serves login, refresh and logout for the hotel API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/directory"
	"github.com/hotelcast/tokenauth/httpapi"
	"github.com/hotelcast/tokenauth/internal/config"
	"github.com/hotelcast/tokenauth/internal/logging"
	"github.com/hotelcast/tokenauth/internal/redisclient"
	"github.com/hotelcast/tokenauth/metrics/export/prometheus"
	"github.com/hotelcast/tokenauth/service"
	"github.com/hotelcast/tokenauth/store"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.App.LogLevel, !cfg.App.IsProduction())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "authd"))
	logger.Info("Starting auth service...")

	ctx := context.Background()

	// Redis
	rdb, err := redisclient.Connect(ctx, cfg.Redis.Client(), logger)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	// PostgreSQL
	pool, err := directory.Connect(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("Database connected", zap.Int32("max_conns", cfg.Database.MaxConns))

	// Token authority
	tokenCfg := cfg.TokenConfig()
	tokenStore := store.New(rdb, store.Options{
		KeyPrefix:        tokenCfg.Store.KeyPrefix,
		OperationTimeout: tokenCfg.Store.OperationTimeout,
		Logger:           logger,
	})
	if err := tokenStore.LoadScripts(ctx); err != nil {
		logger.Fatal("Loading token store scripts failed", zap.Error(err))
	}

	builder := tokenauth.New().
		WithConfig(tokenCfg).
		WithStore(tokenStore).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(tokenauth.NewZapSink(logger.Named("audit")))
	}
	authority, err := builder.Build()
	if err != nil {
		logger.Fatal("Token authority init failed", zap.Error(err))
	}
	defer authority.Close()

	svc := service.New(directory.NewPostgres(pool), authority, logger)

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httpapi.NewHandler(svc, authority, httpapi.CookieConfig{
		Secure:     cfg.Cookie.Secure,
		Domain:     cfg.Cookie.Domain,
		AccessTTL:  authority.AccessTTL(),
		RefreshTTL: authority.RefreshTTL(),
	}, logger)
	router := httpapi.NewRouter(handler, logger)
	router.GET("/metrics", gin.WrapH(prometheus.NewPrometheusExporter(authority).Handler()))

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		logger.Info("Auth service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
