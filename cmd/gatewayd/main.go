// Command gatewayd verifies access tokens and proxies authenticated requests
// to the hotel services with the principal in trusted headers.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotelcast/tokenauth/gateway"
	"github.com/hotelcast/tokenauth/internal/config"
	"github.com/hotelcast/tokenauth/internal/logging"
	"github.com/hotelcast/tokenauth/jwt"
	"github.com/hotelcast/tokenauth/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.App.LogLevel, !cfg.App.IsProduction())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("service", "gatewayd"))

	if len(cfg.Gateway.Upstreams) == 0 {
		logger.Fatal("GATEWAY_UPSTREAMS is empty")
	}

	tc := cfg.TokenConfig()
	decoder, err := jwt.NewManager(jwt.Config{
		Algorithm:  jwt.Algorithm(tc.JWT.Algorithm),
		Secret:     tc.JWT.Secret,
		PrivateKey: tc.JWT.PrivateKey,
		PublicKey:  tc.JWT.PublicKey,
		AccessTTL:  tc.JWT.AccessTTL,
		RefreshTTL: tc.JWT.RefreshTTL,
		Issuer:     tc.JWT.Issuer,
		Audience:   tc.JWT.Audience,
		Leeway:     tc.JWT.Leeway,
	})
	if err != nil {
		logger.Fatal("Token decoder init failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           newHandler(gateway.NewVerifier(decoder), cfg.Gateway, logger),
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Gateway listening", zap.String("addr", srv.Addr), zap.Int("upstreams", len(cfg.Gateway.Upstreams)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Gateway forced to shutdown", zap.Error(err))
	}
}

// newHandler routes each upstream prefix through token verification to a
// reverse proxy. Public paths skip verification; unmatched paths get 404
// without touching the verifier.
func newHandler(verifier middleware.Verifier, gw config.GatewayConfig, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	guard := middleware.Gateway(verifier, middleware.GatewayOptions{
		PublicPaths: gw.PublicPaths,
		Logger:      logger,
	})

	for _, up := range gw.Upstreams {
		proxy := httputil.NewSingleHostReverseProxy(up.URL)
		target := up.URL.String()
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed",
				zap.String("upstream", target),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			w.WriteHeader(http.StatusBadGateway)
		}

		prefix := up.Prefix
		mux.Handle(prefix, guard(proxy))
		if prefix[len(prefix)-1] != '/' {
			mux.Handle(prefix+"/", guard(proxy))
		}
	}

	return middleware.TraceID(mux)
}
