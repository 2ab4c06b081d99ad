package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-bff/internal/api"
	"storefront-bff/internal/auth"
	"storefront-bff/internal/cache"
	"storefront-bff/internal/cart"
	"storefront-bff/internal/config"
	"storefront-bff/internal/discovery"
	"storefront-bff/internal/graphql"
	"storefront-bff/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.NewConfig()
	slog.Info("Starting API Gateway", "port", cfg.HTTPPort)

	redisClient, err := cache.NewClient(cfg.RedisAddr)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("Connected to Redis", "addr", cfg.RedisAddr)

	locator := newLocator(cfg, redisClient)
	res := locator.Discover(context.Background())
	slog.Info("GraphQL endpoint", "url", res.URL, "fallback", res.Fallback, "cached", res.Cached)

	gql := graphql.NewClient(locator, &http.Client{Timeout: 15 * time.Second})
	serviceClient := services.NewServiceClient(cfg, gql)
	carts := cart.NewService(redisClient, cfg.CartTTL, serviceClient, serviceClient)

	handler := api.NewHandler(serviceClient, redisClient, carts, locator, api.Options{
		CacheTTL:   cfg.CacheTTL,
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
	})
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	startServer(cfg.HTTPPort, api.SetupRoutes(handler, authMiddleware))
}

type endpointLocator interface {
	discovery.Locator
	graphql.EndpointResolver
}

// newLocator uses a fixed endpoint when one is configured and port
// discovery, cached in Redis, otherwise.
func newLocator(cfg *config.Config, redisClient *cache.Client) endpointLocator {
	if cfg.GraphQL.URL != "" {
		return discovery.Static(cfg.GraphQL.URL)
	}
	return discovery.New(discovery.Options{
		Host:        cfg.GraphQL.Host,
		Path:        cfg.GraphQL.Path,
		Ports:       cfg.GraphQL.Ports,
		DefaultPort: cfg.GraphQL.DefaultPort,
		Timeout:     cfg.GraphQL.ProbeTimeout,
		Cache:       redisClient,
	})
}

func startServer(port string, router http.Handler) {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownSignal
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		return
	}
	slog.Info("Server stopped")
}
