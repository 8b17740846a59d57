// Package main is the entry point for the LMS API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"lms/internal/app"
	v1 "lms/internal/infrastructure/http/v1"
	"lms/internal/infrastructure/http/v1/handlers"
	"lms/internal/infrastructure/storage/postgres"
)

var version = "dev"

func main() {
	log, err := app.NewLogger("lms-server")
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting lms server", "version", version)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to build application", "error", err)
	}
	defer a.Close()

	if app.GetEnvBool("AUTO_MIGRATE", true) {
		if err := postgres.Migrate(ctx, a.Pool); err != nil {
			log.Fatalw("migrations failed", "error", err)
		}
	}

	if err := a.Flags.Start(ctx); err != nil {
		log.Fatalw("failed to load feature flags", "error", err)
	}

	health := map[string]handlers.Pinger{
		"database": handlers.PingFunc(a.Pool.Ping),
	}
	if a.Redis != nil {
		health["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}

	router := v1.NewRouter(v1.RouterConfig{
		Services:     a.Services,
		Logger:       log,
		Metrics:      a.Metrics,
		JWTValidator: a.JWT,
		Resolver:     a.Resolver,
		Idempotency:  a.Idempotency,
		Health:       health,
		Version:      version,
	})
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	origins := app.GetEnvList("CORS_ORIGINS")
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: origins[0] != "*",
		MaxAge:           600,
	})

	addr := app.GetEnv("HTTP_ADDR", ":8080")
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
