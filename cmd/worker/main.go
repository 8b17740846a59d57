// Package main is the entry point for the LMS background worker:
// access expiry, invite expiry, outbox relay and table cleanup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lms/internal/app"
)

func main() {
	log, err := app.NewLogger("lms-worker")
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}
	// The worker needs few connections.
	cfg.MaxConns = int32(app.GetEnvInt("WORKER_MAX_CONNS", 5))
	cfg.ApplicationName = "lms-worker"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to build application", "error", err)
	}
	defer a.Close()

	// Self-enrollment checks read flags, so the cache must be live here too.
	if err := a.Flags.Start(ctx); err != nil {
		log.Fatalw("failed to load feature flags", "error", err)
	}

	jobsCfg := app.DefaultJobsConfig()
	jobsCfg.ExpiryEvery = app.GetEnvDuration("JOB_EXPIRY_INTERVAL", jobsCfg.ExpiryEvery)
	jobsCfg.OutboxEvery = app.GetEnvDuration("JOB_OUTBOX_INTERVAL", jobsCfg.OutboxEvery)
	jobsCfg.OutboxBatch = app.GetEnvInt("JOB_OUTBOX_BATCH", jobsCfg.OutboxBatch)
	jobsCfg.CleanupEvery = app.GetEnvDuration("JOB_CLEANUP_INTERVAL", jobsCfg.CleanupEvery)

	scheduler, err := a.Jobs(jobsCfg)
	if err != nil {
		log.Fatalw("failed to register jobs", "error", err)
	}
	scheduler.Start()
	log.Infow("worker started", "jobs", scheduler.Names())

	<-ctx.Done()
	log.Info("shutting down worker...")
	if err := scheduler.Shutdown(); err != nil {
		log.Errorw("scheduler shutdown failed", "error", err)
	}
	a.Pool.LogStats(context.WithoutCancel(ctx))
	log.Info("worker stopped")
}
