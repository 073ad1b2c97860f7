// Package main provides the cerebro worker: a long-running daemon that runs
// the daily sync on a cron schedule and serves observability endpoints.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/v6582374-netizen/Cerebro/internal/observability/logging"
	"github.com/v6582374-netizen/Cerebro/internal/pkg/config"
)

const defaultSyncSchedule = "30 6 * * *"

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	settings := config.Load("")
	runtime, err := newRuntime(settings, logger)
	if err != nil {
		logger.Error("worker bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer runtime.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedule := os.Getenv("WORKER_SYNC_SCHEDULE")
	if schedule == "" {
		schedule = defaultSyncSchedule
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		run, err := runtime.syncSvc.Sync(runCtx, time.Now(), "cron")
		if err != nil {
			logger.Error("scheduled sync failed", slog.Any("error", err))
			return
		}
		if _, err := runtime.coverageSvc.Compute(runCtx, time.Now()); err != nil {
			logger.Error("coverage compute failed", slog.Any("error", err))
		}
		logger.Info("scheduled sync finished",
			slog.String("run_id", run.PublicID),
			slog.Int("success", run.SuccessCount),
			slog.Int("fail", run.FailCount),
			slog.Int("new_articles", run.NewCount))
	})
	if err != nil {
		logger.Error("invalid sync schedule", slog.String("schedule", schedule), slog.Any("error", err))
		os.Exit(1)
	}

	metricsAddr := os.Getenv("WORKER_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	metricsServer := startMetricsServer(metricsAddr, runtime.database, logger)

	scheduler.Start()
	logger.Info("worker started",
		slog.String("schedule", schedule),
		slog.String("metrics_addr", metricsAddr))

	<-ctx.Done()
	logger.Info("worker shutting down")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}
