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

	"affiliate-payouts/internal/app"
	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/logger"
	"affiliate-payouts/internal/server"
	"affiliate-payouts/internal/worker"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("api stopped")
		os.Exit(1)
	}
}

// run returns instead of exiting so the deferred cleanup always happens.
func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}
	defer application.Close()

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(application.Services, log)

	log.WithField("addr", serverAddr).Info("Starting HTTP server")
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		reconciler := worker.NewReconcileWorker(log, application.Services.Payout, cfg.Worker.Interval)
		go func() {
			defer close(workerDone)
			_ = reconciler.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Signal received, starting graceful shutdown...")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
		log.WithError(err).Error("HTTP server error, shutting down")
	}
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("reconcile worker did not stop in time")
	}

	return runErr
}
