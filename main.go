package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sanskarm7/JobCATGmail/config"
	"github.com/sanskarm7/JobCATGmail/internal/bootstrap"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

func main() {
	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "jobcat-" + *mode,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	switch *mode {
	case "api":
		runAPI(ctx, cfg, bootstrap.NewAPI(deps))
	case "worker":
		runWorker(ctx, bootstrap.NewWorker(deps))
	case "all":
		// the worker first, so the API sees its in-process producer when Redis is absent
		w := bootstrap.NewWorker(deps)
		if err := w.Start(); err != nil {
			logger.Fatal("Failed to start worker: %v", err)
		}
		defer w.Stop()
		runAPI(ctx, cfg, bootstrap.NewAPI(deps))
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, api *bootstrap.API) {
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API server (timeout: %v)...", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down: %v", err)
			return
		}
		logger.Info("API server shut down gracefully")
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := api.Listen(addr); err != nil {
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}

func runWorker(ctx context.Context, w *bootstrap.Worker) {
	logger.Info("Starting worker...")
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start worker: %v", err)
	}
	<-ctx.Done()

	logger.Info("Shutting down worker...")
	w.Stop()
	logger.Info("Worker shut down gracefully")
}
