// cmd/server/main.go
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

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/clearpix/simple-denoiser/internal/bus"
	"github.com/clearpix/simple-denoiser/internal/config"
	"github.com/clearpix/simple-denoiser/internal/httpapi"
	"github.com/clearpix/simple-denoiser/internal/job"
	"github.com/clearpix/simple-denoiser/internal/queue"
	"github.com/clearpix/simple-denoiser/internal/storage"
	"github.com/clearpix/simple-denoiser/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("server starting", "addr", cfg.Addr, "upload_dir", cfg.UploadDir, "processed_dir", cfg.ProcessedDir, "queue_size", cfg.QueueSize, "retention", cfg.JobRetention)

	uploads, err := storage.NewDisk(cfg.UploadDir)
	if err != nil {
		fatal(logger, "ensure upload directory", err, "dir", cfg.UploadDir)
	}
	processed, err := storage.NewDisk(cfg.ProcessedDir)
	if err != nil {
		fatal(logger, "ensure processed directory", err, "dir", cfg.ProcessedDir)
	}

	var events bus.Publisher = bus.Nop{}
	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer nc.Close()
		events = nc
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL, "subject", cfg.EventSubject)
	}

	jobs := job.NewStore()
	q := queue.New(cfg.QueueSize)

	w := worker.New(worker.Config{
		Queue:        q,
		Jobs:         jobs,
		Uploads:      uploads,
		Results:      processed,
		Events:       events,
		EventSubject: cfg.EventSubject,
		JobTimeout:   cfg.JobTimeout,
		Logger:       logger,
	})
	sweeper := job.NewSweeper(jobs, cfg.SweepInterval, cfg.JobRetention, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go w.Run(ctx)
	go sweeper.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	api := httpapi.New(httpapi.Config{
		Jobs:           jobs,
		Queue:          q,
		Uploads:        uploads,
		Processed:      processed,
		Worker:         w,
		Events:         events,
		EventSubject:   cfg.EventSubject,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})
	api.Register(e)

	go func() {
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "http server", err, "addr", cfg.Addr)
		}
	}()
	logger.Info("listening", "addr", cfg.Addr)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
