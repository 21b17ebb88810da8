// Package main содержит точку входа воркера платёжных событий.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/mentor-exchange/internal/app/paymentworker"
	"github.com/magabrotheeeer/mentor-exchange/internal/config"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/logger"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	log.Info("starting payment-worker", slog.String("env", cfg.Env), slog.String("queue", cfg.RabbitMQ.Queue))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := paymentworker.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize payment worker", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Error("payment worker stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("payment worker stopped gracefully")
}
