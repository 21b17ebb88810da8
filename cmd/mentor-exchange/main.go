// Package main Mentor Exchange API
//
// @title           Mentor Exchange API
// @version         1.0
// @description     API биржи времени: профили, подбор менторов, кредиты, бронирование сессий и оплата.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/magabrotheeeer/mentor-exchange/docs"
	"github.com/magabrotheeeer/mentor-exchange/internal/app/mentorexchange"
	"github.com/magabrotheeeer/mentor-exchange/internal/config"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/logger"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	log.Info("starting mentor-exchange", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage.Driver))
	log.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := mentorexchange.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("mentor-exchange stopped gracefully")
}
