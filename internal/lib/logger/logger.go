// Package logger создаёт slog.Logger для окружения сервиса.
package logger

import (
	"log/slog"
	"os"
)

// Окружения, для которых выбирается формат и уровень логов.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New возвращает текстовый логгер уровня Debug для local и dev и уровня Info для prod.
func New(env string) *slog.Logger {
	level := slog.LevelDebug
	if env == EnvProd {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
