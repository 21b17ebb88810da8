// Package sl содержит атрибуты slog, общие для всех логгеров сервиса.
package sl

import "log/slog"

// Err возвращает атрибут "error" с текстом ошибки. Для nil пишется "<nil>",
// чтобы логирование не падало на путях, где ошибка необязательна.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
