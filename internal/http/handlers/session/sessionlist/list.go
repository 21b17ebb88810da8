// Package sessionlist возвращает сессии, забронированные текущим пользователем.
package sessionlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/wallet/wallettransactions"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/response"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// Service описывает чтение сессий.
type Service interface {
	ListSessions(ctx context.Context, learnerID string, limit, offset int) ([]*models.Session, error)
}

// Handler обрабатывает чтение сессий.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Мои сессии
// @Tags Sessions
// @Produce json
// @Param limit query int false "Количество записей (по умолчанию 20, максимум 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /sessions [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user UID not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	limit, offset := wallettransactions.Paging(r, 20, 100)

	sessions, err := h.service.ListSessions(r.Context(), userUID, limit, offset)
	if err != nil {
		log.Error("failed to list sessions", sl.Err(err))
		render.Status(r, response.StatusFor(err))
		render.JSON(w, r, response.Error(response.MessageFor(err, "invalid request")))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	}))
}
