// Package profileread возвращает профиль текущего пользователя.
package profileread

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mentor-exchange/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/response"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// Service описывает чтение профиля.
type Service interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
}

// Handler обрабатывает чтение профиля.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Мой профиль
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /profile [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.read"

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

	p, err := h.service.Get(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read profile", sl.Err(err))
		render.Status(r, response.StatusFor(err))
		render.JSON(w, r, response.Error(response.MessageFor(err, "invalid request")))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"profile": p,
	}))
}
