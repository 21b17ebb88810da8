// Package mentorstop возвращает лучших менторов для текущего пользователя.
package mentorstop

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mentor-exchange/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/response"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/matching"
)

// MaxK — верхняя граница размера выдачи.
const MaxK = 50

// Service описывает подбор менторов.
type Service interface {
	TopMentors(ctx context.Context, learnerID string, k int) ([]matching.Ranked, error)
}

// Handler обрабатывает подбор менторов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Лучшие менторы
// @Description Менторы по убыванию балла совпадения языков, навыков и репутации.
// @Tags Mentors
// @Produce json
// @Param k query int false "Размер выдачи (по умолчанию 5, максимум 50)"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /mentors/top [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.mentors.top"

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

	k := matching.DefaultTopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > MaxK {
			log.Warn("invalid k", slog.String("k", raw))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("k must be an integer between 1 and 50"))
			return
		}
		k = parsed
	}

	ranked, err := h.service.TopMentors(r.Context(), userUID, k)
	if err != nil {
		log.Error("failed to pick mentors", sl.Err(err))
		render.Status(r, response.StatusFor(err))
		render.JSON(w, r, response.Error(response.MessageFor(err, "invalid request")))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"mentors": ranked,
	}))
}
