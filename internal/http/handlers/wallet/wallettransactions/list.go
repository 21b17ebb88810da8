// Package wallettransactions возвращает историю изменений баланса текущего пользователя.
package wallettransactions

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
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service описывает чтение журнала транзакций.
type Service interface {
	Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
}

// Handler обрабатывает чтение журнала.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary История транзакций
// @Tags Wallet
// @Produce json
// @Param limit query int false "Количество записей (по умолчанию 20, максимум 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /wallet/transactions [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.transactions"

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

	limit, offset := Paging(r, defaultLimit, maxLimit)

	txs, err := h.service.Transactions(r.Context(), userUID, limit, offset)
	if err != nil {
		log.Error("failed to list transactions", sl.Err(err))
		render.Status(r, response.StatusFor(err))
		render.JSON(w, r, response.Error(response.MessageFor(err, "invalid request")))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"count":        len(txs),
		"transactions": txs,
	}))
}

// Paging читает limit и offset из строки запроса. Некорректные значения
// заменяются значениями по умолчанию, limit ограничивается сверху.
func Paging(r *http.Request, defLimit, maxLimit int) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
