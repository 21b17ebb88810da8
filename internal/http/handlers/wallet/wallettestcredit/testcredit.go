// Package wallettestcredit начисляет тестовые кредиты. Доступно только при
// включённом флаге ledger.allow_test_credit.
package wallettestcredit

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

// Service описывает начисление кредитов.
type Service interface {
	Credit(ctx context.Context, userID string, amount int64, src models.CreditSource) (*models.Wallet, error)
}

// Handler обрабатывает тестовое пополнение.
type Handler struct {
	log     *slog.Logger
	service Service
	enabled bool
	amount  int64
}

// New создает Handler. При enabled == false любой запрос получает 403.
func New(log *slog.Logger, service Service, enabled bool, amount int64) *Handler {
	return &Handler{log: log, service: service, enabled: enabled, amount: amount}
}

// ServeHTTP godoc
// @Summary Тестовое пополнение
// @Description Начисляет фиксированное количество кредитов без оплаты. Только для тестовых окружений.
// @Tags Wallet
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /wallet/test-credit [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.testcredit"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if !h.enabled {
		log.Warn("test credit is disabled")
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error("test credit is disabled"))
		return
	}

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user UID not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	wallet, err := h.service.Credit(r.Context(), userUID, h.amount, models.CreditSource{
		Type:     models.TransactionGrant,
		Metadata: map[string]string{"reason": "test_credit"},
	})
	if err != nil {
		log.Error("failed to grant test credit", sl.Err(err))
		render.Status(r, response.StatusFor(err))
		render.JSON(w, r, response.Error(response.MessageFor(err, "invalid request")))
		return
	}

	log.Info("test credit granted", slog.String("user_id", userUID), slog.Int64("credits", h.amount))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"wallet":        wallet,
		"total_credits": wallet.Total(),
	}))
}
