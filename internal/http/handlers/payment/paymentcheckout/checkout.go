// Package paymentcheckout создаёт checkout-сессию у платёжного провайдера.
package paymentcheckout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/mentor-exchange/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/response"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/paymentprovider"
)

// DefaultPlan — тариф, если параметр plan не передан.
const DefaultPlan = "1h"

// ProviderClient создаёт checkout-сессии.
type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, req paymentprovider.CheckoutRequest) (*paymentprovider.CheckoutSession, error)
}

// Handler обрабатывает создание checkout-сессии.
type Handler struct {
	log            *slog.Logger
	providerClient ProviderClient
	prices         map[string]string
}

// New создает Handler. prices сопоставляет тариф идентификатору цены провайдера.
func New(log *slog.Logger, providerClient ProviderClient, prices map[string]string) *Handler {
	return &Handler{
		log:            log,
		providerClient: providerClient,
		prices:         prices,
	}
}

// ServeHTTP godoc
// @Summary Оплатить тариф
// @Description Создаёт checkout-сессию. Тариф pass оформляется как подписка. С redirect=1 отвечает 303 на страницу оплаты.
// @Tags Payments
// @Produce json
// @Param plan query string false "Тариф: 1h, 5h, 10h, pass" default(1h)
// @Param redirect query int false "1 — перенаправить на страницу оплаты"
// @Success 200 {object} paymentprovider.CheckoutSession
// @Success 303
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.checkout"

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

	plan := r.URL.Query().Get("plan")
	if plan == "" {
		plan = DefaultPlan
	}
	priceID, ok := h.prices[plan]
	if !ok || priceID == "" {
		log.Warn("unknown plan or missing price", slog.String("plan", plan))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("Unknown plan or missing price ID"))
		return
	}

	session, err := h.providerClient.CreateCheckoutSession(r.Context(), paymentprovider.CheckoutRequest{
		Plan:    plan,
		PriceID: priceID,
		UserID:  userUID,
	})
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		render.Status(r, response.StatusFor(err))
		render.JSON(w, r, response.Error(response.MessageFor(err, "payment provider rejected the request")))
		return
	}

	log.Info("checkout session created", slog.String("plan", plan), slog.String("session_id", session.ID))
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, session.URL, http.StatusSeeOther)
		return
	}
	render.JSON(w, r, map[string]string{"url": session.URL})
}
