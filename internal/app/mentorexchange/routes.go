package mentorexchange

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/mentor-exchange/internal/config"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/health"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/mentors/mentorstop"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/payment/paymentcheckout"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/profile/profileread"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/profile/profileupsert"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/session/sessionbook"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/session/sessionlist"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/waitlist/waitlistjoin"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/wallet/walletread"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/wallet/wallettestcredit"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/wallet/wallettransactions"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/booking"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/matchmaking"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/profile"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/wallet"
)

// Services — зависимости маршрутов.
type Services struct {
	Store       health.Pinger
	Ledger      *wallet.Ledger
	Booking     *booking.Orchestrator
	Matchmaking *matchmaking.Service
	Profiles    *profile.Service
	Provider    paymentcheckout.ProviderClient
	Verifier    paymentwebhook.Verifier
	Dispatcher  paymentwebhook.Dispatcher
	Tokens      middlewarectx.TokenParser
	Limiter     *middlewarectx.Limiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, s Services) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger, s.Store).ServeHTTP)
		r.Post("/waitlist", waitlistjoin.New(logger, s.Profiles).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, s.Limiter))

			r.Get("/profile", profileread.New(logger, s.Profiles).ServeHTTP)
			r.Put("/profile", profileupsert.New(logger, s.Profiles).ServeHTTP)
			r.Get("/mentors/top", mentorstop.New(logger, s.Matchmaking).ServeHTTP)

			r.Get("/wallet", walletread.New(logger, s.Ledger).ServeHTTP)
			r.Get("/wallet/transactions", wallettransactions.New(logger, s.Ledger).ServeHTTP)
			r.Post("/wallet/test-credit", wallettestcredit.New(logger, s.Ledger, cfg.Ledger.AllowTestCredit, cfg.Ledger.TestCreditAmount).ServeHTTP)

			r.Post("/sessions", sessionbook.New(logger, s.Booking).ServeHTTP)
			r.Get("/sessions", sessionlist.New(logger, s.Booking).ServeHTTP)

			checkout := paymentcheckout.New(logger, s.Provider, cfg.Payment.PlanPriceIDs())
			r.Get("/checkout", checkout.ServeHTTP)
			r.Post("/checkout", checkout.ServeHTTP)
		})

		// Вебхук проверяется подписью, а не токеном
		r.Post("/payments/webhook", paymentwebhook.New(logger, s.Verifier, s.Dispatcher).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
