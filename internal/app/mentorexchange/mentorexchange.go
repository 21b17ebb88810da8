// Package mentorexchange собирает HTTP-приложение биржи: хранилище, кэш,
// журнал кредитов, бронирование, платежи и маршруты.
package mentorexchange

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/mentor-exchange/internal/cache"
	"github.com/magabrotheeeer/mentor-exchange/internal/config"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/mentor-exchange/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/jwt"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/migrations"
	"github.com/magabrotheeeer/mentor-exchange/internal/paymentprovider"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/booking"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/matchmaking"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/payment"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/profile"
	"github.com/magabrotheeeer/mentor-exchange/internal/services/wallet"
	"github.com/magabrotheeeer/mentor-exchange/internal/storage/memory"
	"github.com/magabrotheeeer/mentor-exchange/internal/storage/repository"
)

// identityTokenTTL нужен только конструктору: сервис проверяет токены, но не выпускает их.
const identityTokenTTL = time.Hour

// Store — всё, что сервисы читают и пишут в хранилище.
type Store interface {
	Ping(ctx context.Context) error
	wallet.Repository
	booking.SessionRepository
	matchmaking.ProfileRepository
	profile.Repository
	payment.EventRepository
}

// Cache — кэш снимков кошельков и списка кандидатов в менторы.
type Cache interface {
	wallet.Cache
	matchmaking.Cache
}

// Core — сервисы предметной области поверх одного хранилища.
type Core struct {
	Ledger      *wallet.Ledger
	Booking     *booking.Orchestrator
	Matchmaking *matchmaking.Service
	Profiles    *profile.Service
	Payments    *payment.Processor
}

// NewCore связывает сервисы. c может быть cache.Noop.
func NewCore(cfg *config.Config, store Store, c Cache, logger *slog.Logger) *Core {
	ledger := wallet.New(store, c, logger, wallet.Options{
		MaxRetries: cfg.Ledger.MaxRetries,
		CacheTTL:   cfg.Redis.WalletTTL,
	})
	return &Core{
		Ledger:      ledger,
		Booking:     booking.New(ledger, store, store, logger),
		Matchmaking: matchmaking.New(store, c, cfg.Redis.MentorsTTL, logger),
		Profiles:    profile.New(store, c, logger),
		Payments:    payment.New(ledger, store, logger, cfg.Payment.PassDurationDays),
	}
}

// OpenStore открывает хранилище по настройкам. Для PostgreSQL применяются миграции.
func OpenStore(cfg *config.Config, logger *slog.Logger) (Store, io.Closer, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nopCloser{}, nil
	}

	db, err := repository.New(cfg.Storage.ConnectionString)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Run(db.DB, cfg.Storage.MigrationsPath, logger); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, db, nil
}

// OpenCache подключает Redis. Пустой адрес отключает кэш.
func OpenCache(ctx context.Context, cfg config.Redis, logger *slog.Logger) (Cache, io.Closer, error) {
	if cfg.Address == "" {
		logger.Info("redis address is empty, cache disabled")
		return cache.Noop{}, nopCloser{}, nil
	}
	c, err := cache.InitServer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}

// App — HTTP-сервер биржи.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	closers []io.Closer
}

// New собирает приложение по конфигу.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{logger: logger}

	store, storeCloser, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, storeCloser)

	snapshots, cacheCloser, err := OpenCache(ctx, cfg.Redis, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.closers = append(app.closers, cacheCloser)

	core := NewCore(cfg, store, snapshots, logger)

	dispatcher, err := app.dispatcher(ctx, cfg, core)
	if err != nil {
		app.close()
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, Services{
		Store:       store,
		Ledger:      core.Ledger,
		Booking:     core.Booking,
		Matchmaking: core.Matchmaking,
		Profiles:    core.Profiles,
		Provider:    paymentprovider.NewClient(cfg.Payment.ProviderAPIURL, cfg.Payment.SecretKey, cfg.Payment.SiteURL),
		Verifier:    paymentprovider.NewVerifier(cfg.Payment.WebhookSecret, cfg.Payment.WebhookTolerance),
		Dispatcher:  dispatcher,
		Tokens:      jwt.NewJWTMaker(cfg.Identity.JWTSecret, identityTokenTTL),
		Limiter:     middlewarectx.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	})

	app.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return app, nil
}

// dispatcher выбирает, где обрабатывать события вебхука: сразу или в воркере.
func (a *App) dispatcher(ctx context.Context, cfg *config.Config, core *Core) (paymentwebhook.Dispatcher, error) {
	if !cfg.RabbitMQ.AsyncWebhooks {
		return paymentwebhook.DispatcherFunc(core.Payments.Process), nil
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.PaymentQueues(cfg.RabbitMQ.Queue))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.closers = append(a.closers, amqpCloser{ch: ch, conn: conn})
	a.logger.Info("webhook events are dispatched to queue", slog.String("queue", cfg.RabbitMQ.Queue))
	return rabbitmq.NewPublisher(ch), nil
}

// Run запускает сервер и останавливает его по отмене ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type amqpCloser struct {
	ch   *amqp.Channel
	conn *amqp.Connection
}

func (c amqpCloser) Close() error {
	return errors.Join(c.ch.Close(), c.conn.Close())
}
