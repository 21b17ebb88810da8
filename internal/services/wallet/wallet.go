// Package wallet реализует кредитный журнал: ленивое создание кошелька,
// начисления, списания и активацию Learning Pass. Каждое изменение баланса
// выполняется как условное обновление по версии кошелька с ограниченным
// числом повторов и сопровождается неизменяемой записью в журнале транзакций.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/mentor-exchange/internal/cache"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/metrics"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

const defaultMaxRetries = 5

// Repository определяет методы хранилища, которые нужны журналу.
type Repository interface {
	// GetWallet возвращает кошелёк или apperr.ErrNotFound.
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
	// CreateWalletIfAbsent создаёт нулевой кошелёк при отсутствии и возвращает текущий.
	CreateWalletIfAbsent(ctx context.Context, userID string) (*models.Wallet, error)
	// ApplyWalletChange записывает next, если версия кошелька равна expectedVersion,
	// и атомарно добавляет запись журнала и отметку события. Иначе возвращает
	// apperr.ErrConflict или apperr.ErrAlreadyProcessed.
	ApplyWalletChange(ctx context.Context, expectedVersion int64, next *models.Wallet, tx *models.Transaction, event *models.ProcessedEvent) (*models.Wallet, error)
	// ListTransactions возвращает историю пользователя от новых записей к старым.
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
}

// Cache описывает кэш снимков кошельков. SetVersioned не заменяет снимок
// более новой версии, поэтому запоздавшая запись старого снимка не проходит.
type Cache interface {
	GetVersioned(ctx context.Context, key string, result any) (bool, error)
	SetVersioned(ctx context.Context, key string, version int64, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Options задаёт параметры журнала.
type Options struct {
	MaxRetries int
	CacheTTL   time.Duration
	Now        func() time.Time
}

// Ledger — единственная точка изменения кошельков.
type Ledger struct {
	repo       Repository
	cache      Cache
	log        *slog.Logger
	maxRetries int
	cacheTTL   time.Duration
	now        func() time.Time
}

// New создаёт журнал. Если cache равен nil, снимки не кэшируются.
func New(repo Repository, c Cache, log *slog.Logger, opts Options) *Ledger {
	if c == nil {
		c = cache.Noop{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		repo:       repo,
		cache:      c,
		log:        log,
		maxRetries: opts.MaxRetries,
		cacheTTL:   opts.CacheTTL,
		now:        opts.Now,
	}
}

// GetOrCreateWallet возвращает кошелёк пользователя, создавая нулевой при первом обращении.
func (l *Ledger) GetOrCreateWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	const op = "services.wallet.GetOrCreateWallet"
	if userID == "" {
		return nil, fmt.Errorf("%s: empty user id: %w", op, apperr.ErrInvalidArgument)
	}

	if w, ok := l.cached(ctx, userID); ok {
		return w, nil
	}

	w, err := l.repo.CreateWalletIfAbsent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	l.store(ctx, w)
	return w, nil
}

// Balance возвращает текущий баланс без создания кошелька. Отсутствующий
// кошелёк читается как нулевой.
func (l *Ledger) Balance(ctx context.Context, userID string) (*models.Wallet, error) {
	const op = "services.wallet.Balance"

	w, err := l.repo.GetWallet(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.EmptyWallet(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	return w, nil
}

// Credit начисляет amount купленных кредитов и пишет транзакцию типа purchase или grant.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, src models.CreditSource) (*models.Wallet, error) {
	const op = "services.wallet.Credit"

	w, err := l.credit(ctx, op, userID, amount, src)
	observe("credit", err)
	return w, err
}

func (l *Ledger) credit(ctx context.Context, op, userID string, amount int64, src models.CreditSource) (*models.Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%s: empty user id: %w", op, apperr.ErrInvalidArgument)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive, got %d: %w", op, amount, apperr.ErrInvalidArgument)
	}
	if src.Type != models.TransactionPurchase && src.Type != models.TransactionGrant {
		return nil, fmt.Errorf("%s: unsupported credit source %q: %w", op, src.Type, apperr.ErrInvalidArgument)
	}

	return l.mutate(ctx, op, userID, true, src.Event, func(w *models.Wallet) (*models.Transaction, error) {
		w.PurchasedCredits += amount
		return &models.Transaction{
			UserID:         userID,
			Type:           src.Type,
			Credits:        amount,
			AmountCurrency: src.AmountCurrency,
			Metadata:       src.Metadata,
		}, nil
	})
}

// Debit списывает amount кредитов: сначала купленные, затем заработанные.
// При нехватке возвращает apperr.ErrInsufficientBalance и ничего не меняет.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, meta map[string]string) (*models.Wallet, error) {
	const op = "services.wallet.Debit"

	w, err := l.debit(ctx, op, userID, amount, meta)
	observe("debit", err)
	return w, err
}

func (l *Ledger) debit(ctx context.Context, op, userID string, amount int64, meta map[string]string) (*models.Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%s: empty user id: %w", op, apperr.ErrInvalidArgument)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive, got %d: %w", op, amount, apperr.ErrInvalidArgument)
	}

	return l.mutate(ctx, op, userID, false, nil, func(w *models.Wallet) (*models.Transaction, error) {
		if w.Total() < amount {
			return nil, fmt.Errorf("%s: have %d, need %d: %w", op, w.Total(), amount, apperr.ErrInsufficientBalance)
		}
		fromPurchased := min(amount, w.PurchasedCredits)
		fromEarned := amount - fromPurchased
		w.PurchasedCredits -= fromPurchased
		w.EarnedCredits -= fromEarned

		txMeta := make(map[string]string, len(meta)+2)
		for k, v := range meta {
			txMeta[k] = v
		}
		txMeta["from_purchased"] = strconv.FormatInt(fromPurchased, 10)
		txMeta["from_earned"] = strconv.FormatInt(fromEarned, 10)

		return &models.Transaction{
			UserID:   userID,
			Type:     models.TransactionSpend,
			Credits:  amount,
			Metadata: txMeta,
		}, nil
	})
}

// ActivatePass включает Learning Pass до now + durationDays. Повторная
// активация перезаписывает дату сброса. Если event задан, он отмечается
// обработанным вместе с активацией.
func (l *Ledger) ActivatePass(ctx context.Context, userID string, durationDays int, event *models.ProcessedEvent) (*models.Wallet, error) {
	const op = "services.wallet.ActivatePass"

	w, err := l.activatePass(ctx, op, userID, durationDays, event)
	observe("activate_pass", err)
	return w, err
}

func (l *Ledger) activatePass(ctx context.Context, op, userID string, durationDays int, event *models.ProcessedEvent) (*models.Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%s: empty user id: %w", op, apperr.ErrInvalidArgument)
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("%s: duration must be positive, got %d: %w", op, durationDays, apperr.ErrInvalidArgument)
	}

	return l.mutate(ctx, op, userID, true, event, func(w *models.Wallet) (*models.Transaction, error) {
		resetAt := l.now().UTC().AddDate(0, 0, durationDays)
		w.PassActive = true
		w.PassResetAt = &resetAt
		return nil, nil
	})
}

// Transactions возвращает историю изменений баланса пользователя.
func (l *Ledger) Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	const op = "services.wallet.Transactions"

	txs, err := l.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	return txs, nil
}

// mutate читает кошелёк, применяет apply к копии и пишет её условно по версии.
// При конфликте версии цикл повторяется, после maxRetries попыток возвращается
// apperr.ErrUpstreamUnavailable. Без create отсутствующий кошелёк считается
// нулевым, поэтому списание с него даёт apperr.ErrInsufficientBalance.
// Отметка event пишется тем же вызовом хранилища, что и кошелёк.
func (l *Ledger) mutate(ctx context.Context, op, userID string, create bool, event *models.ProcessedEvent, apply func(w *models.Wallet) (*models.Transaction, error)) (*models.Wallet, error) {
	log := l.log.With(slog.String("op", op), slog.String("user_id", userID))

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		cur, err := l.load(ctx, userID, create)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%s: no wallet: %w", op, apperr.ErrInsufficientBalance)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
		}

		next := *cur
		rec, err := apply(&next)
		if err != nil {
			return nil, err
		}

		updated, err := l.repo.ApplyWalletChange(ctx, cur.Version, &next, rec, event)
		if errors.Is(err, apperr.ErrConflict) {
			metrics.LedgerConflicts.Inc()
			log.Debug("wallet changed concurrently, retrying", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
		}

		l.refresh(ctx, updated)
		return updated, nil
	}

	log.Warn("wallet update retries exhausted", slog.Int("retries", l.maxRetries))
	return nil, fmt.Errorf("%s: retries exhausted: %w", op, errors.Join(apperr.ErrUpstreamUnavailable, apperr.ErrConflict))
}

func (l *Ledger) load(ctx context.Context, userID string, create bool) (*models.Wallet, error) {
	if create {
		return l.repo.CreateWalletIfAbsent(ctx, userID)
	}
	return l.repo.GetWallet(ctx, userID)
}

func (l *Ledger) cached(ctx context.Context, userID string) (*models.Wallet, bool) {
	var w models.Wallet
	found, err := l.cache.GetVersioned(ctx, cache.WalletKey(userID), &w)
	if err != nil {
		l.log.Warn("failed to read wallet from cache", slog.String("user_id", userID), sl.Err(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &w, true
}

// store кэширует снимок, прочитанный из хранилища. Если за время чтения
// кошелёк изменился, в кэше уже лежит более новая версия и запись пропускается.
func (l *Ledger) store(ctx context.Context, w *models.Wallet) {
	if _, err := l.cache.SetVersioned(ctx, cache.WalletKey(w.UserID), w.Version, w, l.cacheTTL); err != nil {
		l.log.Warn("failed to cache wallet", slog.String("user_id", w.UserID), sl.Err(err))
	}
}

// refresh кладёт в кэш снимок после успешного изменения. Если записать его
// не удалось, ключ удаляется, чтобы следующее чтение пошло в хранилище.
func (l *Ledger) refresh(ctx context.Context, w *models.Wallet) {
	key := cache.WalletKey(w.UserID)
	if _, err := l.cache.SetVersioned(ctx, key, w.Version, w, l.cacheTTL); err != nil {
		l.log.Warn("failed to refresh wallet cache", slog.String("user_id", w.UserID), sl.Err(err))
		if err := l.cache.Invalidate(ctx, key); err != nil {
			l.log.Warn("failed to invalidate wallet cache", slog.String("user_id", w.UserID), sl.Err(err))
		}
	}
}

func observe(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrInsufficientBalance), errors.Is(err, apperr.ErrInvalidArgument):
		outcome = "rejected"
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		outcome = "duplicate"
	default:
		outcome = "error"
	}
	metrics.LedgerOperations.WithLabelValues(operation, outcome).Inc()
}
