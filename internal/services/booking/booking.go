// Package booking проводит бронирование сессии как цепочку шагов:
// проверка участников, проверка баланса, списание кредита, создание сессии.
// Если сессию создать не удалось и её нет в хранилище под идентификатором
// попытки, списанный кредит возвращается компенсирующим начислением.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/metrics"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// State — состояние попытки бронирования.
type State string

const (
	StateRequested      State = "requested"
	StateBalanceChecked State = "balance_checked"
	StateDebited        State = "debited"
	StateSessionCreated State = "session_created"
	StateRejected       State = "rejected"
	StateFailed         State = "failed"
)

// CompensationReason записывается в метаданные компенсирующего начисления.
const CompensationReason = "booking_compensation"

const compensationTimeout = 5 * time.Second

// Ledger — операции кошелька, нужные бронированию.
type Ledger interface {
	Balance(ctx context.Context, userID string) (*models.Wallet, error)
	Debit(ctx context.Context, userID string, amount int64, meta map[string]string) (*models.Wallet, error)
	Credit(ctx context.Context, userID string, amount int64, src models.CreditSource) (*models.Wallet, error)
}

// SessionRepository хранит сессии.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessionsByLearner(ctx context.Context, learnerID string, limit, offset int) ([]*models.Session, error)
}

// ProfileReader читает профили участников.
type ProfileReader interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// Orchestrator проводит бронирования.
type Orchestrator struct {
	ledger   Ledger
	sessions SessionRepository
	profiles ProfileReader
	log      *slog.Logger
}

// New создаёт оркестратор бронирований.
func New(ledger Ledger, sessions SessionRepository, profiles ProfileReader, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:   ledger,
		sessions: sessions,
		profiles: profiles,
		log:      log,
	}
}

type attempt struct {
	id    string
	state State
	log   *slog.Logger
}

func (a *attempt) move(to State, attrs ...any) {
	a.log.Debug("booking state changed",
		append([]any{slog.String("from", string(a.state)), slog.String("to", string(to))}, attrs...)...)
	a.state = to
}

func (a *attempt) finish(to State, attrs ...any) {
	a.move(to, attrs...)
	metrics.BookingAttempts.WithLabelValues(string(to)).Inc()
}

// BookSession бронирует сессию ученика у ментора за один кредит.
// Нехватка кредитов даёт apperr.ErrInsufficientBalance, сбой хранилища
// после списания — apperr.ErrUpstreamUnavailable с возвратом кредита.
func (o *Orchestrator) BookSession(ctx context.Context, learnerID, mentorID string, scheduledAt time.Time) (*models.Booking, error) {
	const op = "services.booking.BookSession"

	a := &attempt{id: uuid.NewString(), state: StateRequested}
	a.log = o.log.With(
		slog.String("op", op),
		slog.String("attempt_id", a.id),
		slog.String("learner_id", learnerID),
		slog.String("mentor_id", mentorID),
	)

	if err := o.validate(ctx, learnerID, mentorID, scheduledAt); err != nil {
		a.finish(StateRejected, sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w, err := o.ledger.Balance(ctx, learnerID)
	if err != nil {
		a.finish(StateFailed, sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	if w.Total() < models.SessionPriceCredits {
		a.finish(StateRejected, slog.Int64("balance", w.Total()))
		return nil, fmt.Errorf("%s: balance %d: %w", op, w.Total(), apperr.ErrInsufficientBalance)
	}
	a.move(StateBalanceChecked)

	meta := map[string]string{
		"reason":     "session_booking",
		"attempt_id": a.id,
		"mentor_id":  mentorID,
	}
	w, err = o.ledger.Debit(ctx, learnerID, models.SessionPriceCredits, meta)
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			a.finish(StateRejected, sl.Err(err))
		} else {
			a.finish(StateFailed, sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	a.move(StateDebited)

	session := &models.Session{
		ID:              a.id,
		MentorID:        mentorID,
		LearnerID:       learnerID,
		ScheduledAt:     scheduledAt.UTC(),
		DurationMinutes: models.SessionDurationMinutes,
		CreditsCharged:  models.SessionPriceCredits,
	}
	if err := o.sessions.CreateSession(ctx, session); err != nil {
		if stored := o.lookup(ctx, a); stored != nil {
			a.log.Warn("session was stored despite create error", sl.Err(err))
			a.finish(StateSessionCreated, slog.String("session_id", stored.ID))
			return &models.Booking{Session: stored, Wallet: w}, nil
		}
		a.log.Error("failed to create session, compensating debit", sl.Err(err))
		o.compensate(ctx, a, learnerID)
		a.finish(StateFailed, sl.Err(err))
		return nil, fmt.Errorf("%s: create session: %w", op, errors.Join(apperr.ErrUpstreamUnavailable, err))
	}
	a.finish(StateSessionCreated, slog.String("session_id", session.ID))

	return &models.Booking{Session: session, Wallet: w}, nil
}

// lookup ищет сессию попытки: ошибка записи могла прийти уже после коммита.
// Если проверить не удалось, сессия считается несозданной.
func (o *Orchestrator) lookup(ctx context.Context, a *attempt) *models.Session {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	stored, err := o.sessions.GetSession(lctx, a.id)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			a.log.Error("failed to look up session after create error", sl.Err(err))
		}
		return nil
	}
	return stored
}

// compensate возвращает списанный кредит. Запрос мог быть отменён, поэтому
// начисление выполняется в отвязанном контексте со своим таймаутом.
func (o *Orchestrator) compensate(ctx context.Context, a *attempt, learnerID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	_, err := o.ledger.Credit(cctx, learnerID, models.SessionPriceCredits, models.CreditSource{
		Type: models.TransactionGrant,
		Metadata: map[string]string{
			"reason":     CompensationReason,
			"attempt_id": a.id,
		},
	})
	if err != nil {
		a.log.Error("compensation grant failed, credit must be restored manually", sl.Err(err))
		return
	}
	a.log.Info("debit compensated")
}

func (o *Orchestrator) validate(ctx context.Context, learnerID, mentorID string, scheduledAt time.Time) error {
	if learnerID == "" || mentorID == "" {
		return fmt.Errorf("learner and mentor are required: %w", apperr.ErrInvalidArgument)
	}
	if learnerID == mentorID {
		return fmt.Errorf("cannot book a session with yourself: %w", apperr.ErrInvalidArgument)
	}
	if scheduledAt.IsZero() {
		return fmt.Errorf("scheduled time is required: %w", apperr.ErrInvalidArgument)
	}

	mentor, err := o.profiles.GetProfile(ctx, mentorID)
	if err != nil {
		return apperr.Classify(err)
	}
	if !mentor.Role.CanMentor() {
		return fmt.Errorf("user %s does not mentor: %w", mentorID, apperr.ErrInvalidArgument)
	}
	return nil
}

// ListSessions возвращает сессии, забронированные пользователем как учеником.
func (o *Orchestrator) ListSessions(ctx context.Context, learnerID string, limit, offset int) ([]*models.Session, error) {
	const op = "services.booking.ListSessions"

	sessions, err := o.sessions.ListSessionsByLearner(ctx, learnerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	return sessions, nil
}
