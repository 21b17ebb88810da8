// Package memory реализует хранилище в памяти процесса. Используется в тестах
// и при запуске с драйвером memory. Семантика условного обновления кошелька
// совпадает с PostgreSQL-реализацией.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// Store хранит все сущности в картах под одним мьютексом.
type Store struct {
	mu sync.RWMutex

	wallets      map[string]*models.Wallet
	transactions []*models.Transaction
	sessions     []*models.Session
	profiles     map[string]*models.Profile
	profileOrder []string
	events       map[string]string
	waitlist     map[string]time.Time

	now func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		wallets:  make(map[string]*models.Wallet),
		profiles: make(map[string]*models.Profile),
		events:   make(map[string]string),
		waitlist: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Ping всегда успешен.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// GetWallet возвращает копию кошелька или apperr.ErrNotFound.
func (s *Store) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	const op = "storage.memory.GetWallet"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return copyWallet(w), nil
}

// CreateWalletIfAbsent создаёт нулевой кошелёк, если его ещё нет, и возвращает текущий.
func (s *Store) CreateWalletIfAbsent(ctx context.Context, userID string) (*models.Wallet, error) {
	const op = "storage.memory.CreateWalletIfAbsent"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		w = &models.Wallet{UserID: userID, Version: 1, UpdatedAt: s.now().UTC()}
		s.wallets[userID] = w
	}
	return copyWallet(w), nil
}

// ApplyWalletChange записывает новое состояние кошелька, только если его
// версия равна expectedVersion, и в том же критическом участке добавляет
// транзакцию журнала и отметку события. Уже отмеченное событие даёт
// apperr.ErrAlreadyProcessed, кошелёк при этом не меняется.
func (s *Store) ApplyWalletChange(ctx context.Context, expectedVersion int64, next *models.Wallet, tx *models.Transaction, event *models.ProcessedEvent) (*models.Wallet, error) {
	const op = "storage.memory.ApplyWalletChange"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if next.EarnedCredits < 0 || next.PurchasedCredits < 0 {
		return nil, fmt.Errorf("%s: negative balance: %w", op, apperr.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if event != nil {
		if _, ok := s.events[event.EventID]; ok {
			return nil, fmt.Errorf("%s: %s: %w", op, event.EventID, apperr.ErrAlreadyProcessed)
		}
	}

	cur, ok := s.wallets[next.UserID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	}

	now := s.now().UTC()
	updated := copyWallet(next)
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = now
	s.wallets[next.UserID] = updated

	if tx != nil {
		rec := *tx
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.Metadata = copyMeta(tx.Metadata)
		s.transactions = append(s.transactions, &rec)
	}
	if event != nil {
		s.events[event.EventID] = event.EventType
	}
	return copyWallet(updated), nil
}

// ListTransactions возвращает транзакции пользователя от новых к старым.
func (s *Store) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	const op = "storage.memory.ListTransactions"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.UserID != userID {
			continue
		}
		c := *tx
		c.Metadata = copyMeta(tx.Metadata)
		res = append(res, &c)
	}
	return page(res, limit, offset), nil
}

// CreateSession добавляет сессию.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "storage.memory.CreateSession"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	for _, sess := range s.sessions {
		if sess.ID == session.ID {
			return fmt.Errorf("%s: session %s: %w", op, session.ID, apperr.ErrConflict)
		}
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now().UTC()
	}
	c := *session
	s.sessions = append(s.sessions, &c)
	return nil
}

// GetSession возвращает сессию или apperr.ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	const op = "storage.memory.GetSession"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.ID == id {
			c := *sess
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
}

// ListSessionsByLearner возвращает сессии ученика по времени проведения.
func (s *Store) ListSessionsByLearner(ctx context.Context, learnerID string, limit, offset int) ([]*models.Session, error) {
	const op = "storage.memory.ListSessionsByLearner"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*models.Session
	for _, sess := range s.sessions {
		if sess.LearnerID == learnerID {
			c := *sess
			res = append(res, &c)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].ScheduledAt.Before(res[j].ScheduledAt)
	})
	return page(res, limit, offset), nil
}

// GetProfile возвращает профиль или apperr.ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	const op = "storage.memory.GetProfile"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return copyProfile(p), nil
}

// UpsertProfile создаёт или обновляет профиль. Репутация при обновлении не меняется.
func (s *Store) UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	const op = "storage.memory.UpsertProfile"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	next := copyProfile(p)
	if cur, ok := s.profiles[p.ID]; ok {
		next.Reputation = cur.Reputation
		next.CreatedAt = cur.CreatedAt
	} else {
		next.CreatedAt = now
		s.profileOrder = append(s.profileOrder, p.ID)
	}
	next.UpdatedAt = now
	s.profiles[p.ID] = next
	return copyProfile(next), nil
}

// SetReputation задаёт репутацию профиля. Репутация приходит извне и меняется только так.
func (s *Store) SetReputation(id string, reputation int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		p.Reputation = reputation
	}
}

// ListProfilesByRoles возвращает профили с одной из ролей в порядке создания.
func (s *Store) ListProfilesByRoles(ctx context.Context, roles []models.Role) ([]*models.Profile, error) {
	const op = "storage.memory.ListProfilesByRoles"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*models.Profile
	for _, id := range s.profileOrder {
		p := s.profiles[id]
		for _, r := range roles {
			if p.Role == r {
				res = append(res, copyProfile(p))
				break
			}
		}
	}
	return res, nil
}

// MarkEventProcessed отмечает событие обработанным. Возвращает false, если оно уже было отмечено.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	const op = "storage.memory.MarkEventProcessed"
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; ok {
		return false, nil
	}
	s.events[eventID] = eventType
	return true, nil
}

// AddToWaitlist сохраняет адрес. Повторное добавление не является ошибкой.
func (s *Store) AddToWaitlist(ctx context.Context, email string) error {
	const op = "storage.memory.AddToWaitlist"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.waitlist[key]; !ok {
		s.waitlist[key] = s.now().UTC()
	}
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func copyWallet(w *models.Wallet) *models.Wallet {
	c := *w
	if w.PassResetAt != nil {
		t := *w.PassResetAt
		c.PassResetAt = &t
	}
	return &c
}

func copyProfile(p *models.Profile) *models.Profile {
	c := *p
	c.Languages = append([]string(nil), p.Languages...)
	c.Skills = append([]string(nil), p.Skills...)
	if p.DisplayName != nil {
		n := *p.DisplayName
		c.DisplayName = &n
	}
	return &c
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
