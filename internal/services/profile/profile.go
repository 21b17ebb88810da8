// Package profile управляет профилями пользователей и листом ожидания.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/mentor-exchange/internal/cache"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// Repository — хранилище профилей и листа ожидания.
type Repository interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	AddToWaitlist(ctx context.Context, email string) error
}

// Cache сбрасывает список кандидатов в менторы.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Service работает с профилями.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New создаёт сервис профилей.
func New(repo Repository, c Cache, log *slog.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{repo: repo, cache: c, log: log}
}

// Get возвращает профиль пользователя.
func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "services.profile.Get"

	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	return p, nil
}

// Upsert сохраняет профиль пользователя. Языки и навыки нормализуются:
// нижний регистр, без пробелов по краям и без повторов.
func (s *Service) Upsert(ctx context.Context, userID string, in models.DummyProfile) (*models.Profile, error) {
	const op = "services.profile.Upsert"

	role := models.Role(in.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%s: unknown role %q: %w", op, in.Role, apperr.ErrInvalidArgument)
	}

	p := &models.Profile{
		ID:        userID,
		Languages: normalize(in.Languages),
		Skills:    normalize(in.Skills),
		Role:      role,
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name != "" {
			p.DisplayName = &name
		}
	}

	saved, err := s.repo.UpsertProfile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}

	if err := s.cache.Invalidate(ctx, cache.MentorsKey); err != nil {
		s.log.Warn("failed to invalidate mentors cache", slog.String("op", op), sl.Err(err))
	}
	return saved, nil
}

// JoinWaitlist добавляет адрес в лист ожидания. Повторная запись не ошибка.
func (s *Service) JoinWaitlist(ctx context.Context, email string) error {
	const op = "services.profile.JoinWaitlist"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%s: empty email: %w", op, apperr.ErrInvalidArgument)
	}
	if err := s.repo.AddToWaitlist(ctx, email); err != nil {
		return fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}
	return nil
}

func normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	res := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		res = append(res, v)
	}
	return res
}
