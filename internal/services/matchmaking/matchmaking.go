// Package matchmaking подбирает менторов для пользователя: читает профиль
// ученика и кандидатов из хранилища и ранжирует их пакетом matching.
package matchmaking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/mentor-exchange/internal/cache"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/lib/sl"
	"github.com/magabrotheeeer/mentor-exchange/internal/matching"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

// ProfileRepository — чтение профилей.
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfilesByRoles(ctx context.Context, roles []models.Role) ([]*models.Profile, error)
}

// Cache хранит список кандидатов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Service подбирает менторов.
type Service struct {
	repo     ProfileRepository
	cache    Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

// New создаёт сервис подбора. Если c равен nil, кандидаты читаются из хранилища каждый раз.
func New(repo ProfileRepository, c Cache, cacheTTL time.Duration, log *slog.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL, log: log}
}

// TopMentors возвращает до k лучших менторов для пользователя learnerID.
// Сам пользователь в выдачу не попадает.
func (s *Service) TopMentors(ctx context.Context, learnerID string, k int) ([]matching.Ranked, error) {
	const op = "services.matchmaking.TopMentors"
	if k <= 0 {
		return nil, fmt.Errorf("%s: k must be positive, got %d: %w", op, k, apperr.ErrInvalidArgument)
	}

	learner, err := s.repo.GetProfile(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}

	candidates, err := s.candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Classify(err))
	}

	mentors := make([]*models.Profile, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != learnerID {
			mentors = append(mentors, c)
		}
	}

	ranked, err := matching.PickTopMentors(learner, mentors, k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ranked, nil
}

func (s *Service) candidates(ctx context.Context) ([]*models.Profile, error) {
	var cached []*models.Profile
	found, err := s.cache.Get(ctx, cache.MentorsKey, &cached)
	if err != nil {
		s.log.Warn("failed to read mentors from cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	mentors, err := s.repo.ListProfilesByRoles(ctx, models.MentorRoles)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.MentorsKey, mentors, s.cacheTTL); err != nil {
		s.log.Warn("failed to cache mentors", sl.Err(err))
	}
	return mentors, nil
}
