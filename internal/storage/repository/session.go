package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

const sessionColumns = `id, mentor_id, learner_id, scheduled_at, duration_minutes, credits_charged, created_at`

// CreateSession сохраняет забронированную сессию.
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "storage.CreateSession"

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	query := `INSERT INTO sessions (id, mentor_id, learner_id, scheduled_at, duration_minutes, credits_charged)
			  VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	err := s.DB.QueryRowContext(ctx, query,
		session.ID, session.MentorID, session.LearnerID, session.ScheduledAt,
		session.DurationMinutes, session.CreditsCharged).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSession возвращает сессию или apperr.ErrNotFound.
func (s *Storage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	const op = "storage.GetSession"

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	var sess models.Session
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&sess.ID, &sess.MentorID, &sess.LearnerID,
		&sess.ScheduledAt, &sess.DurationMinutes, &sess.CreditsCharged, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sess, nil
}

// ListSessionsByLearner возвращает сессии ученика по времени проведения.
func (s *Storage) ListSessionsByLearner(ctx context.Context, learnerID string, limit, offset int) ([]*models.Session, error) {
	const op = "storage.ListSessionsByLearner"

	query := `SELECT ` + sessionColumns + `
			  FROM sessions
			  WHERE learner_id = $1
			  ORDER BY scheduled_at, id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, learnerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.MentorID, &sess.LearnerID, &sess.ScheduledAt,
			&sess.DurationMinutes, &sess.CreditsCharged, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
