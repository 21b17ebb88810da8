package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// MarkEventProcessed записывает идентификатор события провайдера, которое не
// меняет кошелёк. Возвращает false, если событие уже было записано ранее.
func (s *Storage) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	const op = "storage.MarkEventProcessed"

	fresh, err := markEvent(ctx, s.DB, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return fresh, nil
}

func markEvent(ctx context.Context, db execer, eventID, eventType string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO processed_payment_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AddToWaitlist сохраняет адрес в списке ожидания. Повтор не считается ошибкой.
func (s *Storage) AddToWaitlist(ctx context.Context, email string) error {
	const op = "storage.AddToWaitlist"

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO waitlist (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`,
		strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
