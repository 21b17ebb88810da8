package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

const profileColumns = `id, display_name, languages, skills, reputation, role, created_at, updated_at`

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p           models.Profile
		displayName sql.NullString
		langs       []byte
		skills      []byte
		role        string
	)
	if err := row.Scan(&p.ID, &displayName, &langs, &skills, &p.Reputation, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if displayName.Valid {
		n := displayName.String
		p.DisplayName = &n
	}
	if err := json.Unmarshal(langs, &p.Languages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(skills, &p.Skills); err != nil {
		return nil, err
	}
	p.Role = models.Role(role)
	return &p, nil
}

// GetProfile возвращает профиль по идентификатору или apperr.ErrNotFound.
func (s *Storage) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	const op = "storage.GetProfile"

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// UpsertProfile создаёт или обновляет профиль владельца. Репутация не перезаписывается.
func (s *Storage) UpsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	const op = "storage.UpsertProfile"

	langs, err := json.Marshal(nonNil(p.Languages))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	skills, err := json.Marshal(nonNil(p.Skills))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO profiles (id, display_name, languages, skills, role)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (id) DO UPDATE
			  SET display_name = EXCLUDED.display_name, languages = EXCLUDED.languages,
			      skills = EXCLUDED.skills, role = EXCLUDED.role, updated_at = NOW()
			  RETURNING ` + profileColumns
	saved, err := scanProfile(s.DB.QueryRowContext(ctx, query, p.ID, p.DisplayName, langs, skills, string(p.Role)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return saved, nil
}

// ListProfilesByRoles возвращает профили с одной из указанных ролей в порядке создания.
func (s *Storage) ListProfilesByRoles(ctx context.Context, roles []models.Role) ([]*models.Profile, error) {
	const op = "storage.ListProfilesByRoles"
	if len(roles) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(roles))
	args := make([]any, len(roles))
	for i, r := range roles {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(r)
	}
	query := `SELECT ` + profileColumns + ` FROM profiles
			  WHERE role IN (` + strings.Join(placeholders, ", ") + `)
			  ORDER BY created_at, id`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
