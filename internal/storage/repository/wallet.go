package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

const walletColumns = `user_id, earned_credits, purchased_credits, pass_active, pass_reset_at, version, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	var resetAt sql.NullTime
	if err := row.Scan(&w.UserID, &w.EarnedCredits, &w.PurchasedCredits, &w.PassActive, &resetAt, &w.Version, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if resetAt.Valid {
		t := resetAt.Time
		w.PassResetAt = &t
	}
	return &w, nil
}

// GetWallet возвращает кошелёк пользователя или apperr.ErrNotFound.
func (s *Storage) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	const op = "storage.GetWallet"

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	w, err := scanWallet(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

// CreateWalletIfAbsent вставляет нулевой кошелёк, если его нет, и возвращает
// текущую строку. Конкурентные вызовы не создают дубликатов.
func (s *Storage) CreateWalletIfAbsent(ctx context.Context, userID string) (*models.Wallet, error) {
	const op = "storage.CreateWalletIfAbsent"

	_, err := s.DB.ExecContext(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

// ApplyWalletChange в одной транзакции обновляет кошелёк при совпадении
// версии, добавляет запись журнала и отметку события. Несовпадение версии
// даёт apperr.ErrConflict, уже отмеченное событие — apperr.ErrAlreadyProcessed.
func (s *Storage) ApplyWalletChange(ctx context.Context, expectedVersion int64, next *models.Wallet, rec *models.Transaction, event *models.ProcessedEvent) (*models.Wallet, error) {
	const op = "storage.ApplyWalletChange"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if event != nil {
		fresh, err := markEvent(ctx, tx, event.EventID, event.EventType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !fresh {
			return nil, fmt.Errorf("%s: %s: %w", op, event.EventID, apperr.ErrAlreadyProcessed)
		}
	}

	query := `UPDATE wallets
			  SET earned_credits = $1, purchased_credits = $2, pass_active = $3, pass_reset_at = $4,
			      version = version + 1, updated_at = NOW()
			  WHERE user_id = $5 AND version = $6
			  RETURNING ` + walletColumns
	updated, err := scanWallet(tx.QueryRowContext(ctx, query,
		next.EarnedCredits, next.PurchasedCredits, next.PassActive, next.PassResetAt,
		next.UserID, expectedVersion))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}

	if rec != nil {
		if err := insertTransaction(ctx, tx, rec); err != nil {
			return nil, fmt.Errorf("%s: %w", op, mapError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, rec *models.Transaction) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	var amount sql.NullFloat64
	if rec.AmountCurrency != nil {
		amount = sql.NullFloat64{Float64: *rec.AmountCurrency, Valid: true}
	}

	query := `INSERT INTO transactions (id, user_id, type, credits, amount_currency, metadata)
			  VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	return tx.QueryRowContext(ctx, query,
		rec.ID, rec.UserID, string(rec.Type), rec.Credits, amount, metaJSON).Scan(&rec.CreatedAt)
}

// ListTransactions возвращает транзакции пользователя от новых к старым.
func (s *Storage) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	const op = "storage.ListTransactions"

	query := `SELECT id, user_id, type, credits, amount_currency, metadata, created_at
			  FROM transactions
			  WHERE user_id = $1
			  ORDER BY created_at DESC, id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Transaction
	for rows.Next() {
		var (
			rec      models.Transaction
			txType   string
			amount   sql.NullFloat64
			metaJSON []byte
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &txType, &rec.Credits, &amount, &metaJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rec.Type = models.TransactionType(txType)
		if amount.Valid {
			v := amount.Float64
			rec.AmountCurrency = &v
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
