package models

import "time"

// Wallet — кредитный баланс пользователя. Оба счётчика неотрицательны,
// тратить можно их сумму. Version растёт на каждой записи и служит
// условием для оптимистичного обновления.
type Wallet struct {
	UserID           string     `json:"user_id"`
	EarnedCredits    int64      `json:"earned_credits"`
	PurchasedCredits int64      `json:"purchased_credits"`
	PassActive       bool       `json:"pass_active"`
	PassResetAt      *time.Time `json:"pass_reset_at,omitempty"`
	Version          int64      `json:"-"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Total возвращает количество кредитов, доступных для списания.
func (w *Wallet) Total() int64 {
	if w == nil {
		return 0
	}
	return w.EarnedCredits + w.PurchasedCredits
}

// EmptyWallet — представление отсутствующего кошелька: нулевой баланс без выдуманных кредитов.
func EmptyWallet(userID string) *Wallet {
	return &Wallet{UserID: userID}
}
