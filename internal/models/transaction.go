package models

import "time"

// TransactionType — причина изменения баланса.
type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionSpend    TransactionType = "spend"
	TransactionGrant    TransactionType = "grant"
)

// Transaction — неизменяемая запись журнала изменений баланса.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Type           TransactionType   `json:"type"`
	Credits        int64             `json:"credits"`
	AmountCurrency *float64          `json:"amount_currency,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// CreditSource описывает происхождение начисления.
type CreditSource struct {
	Type           TransactionType
	AmountCurrency *float64
	Metadata       map[string]string
	// Event, если задан, фиксируется как обработанный в той же записи,
	// что и начисление.
	Event *ProcessedEvent
}
