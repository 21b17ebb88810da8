package models

// Типы событий платёжного провайдера, которые обрабатывает система.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventInvoicePaid       = "invoice.payment_succeeded"
)

// PaymentEvent — нормализованное событие провайдера. AmountTotal указан в
// минимальных единицах валюты (центах).
type PaymentEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Plan        string `json:"plan,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	AmountTotal *int64 `json:"amount_total,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// Supported сообщает, обрабатывает ли система события этого типа.
func (e PaymentEvent) Supported() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventInvoicePaid
}

// ProcessedEvent — отметка об обработанном событии провайдера. Записывается
// вместе с изменением кошелька, которое это событие вызвало.
type ProcessedEvent struct {
	EventID   string
	EventType string
}

// Mark возвращает отметку обработки для события.
func (e PaymentEvent) Mark() *ProcessedEvent {
	return &ProcessedEvent{EventID: e.ID, EventType: e.Type}
}
