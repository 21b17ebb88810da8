package models

import "time"

const (
	// SessionDurationMinutes — длительность сессии в первой версии.
	SessionDurationMinutes = 60
	// SessionPriceCredits — стоимость сессии в кредитах.
	SessionPriceCredits = 1
)

// Session — забронированная сессия ментора и ученика. После создания не меняется.
type Session struct {
	ID              string    `json:"id"`
	MentorID        string    `json:"mentor_id"`
	LearnerID       string    `json:"learner_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	CreditsCharged  int64     `json:"credits_charged"`
	CreatedAt       time.Time `json:"created_at"`
}

// Booking — результат успешного бронирования: сессия и обновлённый кошелёк.
type Booking struct {
	Session *Session `json:"session"`
	Wallet  *Wallet  `json:"wallet"`
}

// DummyBooking принимает запрос на бронирование из JSON.
type DummyBooking struct {
	MentorID    string    `json:"mentor_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}
