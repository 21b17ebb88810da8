package models

import "time"

// WaitlistEntry — адрес, оставленный на странице ожидания.
type WaitlistEntry struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// DummyWaitlistEntry принимает адрес из JSON-запроса.
type DummyWaitlistEntry struct {
	Email string `json:"email" validate:"required,email"`
}
