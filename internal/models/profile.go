// Package models содержит доменные структуры биржи времени: профили,
// кошельки, транзакции, сессии и платёжные события. Структуры используются
// в бизнес-логике, хранилищах и HTTP-слое.
package models

import "time"

// Role определяет, в каком качестве пользователь участвует в обмене.
type Role string

const (
	RoleLearner Role = "learner"
	RoleMentor  Role = "mentor"
	RoleBoth    Role = "both"
)

// MentorRoles — роли, с которыми профиль попадает в выдачу менторов.
var MentorRoles = []Role{RoleMentor, RoleBoth}

// Valid сообщает, является ли роль одной из допустимых.
func (r Role) Valid() bool {
	switch r {
	case RoleLearner, RoleMentor, RoleBoth:
		return true
	}
	return false
}

// CanMentor сообщает, может ли профиль с такой ролью проводить сессии.
func (r Role) CanMentor() bool {
	return r == RoleMentor || r == RoleBoth
}

// Profile — профиль пользователя. Репутация задаётся извне и здесь только читается.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName *string   `json:"display_name,omitempty"`
	Languages   []string  `json:"languages"`
	Skills      []string  `json:"skills"`
	Reputation  int       `json:"reputation"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DummyProfile принимает данные профиля из JSON-запроса до валидации.
type DummyProfile struct {
	DisplayName *string  `json:"display_name" validate:"omitempty,max=100"`
	Languages   []string `json:"languages" validate:"max=20,dive,required,max=16"`
	Skills      []string `json:"skills" validate:"max=50,dive,required,max=64"`
	Role        string   `json:"role" validate:"required,oneof=learner mentor both"`
}
