// Package apperr содержит сентинел-ошибки предметной области и функцию их
// классификации. Слои хранилища и сервисов оборачивают ошибки через
// fmt.Errorf("%s: %w", op, err), а HTTP-слой различает их через errors.Is.
package apperr

import "errors"

var (
	// ErrInvalidArgument — некорректный ввод (код плана, неположительная сумма, k <= 0).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientBalance — на кошельке недостаточно кредитов.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNotFound — пользователь, ментор или кошелёк не найдены.
	ErrNotFound = errors.New("not found")
	// ErrConflict — кошелёк изменился между чтением и условной записью.
	ErrConflict = errors.New("conflict")
	// ErrUpstreamUnavailable — хранилище или платёжный провайдер недоступны, запрос можно повторить.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrSignatureInvalid — подпись вебхука не прошла проверку.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrAlreadyProcessed — платёжное событие уже применено к журналу.
	ErrAlreadyProcessed = errors.New("event already processed")
)

var known = []error{
	ErrInvalidArgument,
	ErrInsufficientBalance,
	ErrNotFound,
	ErrConflict,
	ErrUpstreamUnavailable,
	ErrSignatureInvalid,
	ErrAlreadyProcessed,
}

// IsKnown сообщает, относится ли ошибка к одному из видов этого пакета.
func IsKnown(err error) bool {
	for _, k := range known {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Classify приводит ошибку инфраструктуры к виду из этого пакета.
// Уже классифицированные ошибки возвращаются как есть, таймауты и прочие
// сбои хранилища превращаются в ErrUpstreamUnavailable.
func Classify(err error) error {
	if err == nil || IsKnown(err) {
		return err
	}
	return errors.Join(ErrUpstreamUnavailable, err)
}
