package models

import (
	"errors"
	"fmt"
	"time"
)

// Ожидаемые исходы операций. Квота и блокировка — штатные результаты,
// а не сбои, поэтому выражены ошибками-значениями и проверяются через errors.Is.
var (
	// ErrNotFound запись (шаблон, пользователь, конфигурация) отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrBanned пользователь заблокирован, дальнейшие действия недоступны.
	ErrBanned = errors.New("user is banned")
)

// QuotaExceededError превышен дневной лимит выдачи. Несёт лимит и время,
// когда окно освободится, для сообщения пользователю.
type QuotaExceededError struct {
	Limit   int
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: limit %d, resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// ValidationError некорректные входные данные шаблона или настройки.
// Текст показывается администратору дословно.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf создаёт ValidationError с форматированным сообщением.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// RenderError шаблон не может быть отрендерен с выбранным DNS-провайдером.
type RenderError struct {
	DNSChoice string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template has no DNS entry for provider %q", e.DNSChoice)
}
