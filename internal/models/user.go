// Package models содержит доменные структуры бота: пользователей,
// шаблоны конфигураций, выданные конфигурации и настройки.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// Темы оформления интерфейса.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// User представляет пользователя бота.
// Пользователь создаётся при первом обращении и никогда не удаляется,
// блокировка реализована флагом Banned.
type User struct {
	AccountID    int64     // Идентификатор аккаунта, выдаётся мессенджером
	Handle       string    // Username в мессенджере (может быть пустым)
	DisplayName  string    // Отображаемое имя
	CreatedAt    time.Time // Дата первого обращения
	Banned       bool      // Флаг блокировки
	Theme        string    // Тема интерфейса: light или dark
	Language     string    // Язык интерфейса
	ReferralCode string    // Уникальный реферальный код пользователя
	ReferrerID   *int64    // Кто пригласил (nil, если никто); после установки не меняется
	BonusConfigs int       // Бонус к дневному лимиту за приглашённых пользователей
}

// Status возвращает человекочитаемый статус пользователя для отчётов.
func (u *User) Status() string {
	if u.Banned {
		return "Banned"
	}
	return "Active"
}

// ReferralJoinedEvent публикуется в очередь уведомлений, когда
// по реферальному коду пользователя регистрируется новый пользователь.
type ReferralJoinedEvent struct {
	ReferrerID    int64  `json:"referrer_id"`
	NewUserID     int64  `json:"new_user_id"`
	NewUserHandle string `json:"new_user_handle"`
	NewUserName   string `json:"new_user_name"`
}
