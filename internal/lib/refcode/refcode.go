// Package refcode генерирует реферальные коды пользователей.
//
// Код строится из UUID: короткий, без дефисов, уникальный в пределах таблицы
// пользователей (уникальность дополнительно гарантирует ограничение в БД).
package refcode

import (
	"strings"

	"github.com/google/uuid"
)

// Length длина реферального кода в символах.
const Length = 12

// New возвращает новый реферальный код.
func New() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return raw[:Length]
}
