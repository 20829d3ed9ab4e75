package render

import (
	"crypto/rand"
	"encoding/base64"
)

// KeyFunc генерирует пару ключей-заполнителей для шаблонов без ключевого
// материала. В тестах подменяется детерминированной реализацией.
type KeyFunc func() (private, public string)

// GenerateKeypair возвращает пару случайных значений в формате ключей
// WireGuard. Криптографической связи между ними нет, это заполнители.
func GenerateKeypair() (string, string) {
	return randomKey(), randomKey()
}

func randomKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(buf)
}
