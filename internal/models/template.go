package models

import "time"

// Категории шаблонов. Шаблоны категории site-request не рендерятся,
// вместо текста конфигурации пользователь получает внешнюю ссылку.
const (
	CategoryStandard    = "standard"
	CategorySiteRequest = "site-request"
)

// ExtraParam дополнительный протокольный параметр секции [Interface].
// Параметры выводятся в конфигурацию строками "key = value" в порядке объявления,
// поэтому хранятся срезом, а не map.
type ExtraParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TemplateData типизированное содержимое шаблона конфигурации.
// Обязательные поля проверяются при записи в каталог, а не при каждом чтении.
type TemplateData struct {
	PrivateKey  string            `json:"private_key"`
	PublicKey   string            `json:"public_key"`
	Address     string            `json:"address"`
	Endpoint    string            `json:"endpoint"`
	DNS         map[string]string `json:"dns"`
	Extra       []ExtraParam      `json:"extra,omitempty"`
	Category    string            `json:"category,omitempty"`
	ResourceURL string            `json:"resource_url,omitempty"`
}

// IsSiteRequest сообщает, выдаёт ли шаблон внешнюю ссылку вместо конфигурации.
func (d TemplateData) IsSiteRequest() bool {
	return d.Category == CategorySiteRequest
}

// Template именованный шаблон конфигурации из каталога.
// Шаблоны не удаляются, а выключаются флагом Enabled, чтобы сохранить
// историю выданных по ним конфигураций.
type Template struct {
	Name      string
	Data      TemplateData
	Enabled   bool
	UpdatedAt time.Time
}

// DummyTemplate используется для приёма данных шаблона из JSON-запроса
// панели администратора до валидации.
type DummyTemplate struct {
	Name    string       `json:"name" validate:"required"`
	Data    TemplateData `json:"data" validate:"required"`
	Enabled bool         `json:"enabled"`
}
