package models

import "time"

// IssuedConfig выданная пользователю конфигурация. Содержимое хранится
// дословно, чтобы пользователь мог скачать файл повторно. Запись неизменяема,
// удаляется только явным действием пользователя или ретеншн-очисткой.
type IssuedConfig struct {
	ID           string
	AccountID    int64
	TemplateName string
	DNSChoice    string
	Content      string
	CreatedAt    time.Time
	Temporary    bool
}

// SiteRequest выдача доступа к внешнему ресурсу вместо файла конфигурации.
// Квотируется отдельно от обычных конфигураций.
type SiteRequest struct {
	ID           string
	AccountID    int64
	ResourceName string
	CreatedAt    time.Time
}

// Stats сводные счётчики для команды /stats и панели администратора.
type Stats struct {
	TotalUsers        int `json:"total_users"`
	BannedUsers       int `json:"banned_users"`
	ConfigsTotal      int `json:"configs_total"`
	ConfigsToday      int `json:"configs_today"`
	SiteRequestsToday int `json:"site_requests_today"`
}
