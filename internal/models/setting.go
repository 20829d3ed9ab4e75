package models

// Ключи настроек процесса. Настройки сеются значениями по умолчанию
// при первом запуске и меняются только администратором.
const (
	SettingWelcomeMessage     = "welcome_message"
	SettingGlobalConfigLimit  = "global_config_limit"
	SettingVelessDailyLimit   = "veless_daily_limit"
	SettingRetentionDays      = "config_retention_days"
	SettingSupportedLanguages = "supported_languages"
)

// Значения настроек по умолчанию.
const (
	DefaultGlobalConfigLimit = 5
	DefaultVelessDailyLimit  = 1
	DefaultRetentionDays     = 30
)

// IntSettingKeys целочисленные настройки: значение обязано парситься
// и быть неотрицательным.
var IntSettingKeys = map[string]bool{
	SettingGlobalConfigLimit: true,
	SettingVelessDailyLimit:  true,
	SettingRetentionDays:     true,
}

// DefaultSettings возвращает набор настроек для посева при первом запуске.
func DefaultSettings() map[string]any {
	return map[string]any{
		SettingWelcomeMessage:     "Привет, {name}! Этот бот выдаёт конфигурации WARP. Нажми «Создать конфигурацию», чтобы начать.",
		SettingGlobalConfigLimit:  DefaultGlobalConfigLimit,
		SettingVelessDailyLimit:   DefaultVelessDailyLimit,
		SettingRetentionDays:      DefaultRetentionDays,
		SettingSupportedLanguages: []string{"ru", "en"},
	}
}
