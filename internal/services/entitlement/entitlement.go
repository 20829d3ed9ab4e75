// Package entitlement содержит бизнес-логику учёта пользователей:
// регистрацию, блокировки, реферальные ссылки и настройки процесса.
package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/warp-config-bot/internal/lib/refcode"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// settingCacheTTL время жизни настройки в кеше. Настройки меняются редко,
// а читаются при каждой проверке квоты.
const settingCacheTTL = 5 * time.Minute

// Repository определяет методы хранилища для работы с пользователями и настройками.
type Repository interface {
	// RegisterUser сохраняет нового пользователя, возвращает false при повторе.
	RegisterUser(ctx context.Context, user models.User) (bool, error)
	// GetUser возвращает пользователя по идентификатору аккаунта.
	GetUser(ctx context.Context, accountID int64) (*models.User, error)
	// GetUserByReferralCode возвращает пользователя по реферальному коду.
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	// IsBanned возвращает флаг блокировки.
	IsBanned(ctx context.Context, accountID int64) (bool, error)
	// SetBan выставляет флаг блокировки.
	SetBan(ctx context.Context, accountID int64, banned bool) error
	// SetTheme меняет тему интерфейса.
	SetTheme(ctx context.Context, accountID int64, theme string) error
	// SetLanguage меняет язык интерфейса.
	SetLanguage(ctx context.Context, accountID int64, language string) error
	// SetReferrer устанавливает пригласившего, если он ещё не установлен.
	SetReferrer(ctx context.Context, accountID, referrerID int64) (bool, error)
	// IncrementBonusConfigs добавляет единицу к бонусному лимиту.
	IncrementBonusConfigs(ctx context.Context, accountID int64) error
	// CountReferrals возвращает число приглашённых пользователей.
	CountReferrals(ctx context.Context, accountID int64) (int, error)
	// GetSettingRaw возвращает значение настройки как JSON.
	GetSettingRaw(ctx context.Context, key string) ([]byte, error)
	// SetSetting записывает значение настройки.
	SetSetting(ctx context.Context, key string, value any) error
	// SeedDefaultSettings сеет настройки по умолчанию.
	SeedDefaultSettings(ctx context.Context, defaults map[string]any) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// EventPublisher публикует события о присоединившихся рефералах.
type EventPublisher interface {
	PublishReferralJoined(event models.ReferralJoinedEvent) error
}

// Service реализует бизнес-логику учёта пользователей.
type Service struct {
	repo         Repository
	cache        Cache
	pub          EventPublisher
	log          *slog.Logger
	superAdminID int64
	now          func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, pub EventPublisher, log *slog.Logger, superAdminID int64) *Service {
	return &Service{
		repo:         repo,
		cache:        cache,
		pub:          pub,
		log:          log,
		superAdminID: superAdminID,
		now:          time.Now,
	}
}

// Register создает пользователя при первом обращении. Повторный вызов для
// того же аккаунта — no-op. Возвращает актуальную запись пользователя.
func (s *Service) Register(ctx context.Context, accountID int64, handle, displayName string) (*models.User, error) {
	user := models.User{
		AccountID:    accountID,
		Handle:       handle,
		DisplayName:  displayName,
		CreatedAt:    s.now().UTC(),
		Theme:        models.ThemeLight,
		Language:     "ru",
		ReferralCode: refcode.New(),
	}
	created, err := s.repo.RegisterUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("registered new user", slog.Int64("account_id", accountID))
		return &user, nil
	}
	return s.repo.GetUser(ctx, accountID)
}

// IsBanned сообщает, заблокирован ли пользователь.
func (s *Service) IsBanned(ctx context.Context, accountID int64) (bool, error) {
	return s.repo.IsBanned(ctx, accountID)
}

// LinkReferral связывает пользователя с владельцем реферального кода.
// Возвращает идентификатор пригласившего или nil, если связь не установлена:
// кода нет, пользователь ссылается сам на себя или пригласивший уже задан.
// Все эти случаи — молчаливый no-op, чтобы не поощрять перебор кодов.
func (s *Service) LinkReferral(ctx context.Context, accountID int64, code string) (*int64, error) {
	user, err := s.repo.GetUser(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if user.ReferrerID != nil {
		return nil, nil
	}

	referrer, err := s.repo.GetUserByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if referrer.AccountID == accountID {
		return nil, nil
	}

	linked, err := s.repo.SetReferrer(ctx, accountID, referrer.AccountID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, nil
	}

	// Обещанный "+1 запрос в день" пригласившему.
	if err := s.repo.IncrementBonusConfigs(ctx, referrer.AccountID); err != nil {
		s.log.Error("failed to increment referral bonus", sl.Err(err))
	}

	event := models.ReferralJoinedEvent{
		ReferrerID:    referrer.AccountID,
		NewUserID:     user.AccountID,
		NewUserHandle: user.Handle,
		NewUserName:   user.DisplayName,
	}
	if err := s.pub.PublishReferralJoined(event); err != nil {
		s.log.Warn("failed to publish referral event", sl.Err(err))
	}

	s.log.Info("referral linked",
		slog.Int64("account_id", accountID),
		slog.Int64("referrer_id", referrer.AccountID))
	return &referrer.AccountID, nil
}

// ReferralStats возвращает реферальный код пользователя и число приглашённых.
func (s *Service) ReferralStats(ctx context.Context, accountID int64) (string, int, error) {
	user, err := s.repo.GetUser(ctx, accountID)
	if err != nil {
		return "", 0, err
	}
	count, err := s.repo.CountReferrals(ctx, accountID)
	if err != nil {
		return "", 0, err
	}
	return user.ReferralCode, count, nil
}

// SetBan блокирует или разблокирует пользователя.
// Супер-администратора заблокировать нельзя.
func (s *Service) SetBan(ctx context.Context, accountID int64, banned bool) error {
	if banned && accountID == s.superAdminID {
		return models.Validationf("cannot ban the super-admin account")
	}
	if err := s.repo.SetBan(ctx, accountID, banned); err != nil {
		return err
	}
	s.log.Info("ban flag updated", slog.Int64("account_id", accountID), slog.Bool("banned", banned))
	return nil
}

// SetTheme меняет тему интерфейса пользователя.
func (s *Service) SetTheme(ctx context.Context, accountID int64, theme string) error {
	if theme != models.ThemeLight && theme != models.ThemeDark {
		return models.Validationf("unknown theme %q", theme)
	}
	return s.repo.SetTheme(ctx, accountID, theme)
}

// SetLanguage меняет язык интерфейса пользователя, проверяя его
// по списку поддерживаемых языков из настроек.
func (s *Service) SetLanguage(ctx context.Context, accountID int64, language string) error {
	supported, err := s.SupportedLanguages(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(supported, language) {
		return models.Validationf("unsupported language %q", language)
	}
	return s.repo.SetLanguage(ctx, accountID, language)
}

// GetUser возвращает запись пользователя.
func (s *Service) GetUser(ctx context.Context, accountID int64) (*models.User, error) {
	return s.repo.GetUser(ctx, accountID)
}

// SeedDefaults сеет настройки по умолчанию при первом запуске.
func (s *Service) SeedDefaults(ctx context.Context) error {
	return s.repo.SeedDefaultSettings(ctx, models.DefaultSettings())
}

// GetInt возвращает целочисленную настройку или значение по умолчанию,
// если ключ отсутствует.
func (s *Service) GetInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := s.settingRaw(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return def, nil
		}
		return 0, err
	}
	var value int
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return value, nil
}

// GetString возвращает строковую настройку или значение по умолчанию.
func (s *Service) GetString(ctx context.Context, key, def string) (string, error) {
	raw, err := s.settingRaw(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return def, nil
		}
		return "", err
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("setting %s is not a string: %w", key, err)
	}
	return value, nil
}

// SupportedLanguages возвращает список поддерживаемых языков интерфейса.
func (s *Service) SupportedLanguages(ctx context.Context) ([]string, error) {
	raw, err := s.settingRaw(ctx, models.SettingSupportedLanguages)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return []string{"ru"}, nil
		}
		return nil, err
	}
	var value []string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("setting %s is not a string list: %w", models.SettingSupportedLanguages, err)
	}
	return value, nil
}

// SetSetting записывает настройку из введённой администратором строки.
// Целочисленные настройки обязаны парситься и быть неотрицательными,
// список языков принимается через запятую.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	var typed any
	switch {
	case models.IntSettingKeys[key]:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return models.Validationf("setting %s must be an integer, got %q", key, value)
		}
		if parsed < 0 {
			return models.Validationf("setting %s must be non-negative, got %d", key, parsed)
		}
		typed = parsed
	case key == models.SettingSupportedLanguages:
		var langs []string
		for _, lang := range strings.Split(value, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				langs = append(langs, lang)
			}
		}
		if len(langs) == 0 {
			return models.Validationf("setting %s must list at least one language", key)
		}
		typed = langs
	default:
		typed = value
	}

	if err := s.repo.SetSetting(ctx, key, typed); err != nil {
		return err
	}
	if err := s.cache.Invalidate(settingCacheKey(key)); err != nil {
		s.log.Warn("failed to invalidate setting cache", slog.String("key", key), sl.Err(err))
	}
	s.log.Info("setting updated", slog.String("key", key))
	return nil
}

func (s *Service) settingRaw(ctx context.Context, key string) (json.RawMessage, error) {
	cacheKey := settingCacheKey(key)
	var cached json.RawMessage
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read setting cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return cached, nil
	}

	raw, err := s.repo.GetSettingRaw(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(cacheKey, json.RawMessage(raw), settingCacheTTL); err != nil {
		s.log.Warn("failed to cache setting", slog.String("key", key), sl.Err(err))
	}
	return raw, nil
}

func settingCacheKey(key string) string {
	return "setting:" + key
}
