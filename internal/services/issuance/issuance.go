// Package issuance содержит бизнес-логику выдачи конфигураций:
// проверку блокировки и квоты, рендеринг и запись выдачи.
//
// Квотное окно — скользящие 24 часа по настенным часам, не календарный день.
// Нижняя граница окна включительна. Проверка квоты и запись выдачи идут
// одной атомарной операцией хранилища, чтобы два одновременных запроса
// не прошли проверку вдвоём.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/warp-config-bot/internal/metrics"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
	"github.com/magabrotheeeer/warp-config-bot/internal/render"
)

// quotaWindow длительность квотного окна.
const quotaWindow = 24 * time.Hour

// Repository определяет методы хранилища для выдачи конфигураций.
type Repository interface {
	// GetUser возвращает пользователя по идентификатору аккаунта.
	GetUser(ctx context.Context, accountID int64) (*models.User, error)
	// GetTemplate возвращает шаблон по имени.
	GetTemplate(ctx context.Context, name string) (*models.Template, error)
	// IssueConfig атомарно проверяет квоту и записывает выдачу.
	IssueConfig(ctx context.Context, cfg models.IssuedConfig, limit int, windowStart time.Time) (*models.IssuedConfig, error)
	// CreateSiteRequest атомарно проверяет квоту и записывает выдачу доступа.
	CreateSiteRequest(ctx context.Context, req models.SiteRequest, limit int, windowStart time.Time) (*models.SiteRequest, error)
	// CountIssuedSince считает конфигурации пользователя с указанного момента.
	CountIssuedSince(ctx context.Context, accountID int64, since time.Time) (int, error)
	// CountSiteRequestsSince считает выдачи доступа с указанного момента.
	CountSiteRequestsSince(ctx context.Context, accountID int64, resourceName string, since time.Time) (int, error)
	// ListConfigsByUser возвращает конфигурации пользователя.
	ListConfigsByUser(ctx context.Context, accountID int64) ([]*models.IssuedConfig, error)
	// GetConfig возвращает конфигурацию по идентификатору.
	GetConfig(ctx context.Context, id string) (*models.IssuedConfig, error)
	// DeleteConfig удаляет конфигурацию пользователя.
	DeleteConfig(ctx context.Context, id string, accountID int64) (int, error)
	// PurgeOlderThan удаляет записи старше указанного момента.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Settings отдаёт значения настроек процесса.
type Settings interface {
	GetInt(ctx context.Context, key string, def int) (int, error)
}

// Result итог успешной выдачи: либо записанная конфигурация,
// либо внешняя ссылка для site-request шаблонов.
type Result struct {
	Config      *models.IssuedConfig
	SiteRequest *models.SiteRequest
	ResourceURL string
}

// Service реализует бизнес-логику выдачи конфигураций.
type Service struct {
	repo     Repository
	settings Settings
	log      *slog.Logger
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, settings Settings, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// CanIssueStandard сообщает, не исчерпан ли дневной лимит обычных конфигураций.
func (s *Service) CanIssueStandard(ctx context.Context, accountID int64) (bool, error) {
	user, err := s.repo.GetUser(ctx, accountID)
	if err != nil {
		return false, err
	}
	limit, err := s.standardLimit(ctx, user)
	if err != nil {
		return false, err
	}
	count, err := s.repo.CountIssuedSince(ctx, accountID, s.now().Add(-quotaWindow))
	if err != nil {
		return false, err
	}
	return count < limit, nil
}

// CanIssueSpecial сообщает, не исчерпан ли дневной лимит выдач доступа
// к именованному ресурсу.
func (s *Service) CanIssueSpecial(ctx context.Context, accountID int64, resourceName string) (bool, error) {
	limit, err := s.settings.GetInt(ctx, models.SettingVelessDailyLimit, models.DefaultVelessDailyLimit)
	if err != nil {
		return false, err
	}
	count, err := s.repo.CountSiteRequestsSince(ctx, accountID, resourceName, s.now().Add(-quotaWindow))
	if err != nil {
		return false, err
	}
	return count < limit, nil
}

// Issue проводит запрос через весь конвейер выдачи: проверка блокировки,
// шаблон, квота, рендеринг, запись. Доставка результата — забота адаптера
// и выполняется после записи, её сбой не откатывает выдачу.
func (s *Service) Issue(ctx context.Context, accountID int64, templateName, dnsChoice string) (*Result, error) {
	user, err := s.repo.GetUser(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if user.Banned {
		return nil, models.ErrBanned
	}

	tpl, err := s.repo.GetTemplate(ctx, templateName)
	if err != nil {
		return nil, err
	}
	if !tpl.Enabled {
		return nil, fmt.Errorf("template %s is disabled: %w", templateName, models.ErrNotFound)
	}

	if tpl.Data.IsSiteRequest() {
		return s.issueSiteAccess(ctx, user, tpl)
	}
	return s.issueStandard(ctx, user, tpl, dnsChoice)
}

func (s *Service) issueStandard(ctx context.Context, user *models.User, tpl *models.Template, dnsChoice string) (*Result, error) {
	content, err := render.Config(tpl.Data, dnsChoice)
	if err != nil {
		return nil, err
	}

	limit, err := s.standardLimit(ctx, user)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cfg := models.IssuedConfig{
		ID:           uuid.New().String(),
		AccountID:    user.AccountID,
		TemplateName: tpl.Name,
		DNSChoice:    dnsChoice,
		Content:      content,
		CreatedAt:    now,
	}
	issued, err := s.repo.IssueConfig(ctx, cfg, limit, now.Add(-quotaWindow))
	if err != nil {
		var quotaErr *models.QuotaExceededError
		if errors.As(err, &quotaErr) {
			metrics.QuotaRejections.WithLabelValues("standard").Inc()
		}
		return nil, err
	}

	metrics.ConfigsIssued.WithLabelValues(tpl.Name).Inc()
	s.log.Info("config issued",
		slog.Int64("account_id", user.AccountID),
		slog.String("template", tpl.Name),
		slog.String("dns", dnsChoice))
	return &Result{Config: issued}, nil
}

func (s *Service) issueSiteAccess(ctx context.Context, user *models.User, tpl *models.Template) (*Result, error) {
	limit, err := s.settings.GetInt(ctx, models.SettingVelessDailyLimit, models.DefaultVelessDailyLimit)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := models.SiteRequest{
		ID:           uuid.New().String(),
		AccountID:    user.AccountID,
		ResourceName: tpl.Name,
		CreatedAt:    now,
	}
	created, err := s.repo.CreateSiteRequest(ctx, req, limit, now.Add(-quotaWindow))
	if err != nil {
		var quotaErr *models.QuotaExceededError
		if errors.As(err, &quotaErr) {
			metrics.QuotaRejections.WithLabelValues("special").Inc()
		}
		return nil, err
	}

	s.log.Info("site access granted",
		slog.Int64("account_id", user.AccountID),
		slog.String("resource", tpl.Name))
	return &Result{SiteRequest: created, ResourceURL: tpl.Data.ResourceURL}, nil
}

// ListUserConfigs возвращает конфигурации пользователя, новые первыми.
func (s *Service) ListUserConfigs(ctx context.Context, accountID int64) ([]*models.IssuedConfig, error) {
	return s.repo.ListConfigsByUser(ctx, accountID)
}

// GetUserConfig возвращает конфигурацию пользователя для повторного
// скачивания. Чужая конфигурация неотличима от отсутствующей.
func (s *Service) GetUserConfig(ctx context.Context, accountID int64, id string) (*models.IssuedConfig, error) {
	cfg, err := s.repo.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.AccountID != accountID {
		return nil, models.ErrNotFound
	}
	return cfg, nil
}

// DeleteUserConfig удаляет конфигурацию пользователя.
func (s *Service) DeleteUserConfig(ctx context.Context, accountID int64, id string) error {
	deleted, err := s.repo.DeleteConfig(ctx, id, accountID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return models.ErrNotFound
	}
	return nil
}

// PurgeOlderThan удаляет выдачи старше указанного числа дней и возвращает
// число удалённых записей. При days <= 0 берётся настройка окна хранения.
func (s *Service) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		var err error
		days, err = s.settings.GetInt(ctx, models.SettingRetentionDays, models.DefaultRetentionDays)
		if err != nil {
			return 0, err
		}
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	count, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("purged expired issuances", slog.Int("count", count), slog.Int("days", days))
	}
	return count, nil
}

func (s *Service) standardLimit(ctx context.Context, user *models.User) (int, error) {
	limit, err := s.settings.GetInt(ctx, models.SettingGlobalConfigLimit, models.DefaultGlobalConfigLimit)
	if err != nil {
		return 0, err
	}
	return limit + user.BonusConfigs, nil
}

// WithNow подменяет источник времени, используется в тестах.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}
