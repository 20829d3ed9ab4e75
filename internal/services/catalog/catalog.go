// Package catalog содержит бизнес-логику каталога шаблонов конфигураций:
// создание, обновление и выборку с валидацией на границе записи.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
	"github.com/magabrotheeeer/warp-config-bot/internal/render"
)

// RequiredDNSProviders провайдеры, записи для которых обязаны присутствовать
// в DNS-карте шаблона до того, как шаблон можно использовать для рендеринга.
var RequiredDNSProviders = []string{"cloudflare", "google", "adguard"}

// Repository определяет методы хранилища для работы с шаблонами.
type Repository interface {
	// AddTemplate сохраняет новый шаблон.
	AddTemplate(ctx context.Context, tpl models.Template) error
	// UpdateTemplate перезаписывает существующий шаблон.
	UpdateTemplate(ctx context.Context, tpl models.Template) error
	// GetTemplate возвращает шаблон по имени.
	GetTemplate(ctx context.Context, name string) (*models.Template, error)
	// ListEnabledTemplates возвращает включённые шаблоны.
	ListEnabledTemplates(ctx context.Context) ([]*models.Template, error)
}

// Service реализует бизнес-логику каталога шаблонов.
type Service struct {
	repo Repository
	log  *slog.Logger
	keys render.KeyFunc
	now  func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		keys: render.GenerateKeypair,
		now:  time.Now,
	}
}

// Add валидирует и сохраняет новый шаблон. Если ключевой материал не задан,
// генерируется пара ключей-заполнителей.
func (s *Service) Add(ctx context.Context, name string, data models.TemplateData, enabled bool) error {
	if !data.IsSiteRequest() && data.PrivateKey == "" && data.PublicKey == "" {
		data.PrivateKey, data.PublicKey = s.keys()
	}
	if err := validate(name, data); err != nil {
		return err
	}

	tpl := models.Template{
		Name:      name,
		Data:      data,
		Enabled:   enabled,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.AddTemplate(ctx, tpl); err != nil {
		return err
	}
	s.log.Info("template added", slog.String("name", name))
	return nil
}

// Update валидирует и перезаписывает существующий шаблон.
func (s *Service) Update(ctx context.Context, name string, data models.TemplateData, enabled bool) error {
	if err := validate(name, data); err != nil {
		return err
	}

	tpl := models.Template{
		Name:      name,
		Data:      data,
		Enabled:   enabled,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.UpdateTemplate(ctx, tpl); err != nil {
		return err
	}
	s.log.Info("template updated", slog.String("name", name), slog.Bool("enabled", enabled))
	return nil
}

// Get возвращает шаблон по имени.
func (s *Service) Get(ctx context.Context, name string) (*models.Template, error) {
	return s.repo.GetTemplate(ctx, name)
}

// ListEnabled возвращает включённые шаблоны каталога.
func (s *Service) ListEnabled(ctx context.Context) ([]*models.Template, error) {
	return s.repo.ListEnabledTemplates(ctx)
}

func validate(name string, data models.TemplateData) error {
	if strings.TrimSpace(name) == "" {
		return models.Validationf("template name must not be empty")
	}

	if data.IsSiteRequest() {
		if data.ResourceURL == "" {
			return models.Validationf("site-request template %q must have a resource URL", name)
		}
		return nil
	}

	var missing []string
	required := []struct {
		field string
		value string
	}{
		{"PrivateKey", data.PrivateKey},
		{"PublicKey", data.PublicKey},
		{"Address", data.Address},
		{"Endpoint", data.Endpoint},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.field)
		}
	}
	if data.DNS == nil {
		missing = append(missing, "DNS")
	}
	if len(missing) > 0 {
		return models.Validationf("template %q is missing required fields: %s", name, strings.Join(missing, ", "))
	}

	for _, provider := range RequiredDNSProviders {
		if data.DNS[provider] == "" {
			return models.Validationf("template %q DNS map is missing provider %s", name, provider)
		}
	}
	return nil
}

// ParseTemplateInput разбирает текстовый ввод администратора в данные шаблона.
// Формат — строки "ключ=значение": обязательные поля по имени, dns.<provider>
// для DNS-карты, extra.<key> для дополнительных параметров (порядок строк
// сохраняется), category и resource_url для site-request записей.
func ParseTemplateInput(input string) (models.TemplateData, error) {
	data := models.TemplateData{DNS: map[string]string{}}
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return models.TemplateData{}, models.Validationf("line %q is not in key=value form", line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch {
		case key == "private_key":
			data.PrivateKey = value
		case key == "public_key":
			data.PublicKey = value
		case key == "address":
			data.Address = value
		case key == "endpoint":
			data.Endpoint = value
		case key == "category":
			data.Category = value
		case key == "resource_url":
			data.ResourceURL = value
		case strings.HasPrefix(key, "dns."):
			data.DNS[strings.TrimPrefix(key, "dns.")] = value
		case strings.HasPrefix(key, "extra."):
			data.Extra = append(data.Extra, models.ExtraParam{
				Key:   strings.TrimPrefix(key, "extra."),
				Value: value,
			})
		default:
			return models.TemplateData{}, models.Validationf("unknown template field %q", key)
		}
	}
	return data, nil
}

// WithKeyFunc подменяет генератор ключей, используется в тестах.
func (s *Service) WithKeyFunc(keys render.KeyFunc) *Service {
	s.keys = keys
	return s
}
