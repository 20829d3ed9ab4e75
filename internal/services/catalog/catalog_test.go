package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) AddTemplate(ctx context.Context, tpl models.Template) error {
	return m.Called(ctx, tpl).Error(0)
}
func (m *RepoMock) UpdateTemplate(ctx context.Context, tpl models.Template) error {
	return m.Called(ctx, tpl).Error(0)
}
func (m *RepoMock) GetTemplate(ctx context.Context, name string) (*models.Template, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Template), args.Error(1)
}
func (m *RepoMock) ListEnabledTemplates(ctx context.Context) ([]*models.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Template), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func validData() models.TemplateData {
	return models.TemplateData{
		PrivateKey: "priv",
		PublicKey:  "pub",
		Address:    "172.16.0.2/32",
		Endpoint:   "engage.cloudflareclient.com:2408",
		DNS: map[string]string{
			"cloudflare": "1.1.1.1, 2606:4700:4700::1111",
			"google":     "8.8.8.8, 2001:4860:4860::8888",
			"adguard":    "94.140.14.14, 2a10:50c0::ad1:ff",
		},
	}
}

func TestService_Add_Validation(t *testing.T) {
	tests := []struct {
		name     string
		tplName  string
		mutate   func(d *models.TemplateData)
		wantSave bool
	}{
		{
			name:     "valid template is saved",
			tplName:  "warp-cloudflare",
			mutate:   func(_ *models.TemplateData) {},
			wantSave: true,
		},
		{
			name:    "empty name is rejected",
			tplName: "  ",
			mutate:  func(_ *models.TemplateData) {},
		},
		{
			name:    "missing endpoint is rejected",
			tplName: "warp",
			mutate:  func(d *models.TemplateData) { d.Endpoint = "" },
		},
		{
			name:    "nil DNS map is rejected",
			tplName: "warp",
			mutate:  func(d *models.TemplateData) { d.DNS = nil },
		},
		{
			name:    "missing DNS provider is rejected",
			tplName: "warp",
			mutate:  func(d *models.TemplateData) { delete(d.DNS, "adguard") },
		},
		{
			name:    "empty DNS provider value is rejected",
			tplName: "warp",
			mutate:  func(d *models.TemplateData) { d.DNS["google"] = "" },
		},
		{
			name:    "site-request without resource URL is rejected",
			tplName: "veless",
			mutate: func(d *models.TemplateData) {
				*d = models.TemplateData{Category: models.CategorySiteRequest}
			},
		},
		{
			name:    "site-request with resource URL skips field checks",
			tplName: "veless",
			mutate: func(d *models.TemplateData) {
				*d = models.TemplateData{
					Category:    models.CategorySiteRequest,
					ResourceURL: "https://veless.example.com/access",
				}
			},
			wantSave: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			if tt.wantSave {
				repo.On("AddTemplate", mock.Anything, mock.Anything).Return(nil).Once()
			}
			svc := New(repo, newNoopLogger())

			data := validData()
			tt.mutate(&data)
			err := svc.Add(context.Background(), tt.tplName, data, true)
			if tt.wantSave {
				require.NoError(t, err)
			} else {
				var validationErr *models.ValidationError
				assert.ErrorAs(t, err, &validationErr)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Add_GeneratesKeypair(t *testing.T) {
	repo := new(RepoMock)
	repo.On("AddTemplate", mock.Anything, mock.MatchedBy(func(tpl models.Template) bool {
		return tpl.Data.PrivateKey == "generated-priv" && tpl.Data.PublicKey == "generated-pub"
	})).Return(nil).Once()

	svc := New(repo, newNoopLogger()).WithKeyFunc(func() (string, string) {
		return "generated-priv", "generated-pub"
	})

	data := validData()
	data.PrivateKey, data.PublicKey = "", ""
	require.NoError(t, svc.Add(context.Background(), "warp", data, true))
	repo.AssertExpectations(t)
}

func TestParseTemplateInput(t *testing.T) {
	t.Run("full template with ordered extras", func(t *testing.T) {
		input := `private_key = priv
public_key = pub
address = 172.16.0.2/32
endpoint = engage.cloudflareclient.com:2408
dns.cloudflare = 1.1.1.1, 2606:4700:4700::1111
extra.Jc = 4
extra.Jmin = 40
extra.Jmax = 70`

		data, err := ParseTemplateInput(input)
		require.NoError(t, err)
		assert.Equal(t, "priv", data.PrivateKey)
		assert.Equal(t, "pub", data.PublicKey)
		assert.Equal(t, "172.16.0.2/32", data.Address)
		assert.Equal(t, "engage.cloudflareclient.com:2408", data.Endpoint)
		assert.Equal(t, "1.1.1.1, 2606:4700:4700::1111", data.DNS["cloudflare"])
		assert.Equal(t, []models.ExtraParam{
			{Key: "Jc", Value: "4"},
			{Key: "Jmin", Value: "40"},
			{Key: "Jmax", Value: "70"},
		}, data.Extra)
	})

	t.Run("site-request fields", func(t *testing.T) {
		data, err := ParseTemplateInput("category = site-request\nresource_url = https://example.com")
		require.NoError(t, err)
		assert.True(t, data.IsSiteRequest())
		assert.Equal(t, "https://example.com", data.ResourceURL)
	})

	t.Run("malformed line is rejected", func(t *testing.T) {
		_, err := ParseTemplateInput("just some text")
		var validationErr *models.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, err := ParseTemplateInput("listen_port = 51820")
		var validationErr *models.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}
