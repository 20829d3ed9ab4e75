package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

func warpTemplate() models.TemplateData {
	return models.TemplateData{
		PrivateKey: "mIk2nsGpeBbECjw1ZPo+svm2maj5VAwue0fG/oJ8Bwk=",
		PublicKey:  "bmXOC+F1FxEMF9dyiK2H5/1SUtzH0JuVo51h2wPfgyo=",
		Address:    "172.16.0.2, 2606:4700:110:8f9c:6051:85c2:19a4:ef13",
		Endpoint:   "engage.cloudflareclient.com:2408",
		DNS: map[string]string{
			"cloudflare": "1.1.1.1, 2606:4700:4700::1111",
			"google":     "8.8.8.8, 2001:4860:4860::8888",
			"adguard":    "94.140.14.14, 2a10:50c0::ad1:ff",
		},
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.TemplateData)
		dnsChoice string
		wantParts []string
		wantErr   bool
	}{
		{
			name:      "cloudflare dns resolved literally",
			dnsChoice: "cloudflare",
			wantParts: []string{
				"[Interface]",
				"PrivateKey = mIk2nsGpeBbECjw1ZPo+svm2maj5VAwue0fG/oJ8Bwk=",
				"DNS = 1.1.1.1, 2606:4700:4700::1111",
				"[Peer]",
				"AllowedIPs = 0.0.0.0/0, ::/0",
				"Endpoint = engage.cloudflareclient.com:2408",
			},
		},
		{
			name:      "google dns resolved literally",
			dnsChoice: "google",
			wantParts: []string{"DNS = 8.8.8.8, 2001:4860:4860::8888"},
		},
		{
			name: "extra params emitted in declared order",
			mutate: func(d *models.TemplateData) {
				d.Extra = []models.ExtraParam{
					{Key: "Jc", Value: "4"},
					{Key: "Jmin", Value: "40"},
					{Key: "Jmax", Value: "70"},
				}
			},
			dnsChoice: "cloudflare",
			wantParts: []string{"Jc = 4\nJmin = 40\nJmax = 70\nAddress ="},
		},
		{
			name:      "unknown dns provider fails",
			dnsChoice: "nonexistent-provider",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := warpTemplate()
			if tt.mutate != nil {
				tt.mutate(&tpl)
			}

			got, err := Config(tpl, tt.dnsChoice)
			if tt.wantErr {
				var renderErr *models.RenderError
				require.ErrorAs(t, err, &renderErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			for _, part := range tt.wantParts {
				assert.Contains(t, got, part)
			}
		})
	}
}

func TestConfig_Deterministic(t *testing.T) {
	tpl := warpTemplate()

	first, err := Config(tpl, "adguard")
	require.NoError(t, err)
	second, err := Config(tpl, "adguard")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestConfig_SiteRequestBypassesRendering(t *testing.T) {
	tpl := models.TemplateData{
		Category:    models.CategorySiteRequest,
		ResourceURL: "https://veless.example.com/access",
	}

	got, err := Config(tpl, "cloudflare")
	require.NoError(t, err)
	assert.Equal(t, "https://veless.example.com/access", got)
	assert.NotContains(t, got, "[Interface]")
}

func TestGenerateKeypair(t *testing.T) {
	priv, pub := GenerateKeypair()
	assert.NotEmpty(t, priv)
	assert.NotEmpty(t, pub)
	assert.NotEqual(t, priv, pub)
	assert.Len(t, priv, 44) // base64 of 32 bytes
}
