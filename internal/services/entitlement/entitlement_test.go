package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) RegisterUser(ctx context.Context, user models.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) GetUser(ctx context.Context, accountID int64) (*models.User, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *RepoMock) IsBanned(ctx context.Context, accountID int64) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) SetBan(ctx context.Context, accountID int64, banned bool) error {
	return m.Called(ctx, accountID, banned).Error(0)
}
func (m *RepoMock) SetTheme(ctx context.Context, accountID int64, theme string) error {
	return m.Called(ctx, accountID, theme).Error(0)
}
func (m *RepoMock) SetLanguage(ctx context.Context, accountID int64, language string) error {
	return m.Called(ctx, accountID, language).Error(0)
}
func (m *RepoMock) SetReferrer(ctx context.Context, accountID, referrerID int64) (bool, error) {
	args := m.Called(ctx, accountID, referrerID)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) IncrementBonusConfigs(ctx context.Context, accountID int64) error {
	return m.Called(ctx, accountID).Error(0)
}
func (m *RepoMock) CountReferrals(ctx context.Context, accountID int64) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) GetSettingRaw(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *RepoMock) SetSetting(ctx context.Context, key string, value any) error {
	return m.Called(ctx, key, value).Error(0)
}
func (m *RepoMock) SeedDefaultSettings(ctx context.Context, defaults map[string]any) error {
	return m.Called(ctx, defaults).Error(0)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}
func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	return m.Called(key, value, expiration).Error(0)
}
func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

type PubMock struct{ mock.Mock }

func (m *PubMock) PublishReferralJoined(event models.ReferralJoinedEvent) error {
	return m.Called(event).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

const superAdminID = int64(999)

func newService(repo *RepoMock, cache *CacheMock, pub *PubMock) *Service {
	return New(repo, cache, pub, newNoopLogger(), superAdminID)
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		wantErr    bool
	}{
		{
			name: "creates new user with referral code",
			setupMocks: func(r *RepoMock) {
				r.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.AccountID == 42 &&
						u.Theme == models.ThemeLight &&
						u.ReferralCode != ""
				})).Return(true, nil).Once()
			},
		},
		{
			name: "existing user is a no-op",
			setupMocks: func(r *RepoMock) {
				r.On("RegisterUser", mock.Anything, mock.Anything).Return(false, nil).Once()
				r.On("GetUser", mock.Anything, int64(42)).
					Return(&models.User{AccountID: 42, ReferralCode: "abc"}, nil).Once()
			},
		},
		{
			name: "storage error is returned",
			setupMocks: func(r *RepoMock) {
				r.On("RegisterUser", mock.Anything, mock.Anything).
					Return(false, errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			svc := newService(repo, new(CacheMock), new(PubMock))

			user, err := svc.Register(context.Background(), 42, "handle", "Name")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(42), user.AccountID)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_LinkReferral(t *testing.T) {
	caller := &models.User{AccountID: 42, Handle: "caller", ReferralCode: "callercode"}
	referrer := &models.User{AccountID: 77, ReferralCode: "refcode"}

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock, p *PubMock)
		code       string
		wantLinked bool
	}{
		{
			name: "success links and publishes event",
			code: "refcode",
			setupMocks: func(r *RepoMock, p *PubMock) {
				r.On("GetUser", mock.Anything, int64(42)).Return(caller, nil).Once()
				r.On("GetUserByReferralCode", mock.Anything, "refcode").Return(referrer, nil).Once()
				r.On("SetReferrer", mock.Anything, int64(42), int64(77)).Return(true, nil).Once()
				r.On("IncrementBonusConfigs", mock.Anything, int64(77)).Return(nil).Once()
				p.On("PublishReferralJoined", mock.MatchedBy(func(e models.ReferralJoinedEvent) bool {
					return e.ReferrerID == 77 && e.NewUserID == 42
				})).Return(nil).Once()
			},
			wantLinked: true,
		},
		{
			name: "self-link is a silent no-op",
			code: "callercode",
			setupMocks: func(r *RepoMock, _ *PubMock) {
				r.On("GetUser", mock.Anything, int64(42)).Return(caller, nil).Once()
				r.On("GetUserByReferralCode", mock.Anything, "callercode").Return(caller, nil).Once()
			},
		},
		{
			name: "unknown code is a silent no-op",
			code: "missing",
			setupMocks: func(r *RepoMock, _ *PubMock) {
				r.On("GetUser", mock.Anything, int64(42)).Return(caller, nil).Once()
				r.On("GetUserByReferralCode", mock.Anything, "missing").
					Return(nil, models.ErrNotFound).Once()
			},
		},
		{
			name: "referrer already set is a silent no-op",
			code: "refcode",
			setupMocks: func(r *RepoMock, _ *PubMock) {
				other := int64(5)
				withReferrer := *caller
				withReferrer.ReferrerID = &other
				r.On("GetUser", mock.Anything, int64(42)).Return(&withReferrer, nil).Once()
			},
		},
		{
			name: "lost race on set is a silent no-op",
			code: "refcode",
			setupMocks: func(r *RepoMock, _ *PubMock) {
				r.On("GetUser", mock.Anything, int64(42)).Return(caller, nil).Once()
				r.On("GetUserByReferralCode", mock.Anything, "refcode").Return(referrer, nil).Once()
				r.On("SetReferrer", mock.Anything, int64(42), int64(77)).Return(false, nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			pub := new(PubMock)
			tt.setupMocks(repo, pub)
			svc := newService(repo, new(CacheMock), pub)

			got, err := svc.LinkReferral(context.Background(), 42, tt.code)
			require.NoError(t, err)
			if tt.wantLinked {
				require.NotNil(t, got)
				assert.Equal(t, int64(77), *got)
			} else {
				assert.Nil(t, got)
			}
			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestService_SetBan(t *testing.T) {
	t.Run("refuses to ban super-admin", func(t *testing.T) {
		svc := newService(new(RepoMock), new(CacheMock), new(PubMock))

		err := svc.SetBan(context.Background(), superAdminID, true)
		var validationErr *models.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("unban of super-admin is allowed", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("SetBan", mock.Anything, superAdminID, false).Return(nil).Once()
		svc := newService(repo, new(CacheMock), new(PubMock))

		require.NoError(t, svc.SetBan(context.Background(), superAdminID, false))
		repo.AssertExpectations(t)
	})

	t.Run("ban toggles regular user", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("SetBan", mock.Anything, int64(42), true).Return(nil).Once()
		repo.On("SetBan", mock.Anything, int64(42), false).Return(nil).Once()
		svc := newService(repo, new(CacheMock), new(PubMock))

		require.NoError(t, svc.SetBan(context.Background(), 42, true))
		require.NoError(t, svc.SetBan(context.Background(), 42, false))
		repo.AssertExpectations(t)
	})
}

func TestService_SetSetting(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		value      string
		setupMocks func(r *RepoMock, c *CacheMock)
		wantErr    bool
	}{
		{
			name:  "integer setting is coerced",
			key:   models.SettingGlobalConfigLimit,
			value: "7",
			setupMocks: func(r *RepoMock, c *CacheMock) {
				r.On("SetSetting", mock.Anything, models.SettingGlobalConfigLimit, 7).Return(nil).Once()
				c.On("Invalidate", "setting:"+models.SettingGlobalConfigLimit).Return(nil).Once()
			},
		},
		{
			name:    "non-numeric integer setting fails validation",
			key:     models.SettingGlobalConfigLimit,
			value:   "many",
			wantErr: true,
		},
		{
			name:    "negative integer setting fails validation",
			key:     models.SettingRetentionDays,
			value:   "-3",
			wantErr: true,
		},
		{
			name:  "language list is split and trimmed",
			key:   models.SettingSupportedLanguages,
			value: "ru, en ,de",
			setupMocks: func(r *RepoMock, c *CacheMock) {
				r.On("SetSetting", mock.Anything, models.SettingSupportedLanguages,
					[]string{"ru", "en", "de"}).Return(nil).Once()
				c.On("Invalidate", "setting:"+models.SettingSupportedLanguages).Return(nil).Once()
			},
		},
		{
			name:  "free-form setting stored as string",
			key:   models.SettingWelcomeMessage,
			value: "Привет!",
			setupMocks: func(r *RepoMock, c *CacheMock) {
				r.On("SetSetting", mock.Anything, models.SettingWelcomeMessage, "Привет!").Return(nil).Once()
				c.On("Invalidate", "setting:"+models.SettingWelcomeMessage).Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			cache := new(CacheMock)
			if tt.setupMocks != nil {
				tt.setupMocks(repo, cache)
			}
			svc := newService(repo, cache, new(PubMock))

			err := svc.SetSetting(context.Background(), tt.key, tt.value)
			if tt.wantErr {
				var validationErr *models.ValidationError
				assert.ErrorAs(t, err, &validationErr)
			} else {
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestService_GetInt(t *testing.T) {
	t.Run("missing key falls back to default", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", "setting:"+models.SettingGlobalConfigLimit, mock.Anything).Return(false, nil).Once()
		repo.On("GetSettingRaw", mock.Anything, models.SettingGlobalConfigLimit).
			Return(nil, models.ErrNotFound).Once()
		svc := newService(repo, cache, new(PubMock))

		got, err := svc.GetInt(context.Background(), models.SettingGlobalConfigLimit, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, got)
	})

	t.Run("stored value wins and is cached", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", "setting:"+models.SettingGlobalConfigLimit, mock.Anything).Return(false, nil).Once()
		repo.On("GetSettingRaw", mock.Anything, models.SettingGlobalConfigLimit).
			Return([]byte("9"), nil).Once()
		cache.On("Set", "setting:"+models.SettingGlobalConfigLimit, mock.Anything, settingCacheTTL).
			Return(nil).Once()
		svc := newService(repo, cache, new(PubMock))

		got, err := svc.GetInt(context.Background(), models.SettingGlobalConfigLimit, 5)
		require.NoError(t, err)
		assert.Equal(t, 9, got)
		cache.AssertExpectations(t)
	})
}

func TestService_SetTheme(t *testing.T) {
	repo := new(RepoMock)
	repo.On("SetTheme", mock.Anything, int64(42), models.ThemeDark).Return(nil).Once()
	svc := newService(repo, new(CacheMock), new(PubMock))

	require.NoError(t, svc.SetTheme(context.Background(), 42, models.ThemeDark))

	err := svc.SetTheme(context.Background(), 42, "neon")
	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	repo.AssertExpectations(t)
}
