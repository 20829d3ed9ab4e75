package login

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	jwtlib "github.com/magabrotheeeer/warp-config-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/password"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

type AdminStoreMock struct {
	mock.Mock
}

func (m *AdminStoreMock) GetDashboardAdmin(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	hash, err := password.GetHash("password123")
	require.NoError(t, err)

	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(m *AdminStoreMock)
		wantStatusCode int
		wantStatus     string
		wantError      string
	}{
		{
			name:        "valid login",
			requestBody: Request{Username: "root", Password: "password123"},
			setupMocks: func(m *AdminStoreMock) {
				m.On("GetDashboardAdmin", mock.Anything, "root").Return(hash, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantStatus:     "OK",
		},
		{
			name:        "wrong password",
			requestBody: Request{Username: "root", Password: "wrongpass"},
			setupMocks: func(m *AdminStoreMock) {
				m.On("GetDashboardAdmin", mock.Anything, "root").Return(hash, nil).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantStatus:     "Error",
			wantError:      "invalid credentials",
		},
		{
			name:        "unknown admin",
			requestBody: Request{Username: "ghost", Password: "password123"},
			setupMocks: func(m *AdminStoreMock) {
				m.On("GetDashboardAdmin", mock.Anything, "ghost").Return("", models.ErrNotFound).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantStatus:     "Error",
			wantError:      "invalid credentials",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing password",
			requestBody:    Request{Username: "root"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     "Error",
			wantError:      "field Password is a required field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storeMock := new(AdminStoreMock)
			if tt.setupMocks != nil {
				tt.setupMocks(storeMock)
			}
			maker := jwtlib.NewJWTMaker("test-secret", time.Hour)
			handler := New(newNoopLogger(), storeMock, maker)

			var body []byte
			switch v := tt.requestBody.(type) {
			case string:
				body = []byte(v)
			default:
				body, err = json.Marshal(v)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
			}
			if tt.wantStatus == "OK" {
				data := resp["data"].(map[string]any)
				token, _ := data["token"].(string)
				require.NotEmpty(t, token)

				claims, err := maker.ParseToken(token)
				require.NoError(t, err)
				assert.Equal(t, "root", claims.Username)
			}
			storeMock.AssertExpectations(t)
		})
	}
}
