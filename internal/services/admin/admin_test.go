package admin

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
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListUsers(ctx context.Context, q models.ListUsersQuery) ([]*models.User, int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.User), args.Int(1), args.Error(2)
}
func (m *RepoMock) ListAllUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *RepoMock) ListActiveAccountIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}
func (m *RepoMock) CountStats(ctx context.Context, daySince time.Time) (*models.Stats, error) {
	args := m.Called(ctx, daySince)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Send(accountID int64, message string) error {
	return m.Called(accountID, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newService(repo *RepoMock, notifier *NotifierMock) *Service {
	return New(repo, notifier, newNoopLogger(), rate.NewLimiter(rate.Inf, 1))
}

func TestService_ListUsers_Normalization(t *testing.T) {
	tests := []struct {
		name string
		in   models.ListUsersQuery
		want models.ListUsersQuery
	}{
		{
			name: "defaults applied for unknown values",
			in:   models.ListUsersQuery{Page: -2, Filter: "weird", Sort: "weird"},
			want: models.ListUsersQuery{Page: 0, Filter: models.FilterAll, Sort: models.SortCreatedDesc},
		},
		{
			name: "valid values pass through",
			in:   models.ListUsersQuery{Page: 3, Filter: models.FilterBanned, Sort: models.SortIDAsc, Search: "alice"},
			want: models.ListUsersQuery{Page: 3, Filter: models.FilterBanned, Sort: models.SortIDAsc, Search: "alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("ListUsers", mock.Anything, tt.want).
				Return([]*models.User{}, 0, nil).Once()
			svc := newService(repo, new(NotifierMock))

			_, _, err := svc.ListUsers(context.Background(), tt.in)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_ExportUsersCSV(t *testing.T) {
	created := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)
	repo := new(RepoMock)
	repo.On("ListAllUsers", mock.Anything).Return([]*models.User{
		{AccountID: 42, Handle: "alice", DisplayName: "Alice", CreatedAt: created},
		{AccountID: 77, Handle: "bob", DisplayName: "Bob", CreatedAt: created, Banned: true},
	}, nil).Once()
	svc := newService(repo, new(NotifierMock))

	out, err := svc.ExportUsersCSV(context.Background())
	require.NoError(t, err)
	assert.Equal(t,
		"id,handle,display_name,created_at,status\n"+
			"42,alice,Alice,2025-05-01T10:30:00Z,Active\n"+
			"77,bob,Bob,2025-05-01T10:30:00Z,Banned\n",
		string(out))
	repo.AssertExpectations(t)
}

func TestService_Broadcast(t *testing.T) {
	t.Run("delivery failures are counted, not fatal", func(t *testing.T) {
		repo := new(RepoMock)
		notifier := new(NotifierMock)
		repo.On("ListActiveAccountIDs", mock.Anything).Return([]int64{1, 2, 3}, nil).Once()
		notifier.On("Send", int64(1), "hello").Return(nil).Once()
		notifier.On("Send", int64(2), "hello").Return(errors.New("blocked by user")).Once()
		notifier.On("Send", int64(3), "hello").Return(nil).Once()
		svc := newService(repo, notifier)

		success, failure, err := svc.Broadcast(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, 2, success)
		assert.Equal(t, 1, failure)
		notifier.AssertExpectations(t)
	})

	t.Run("cancelled context returns partial counts", func(t *testing.T) {
		repo := new(RepoMock)
		notifier := new(NotifierMock)
		repo.On("ListActiveAccountIDs", mock.Anything).Return([]int64{1, 2, 3}, nil).Once()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		svc := newService(repo, notifier)

		success, failure, err := svc.Broadcast(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, 0, success)
		assert.Equal(t, 0, failure)
		notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("listing error aborts the broadcast", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("ListActiveAccountIDs", mock.Anything).Return(nil, errors.New("db down")).Once()
		svc := newService(repo, new(NotifierMock))

		_, _, err := svc.Broadcast(context.Background(), "hello")
		assert.Error(t, err)
	})
}

func TestService_Stats(t *testing.T) {
	fixedNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := new(RepoMock)
	repo.On("CountStats", mock.Anything, fixedNow.Add(-24*time.Hour)).
		Return(&models.Stats{TotalUsers: 10, BannedUsers: 1}, nil).Once()
	svc := newService(repo, new(NotifierMock))
	svc.now = func() time.Time { return fixedNow }

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalUsers)
	repo.AssertExpectations(t)
}
