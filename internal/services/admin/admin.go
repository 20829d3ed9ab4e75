// Package admin содержит операции администратора: постраничный список
// пользователей, экспорт CSV, рассылку и одиночные уведомления.
package admin

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/metrics"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// Repository определяет методы хранилища для административных операций.
type Repository interface {
	// ListUsers возвращает страницу пользователей и общее число записей.
	ListUsers(ctx context.Context, q models.ListUsersQuery) ([]*models.User, int, error)
	// ListAllUsers возвращает всех пользователей для экспорта.
	ListAllUsers(ctx context.Context) ([]*models.User, error)
	// ListActiveAccountIDs возвращает получателей рассылки.
	ListActiveAccountIDs(ctx context.Context) ([]int64, error)
	// CountStats собирает сводные счётчики.
	CountStats(ctx context.Context, daySince time.Time) (*models.Stats, error)
}

// Notifier доставляет сообщение пользователю в мессенджере.
// Сбой доставки — штатный исход, он считается и не прерывает рассылку.
type Notifier interface {
	Send(accountID int64, message string) error
}

// Service реализует административные операции.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
	limiter  *rate.Limiter
	now      func() time.Time
}

// New создает новый экземпляр Service. Лимитер задаёт темп рассылки,
// чтобы не упереться во внешние ограничения мессенджера.
func New(repo Repository, notifier Notifier, log *slog.Logger, limiter *rate.Limiter) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		limiter:  limiter,
		now:      time.Now,
	}
}

// ListUsers возвращает страницу пользователей по фильтру, сортировке и поиску.
// Неизвестные значения фильтра и сортировки приводятся к значениям по умолчанию.
func (s *Service) ListUsers(ctx context.Context, q models.ListUsersQuery) ([]*models.User, int, error) {
	if q.Page < 0 {
		q.Page = 0
	}
	switch q.Filter {
	case models.FilterActive, models.FilterBanned:
	default:
		q.Filter = models.FilterAll
	}
	switch q.Sort {
	case models.SortCreatedAsc, models.SortIDAsc:
	default:
		q.Sort = models.SortCreatedDesc
	}
	return s.repo.ListUsers(ctx, q)
}

// ExportUsersCSV выгружает всех пользователей в CSV: идентификатор, username,
// отображаемое имя, дата регистрации и статус.
func (s *Service) ExportUsersCSV(ctx context.Context) ([]byte, error) {
	users, err := s.repo.ListAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", "handle", "display_name", "created_at", "status"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, u := range users {
		record := []string{
			strconv.FormatInt(u.AccountID, 10),
			u.Handle,
			u.DisplayName,
			u.CreatedAt.UTC().Format(time.RFC3339),
			u.Status(),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Broadcast рассылает сообщение всем незаблокированным пользователям.
// Сбои доставки считаются и не прерывают цикл. При отмене контекста
// возвращаются счётчики на момент прерывания.
func (s *Service) Broadcast(ctx context.Context, message string) (success, failure int, err error) {
	accountIDs, err := s.repo.ListActiveAccountIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, accountID := range accountIDs {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Warn("broadcast interrupted",
				slog.Int("success", success), slog.Int("failure", failure), sl.Err(err))
			return success, failure, nil
		}
		if err := s.notifier.Send(accountID, message); err != nil {
			failure++
			metrics.BroadcastMessages.WithLabelValues("failure").Inc()
			s.log.Warn("broadcast delivery failed", slog.Int64("account_id", accountID), sl.Err(err))
			continue
		}
		success++
		metrics.BroadcastMessages.WithLabelValues("success").Inc()
	}

	s.log.Info("broadcast finished", slog.Int("success", success), slog.Int("failure", failure))
	return success, failure, nil
}

// Notify отправляет сообщение одному пользователю. Сбой доставки
// логируется и возвращается, повторов нет.
func (s *Service) Notify(accountID int64, message string) error {
	if err := s.notifier.Send(accountID, message); err != nil {
		s.log.Warn("notify delivery failed", slog.Int64("account_id", accountID), sl.Err(err))
		return err
	}
	return nil
}

// Stats возвращает сводные счётчики за последние сутки.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	return s.repo.CountStats(ctx, s.now().Add(-24*time.Hour))
}
