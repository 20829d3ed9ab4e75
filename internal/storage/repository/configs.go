package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// IssueConfig атомарно проверяет квоту и записывает выданную конфигурацию.
// Проверка и вставка идут в одной транзакции под advisory-блокировкой
// аккаунта, чтобы два одновременных запроса не прошли проверку вдвоём.
// Нижняя граница окна включительна: запись ровно 24-часовой давности
// всё ещё учитывается в лимите.
func (s *Storage) IssueConfig(ctx context.Context, cfg models.IssuedConfig, limit int, windowStart time.Time) (*models.IssuedConfig, error) {
	const op = "storage.IssueConfig"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, cfg.AccountID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var count int
	var oldest sql.NullTime
	countQuery := `SELECT COUNT(*), MIN(created_at) FROM issued_configs
			  WHERE account_id = $1 AND created_at >= $2`
	if err := tx.QueryRowContext(ctx, countQuery, cfg.AccountID, windowStart).Scan(&count, &oldest); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if count >= limit {
		resetAt := cfg.CreatedAt.Add(24 * time.Hour)
		if oldest.Valid {
			resetAt = oldest.Time.Add(24 * time.Hour)
		}
		return nil, &models.QuotaExceededError{Limit: limit, ResetAt: resetAt}
	}

	insertQuery := `INSERT INTO issued_configs (id, account_id, template_name, dns_choice, content, created_at, temporary)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertQuery,
		cfg.ID, cfg.AccountID, cfg.TemplateName, cfg.DNSChoice, cfg.Content,
		cfg.CreatedAt, cfg.Temporary); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// CreateSiteRequest атомарно проверяет квоту по именованному ресурсу
// и записывает выдачу доступа. Та же дисциплина, что и в IssueConfig.
func (s *Storage) CreateSiteRequest(ctx context.Context, req models.SiteRequest, limit int, windowStart time.Time) (*models.SiteRequest, error) {
	const op = "storage.CreateSiteRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, req.AccountID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var count int
	var oldest sql.NullTime
	countQuery := `SELECT COUNT(*), MIN(created_at) FROM site_requests
			  WHERE account_id = $1 AND resource_name = $2 AND created_at >= $3`
	if err := tx.QueryRowContext(ctx, countQuery, req.AccountID, req.ResourceName, windowStart).Scan(&count, &oldest); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if count >= limit {
		resetAt := req.CreatedAt.Add(24 * time.Hour)
		if oldest.Valid {
			resetAt = oldest.Time.Add(24 * time.Hour)
		}
		return nil, &models.QuotaExceededError{Limit: limit, ResetAt: resetAt}
	}

	insertQuery := `INSERT INTO site_requests (id, account_id, resource_name, created_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insertQuery,
		req.ID, req.AccountID, req.ResourceName, req.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &req, nil
}

// CountIssuedSince считает конфигурации пользователя, выданные начиная
// с указанного момента включительно.
func (s *Storage) CountIssuedSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	const op = "storage.CountIssuedSince"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM issued_configs WHERE account_id = $1 AND created_at >= $2`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, accountID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// CountSiteRequestsSince считает выдачи доступа к ресурсу начиная
// с указанного момента включительно.
func (s *Storage) CountSiteRequestsSince(ctx context.Context, accountID int64, resourceName string, since time.Time) (int, error) {
	const op = "storage.CountSiteRequestsSince"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM site_requests
			  WHERE account_id = $1 AND resource_name = $2 AND created_at >= $3`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, accountID, resourceName, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ListConfigsByUser возвращает конфигурации пользователя, новые первыми.
func (s *Storage) ListConfigsByUser(ctx context.Context, accountID int64) ([]*models.IssuedConfig, error) {
	const op = "storage.ListConfigsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, template_name, dns_choice, content, created_at, temporary
			  FROM issued_configs
			  WHERE account_id = $1
			  ORDER BY created_at DESC, id`
	rows, err := s.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.IssuedConfig
	for rows.Next() {
		var item models.IssuedConfig
		if err := rows.Scan(&item.ID, &item.AccountID, &item.TemplateName, &item.DNSChoice,
			&item.Content, &item.CreatedAt, &item.Temporary); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetConfig возвращает выданную конфигурацию по идентификатору.
func (s *Storage) GetConfig(ctx context.Context, id string) (*models.IssuedConfig, error) {
	const op = "storage.GetConfig"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, template_name, dns_choice, content, created_at, temporary
			  FROM issued_configs
			  WHERE id = $1`
	var item models.IssuedConfig
	row := s.DB.QueryRowContext(ctx, query, id)
	if err := row.Scan(&item.ID, &item.AccountID, &item.TemplateName, &item.DNSChoice,
		&item.Content, &item.CreatedAt, &item.Temporary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// DeleteConfig удаляет конфигурацию пользователя. Принадлежность проверяется
// в условии запроса, чужую запись удалить нельзя.
func (s *Storage) DeleteConfig(ctx context.Context, id string, accountID int64) (int, error) {
	const op = "storage.DeleteConfig"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM issued_configs WHERE id = $1 AND account_id = $2`
	result, err := s.DB.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// PurgeOlderThan удаляет конфигурации и выдачи доступа старше указанного
// момента, возвращает суммарное число удалённых строк.
func (s *Storage) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const op = "storage.PurgeOlderThan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int64
	result, err := s.DB.ExecContext(ctx, `DELETE FROM issued_configs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	total += rowsAffected

	result, err = s.DB.ExecContext(ctx, `DELETE FROM site_requests WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	total += rowsAffected

	return int(total), nil
}

// CountStats собирает сводные счётчики для /stats и панели администратора.
func (s *Storage) CountStats(ctx context.Context, daySince time.Time) (*models.Stats, error) {
	const op = "storage.CountStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	stats := &models.Stats{}
	query := `SELECT
			      (SELECT COUNT(*) FROM users),
			      (SELECT COUNT(*) FROM users WHERE banned = TRUE),
			      (SELECT COUNT(*) FROM issued_configs),
			      (SELECT COUNT(*) FROM issued_configs WHERE created_at >= $1),
			      (SELECT COUNT(*) FROM site_requests WHERE created_at >= $1)`
	if err := s.DB.QueryRowContext(ctx, query, daySince).Scan(&stats.TotalUsers, &stats.BannedUsers,
		&stats.ConfigsTotal, &stats.ConfigsToday, &stats.SiteRequestsToday); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
