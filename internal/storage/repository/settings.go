package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// GetSettingRaw возвращает значение настройки как JSON.
func (s *Storage) GetSettingRaw(ctx context.Context, key string) ([]byte, error) {
	const op = "storage.GetSettingRaw"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT value FROM settings WHERE key = $1`
	var value []byte
	if err := s.DB.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// SetSetting записывает значение настройки, создавая или перезаписывая ключ.
func (s *Storage) SetSetting(ctx context.Context, key string, value any) error {
	const op = "storage.SetSetting"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
			  ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.DB.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SeedDefaultSettings записывает настройки по умолчанию, не трогая
// уже существующие ключи. Вызывается один раз при старте.
func (s *Storage) SeedDefaultSettings(ctx context.Context, defaults map[string]any) error {
	const op = "storage.SeedDefaultSettings"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
			  ON CONFLICT (key) DO NOTHING`
	for key, value := range defaults {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if _, err := s.DB.ExecContext(ctx, query, key, data); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// GetDashboardAdmin возвращает bcrypt-хэш пароля администратора панели.
func (s *Storage) GetDashboardAdmin(ctx context.Context, username string) (string, error) {
	const op = "storage.GetDashboardAdmin"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT password_hash FROM dashboard_admins WHERE username = $1`
	var hash string
	if err := s.DB.QueryRowContext(ctx, query, username).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return hash, nil
}

// UpsertDashboardAdmin создаёт или обновляет администратора панели.
func (s *Storage) UpsertDashboardAdmin(ctx context.Context, username, passwordHash string) error {
	const op = "storage.UpsertDashboardAdmin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO dashboard_admins (username, password_hash) VALUES ($1, $2)
			  ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash`
	if _, err := s.DB.ExecContext(ctx, query, username, passwordHash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
