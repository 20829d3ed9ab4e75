package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// AddTemplate сохраняет новый шаблон каталога. Имя шаблона уникально,
// повторная вставка с тем же именем возвращает ValidationError.
func (s *Storage) AddTemplate(ctx context.Context, tpl models.Template) error {
	const op = "storage.AddTemplate"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	data, err := json.Marshal(tpl.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO templates (name, data, enabled, updated_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (name) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query, tpl.Name, data, tpl.Enabled, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return models.Validationf("template %q already exists", tpl.Name)
	}
	return nil
}

// UpdateTemplate перезаписывает существующий шаблон целиком.
func (s *Storage) UpdateTemplate(ctx context.Context, tpl models.Template) error {
	const op = "storage.UpdateTemplate"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	data, err := json.Marshal(tpl.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE templates SET data = $1, enabled = $2, updated_at = $3 WHERE name = $4`
	result, err := s.DB.ExecContext(ctx, query, data, tpl.Enabled, tpl.UpdatedAt, tpl.Name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// GetTemplate возвращает шаблон по имени.
func (s *Storage) GetTemplate(ctx context.Context, name string) (*models.Template, error) {
	const op = "storage.GetTemplate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT name, data, enabled, updated_at FROM templates WHERE name = $1`
	row := s.DB.QueryRowContext(ctx, query, name)

	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tpl, nil
}

// ListEnabledTemplates возвращает включённые шаблоны каталога.
func (s *Storage) ListEnabledTemplates(ctx context.Context) ([]*models.Template, error) {
	const op = "storage.ListEnabledTemplates"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT name, data, enabled, updated_at FROM templates WHERE enabled = TRUE ORDER BY name`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, tpl)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var tpl models.Template
	var data []byte
	var updatedAt time.Time
	if err := row.Scan(&tpl.Name, &data, &tpl.Enabled, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &tpl.Data); err != nil {
		return nil, err
	}
	tpl.UpdatedAt = updatedAt
	return &tpl, nil
}
