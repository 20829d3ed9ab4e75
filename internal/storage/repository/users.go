package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// RegisterUser сохраняет нового пользователя. Повторная регистрация того же
// аккаунта — no-op, возвращает false.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (bool, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (account_id, handle, display_name, created_at, theme, language, referral_code)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (account_id) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query,
		user.AccountID, user.Handle, user.DisplayName, user.CreatedAt,
		user.Theme, user.Language, user.ReferralCode)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// GetUser возвращает пользователя по идентификатору аккаунта.
func (s *Storage) GetUser(ctx context.Context, accountID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT account_id, handle, display_name, created_at, banned, theme,
			      language, referral_code, referrer_id, bonus_configs
			  FROM users
			  WHERE account_id = $1`
	row := s.DB.QueryRowContext(ctx, query, accountID)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByReferralCode возвращает пользователя по его реферальному коду.
func (s *Storage) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	const op = "storage.GetUserByReferralCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT account_id, handle, display_name, created_at, banned, theme,
			      language, referral_code, referrer_id, bonus_configs
			  FROM users
			  WHERE referral_code = $1`
	row := s.DB.QueryRowContext(ctx, query, code)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// IsBanned возвращает флаг блокировки пользователя.
func (s *Storage) IsBanned(ctx context.Context, accountID int64) (bool, error) {
	const op = "storage.IsBanned"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT banned FROM users WHERE account_id = $1`
	var banned bool
	if err := s.DB.QueryRowContext(ctx, query, accountID).Scan(&banned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return banned, nil
}

// SetBan выставляет флаг блокировки пользователя.
func (s *Storage) SetBan(ctx context.Context, accountID int64, banned bool) error {
	const op = "storage.SetBan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET banned = $1 WHERE account_id = $2`
	result, err := s.DB.ExecContext(ctx, query, banned, accountID)
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

// SetTheme меняет тему интерфейса пользователя.
func (s *Storage) SetTheme(ctx context.Context, accountID int64, theme string) error {
	const op = "storage.SetTheme"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET theme = $1 WHERE account_id = $2`
	result, err := s.DB.ExecContext(ctx, query, theme, accountID)
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

// SetLanguage меняет язык интерфейса пользователя.
func (s *Storage) SetLanguage(ctx context.Context, accountID int64, language string) error {
	const op = "storage.SetLanguage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET language = $1 WHERE account_id = $2`
	result, err := s.DB.ExecContext(ctx, query, language, accountID)
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

// SetReferrer устанавливает пригласившего пользователя, только если он ещё
// не установлен. Возвращает true, если ссылка была установлена этим вызовом.
func (s *Storage) SetReferrer(ctx context.Context, accountID, referrerID int64) (bool, error) {
	const op = "storage.SetReferrer"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET referrer_id = $1
			  WHERE account_id = $2 AND referrer_id IS NULL`
	result, err := s.DB.ExecContext(ctx, query, referrerID, accountID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// IncrementBonusConfigs добавляет пользователю единицу к бонусному лимиту.
func (s *Storage) IncrementBonusConfigs(ctx context.Context, accountID int64) error {
	const op = "storage.IncrementBonusConfigs"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET bonus_configs = bonus_configs + 1 WHERE account_id = $1`
	if _, err := s.DB.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountReferrals возвращает число пользователей, приглашённых данным аккаунтом.
func (s *Storage) CountReferrals(ctx context.Context, accountID int64) (int, error) {
	const op = "storage.CountReferrals"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM users WHERE referrer_id = $1`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ListUsers возвращает страницу пользователей по фильтру, сортировке и поиску
// вместе с общим числом подходящих записей.
func (s *Storage) ListUsers(ctx context.Context, q models.ListUsersQuery) ([]*models.User, int, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where := "TRUE"
	args := []any{}
	switch q.Filter {
	case models.FilterActive:
		where = "banned = FALSE"
	case models.FilterBanned:
		where = "banned = TRUE"
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where += fmt.Sprintf(` AND (CAST(account_id AS TEXT) ILIKE $%d
			OR handle ILIKE $%d OR display_name ILIKE $%d)`, len(args), len(args), len(args))
	}

	// Вторичный ключ сортировки — account_id, чтобы порядок был стабильным.
	orderBy := "created_at DESC, account_id"
	switch q.Sort {
	case models.SortCreatedAsc:
		orderBy = "created_at, account_id"
	case models.SortIDAsc:
		orderBy = "account_id"
	}

	countQuery := `SELECT COUNT(*) FROM users WHERE ` + where
	var total int
	if err := s.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	args = append(args, models.UsersPageSize, q.Page*models.UsersPageSize)
	query := fmt.Sprintf(`SELECT account_id, handle, display_name, created_at, banned, theme,
			      language, referral_code, referrer_id, bonus_configs
			  FROM users
			  WHERE %s
			  ORDER BY %s
			  LIMIT $%d OFFSET $%d`, where, orderBy, len(args)-1, len(args))
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return result, total, nil
}

// ListAllUsers возвращает всех пользователей без пагинации, для экспорта CSV.
func (s *Storage) ListAllUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListAllUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT account_id, handle, display_name, created_at, banned, theme,
			      language, referral_code, referrer_id, bonus_configs
			  FROM users
			  ORDER BY account_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveAccountIDs возвращает идентификаторы всех незаблокированных
// пользователей, получателей рассылки.
func (s *Storage) ListActiveAccountIDs(ctx context.Context) ([]int64, error) {
	const op = "storage.ListActiveAccountIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT account_id FROM users WHERE banned = FALSE ORDER BY account_id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var handle, displayName sql.NullString
	var referrerID sql.NullInt64
	var createdAt time.Time
	if err := row.Scan(&u.AccountID, &handle, &displayName, &createdAt, &u.Banned,
		&u.Theme, &u.Language, &u.ReferralCode, &referrerID, &u.BonusConfigs); err != nil {
		return nil, err
	}
	u.Handle = handle.String
	u.DisplayName = displayName.String
	u.CreatedAt = createdAt
	if referrerID.Valid {
		u.ReferrerID = &referrerID.Int64
	}
	return u, nil
}
