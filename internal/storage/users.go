package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chronosdev/chronos-backend/internal/models"
)

const userColumns = `uid, email, password_hash, plan, plan_expires_at, status,
			      trial_used, is_admin, ban_until, ban_reason, banned_at,
			      telegram_id, telegram_username, telegram_linked, telegram_linked_at, created_at`

// uniqueViolation — код SQLSTATE нарушения уникального индекса.
const uniqueViolation = "23505"

// CreateUser сохраняет нового пользователя и возвращает его UID.
// Дубликат email (в том числе при гонке двух регистраций) превращается
// в ErrEmailTaken.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (email, password_hash, plan, plan_expires_at, status,
			      trial_used, is_admin, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Plan, user.PlanExpiresAt, user.Status,
		user.TrialUsed, user.IsAdmin, user.CreatedAt).Scan(&newUID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByEmail возвращает пользователя по email (в нижнем регистре).
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1`
	return s.queryUser(ctx, op, query, email)
}

// GetUserByUID возвращает пользователя по его UID.
func (s *Storage) GetUserByUID(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUserByUID"
	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid = $1`
	return s.queryUser(ctx, op, query, userUID)
}

// GetUserByTelegramID возвращает пользователя по привязанному Telegram ID.
// Индекс неуникальный: при дубликатах берётся первая найденная запись.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE telegram_id = $1
			  LIMIT 1`
	return s.queryUser(ctx, op, query, telegramID)
}

func (s *Storage) queryUser(ctx context.Context, op, query string, arg any) (*models.User, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, arg)

	var planExpiresAt, banUntil, bannedAt, telegramLinkedAt sql.NullTime
	var banReason, telegramUsername sql.NullString
	var telegramID sql.NullInt64
	if err := row.Scan(&u.UID, &u.Email, &u.PasswordHash, &u.Plan, &planExpiresAt,
		&u.Status, &u.TrialUsed, &u.IsAdmin, &banUntil, &banReason, &bannedAt,
		&telegramID, &telegramUsername, &u.TelegramLinked, &telegramLinkedAt,
		&u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if planExpiresAt.Valid {
		u.PlanExpiresAt = &planExpiresAt.Time
	}
	if banUntil.Valid {
		u.BanUntil = &banUntil.Time
	}
	if bannedAt.Valid {
		u.BannedAt = &bannedAt.Time
	}
	if telegramLinkedAt.Valid {
		u.TelegramLinkedAt = &telegramLinkedAt.Time
	}
	if banReason.Valid {
		u.BanReason = &banReason.String
	}
	if telegramUsername.Valid {
		u.TelegramUsername = &telegramUsername.String
	}
	if telegramID.Valid {
		u.TelegramID = &telegramID.Int64
	}
	return u, nil
}

// UpdateUserStatus выставляет статус пользователя. Запись идемпотентна:
// гонка нескольких запросов одного и того же истёкшего пользователя
// безопасна, целевое значение всегда одно.
func (s *Storage) UpdateUserStatus(ctx context.Context, userUID, status string) error {
	const op = "storage.UpdateUserStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET status = $1
			  WHERE uid = $2`
	res, err := s.DB.ExecContext(ctx, query, status, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.requireAffected(op, res)
}

// UpdateUserPlan применяет план с датой истечения (nil — без даты) и статусом.
func (s *Storage) UpdateUserPlan(ctx context.Context, userUID, plan string, expiresAt *time.Time, status string) error {
	const op = "storage.UpdateUserPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET plan = $1,
			      plan_expires_at = $2,
			      status = $3
			  WHERE uid = $4`
	res, err := s.DB.ExecContext(ctx, query, plan, expiresAt, status, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.requireAffected(op, res)
}

// BanUser выставляет бан: статус banned, срок (nil — перманентный),
// причину и момент выдачи. Перезаписывает предыдущий бан целиком.
func (s *Storage) BanUser(ctx context.Context, userUID string, banUntil *time.Time, reason *string, bannedAt time.Time) error {
	const op = "storage.BanUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET status = $1,
			      ban_until = $2,
			      ban_reason = $3,
			      banned_at = $4
			  WHERE uid = $5`
	res, err := s.DB.ExecContext(ctx, query, models.StatusBanned, banUntil, reason, bannedAt, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.requireAffected(op, res)
}

// UnbanUser очищает поля бана и выставляет пересчитанный статус.
func (s *Storage) UnbanUser(ctx context.Context, userUID, status string) error {
	const op = "storage.UnbanUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET status = $1,
			      ban_until = NULL,
			      ban_reason = NULL,
			      banned_at = NULL
			  WHERE uid = $2`
	res, err := s.DB.ExecContext(ctx, query, status, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.requireAffected(op, res)
}

// LinkTelegram записывает привязанный Telegram-аккаунт пользователя.
// Повторная привязка перезаписывает прежние значения (last-write-wins).
func (s *Storage) LinkTelegram(ctx context.Context, userUID string, telegramID int64, telegramUsername *string, linkedAt time.Time) error {
	const op = "storage.LinkTelegram"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET telegram_id = $1,
			      telegram_username = $2,
			      telegram_linked = TRUE,
			      telegram_linked_at = $3
			  WHERE uid = $4`
	res, err := s.DB.ExecContext(ctx, query, telegramID, telegramUsername, linkedAt, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.requireAffected(op, res)
}

func (s *Storage) requireAffected(op string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
