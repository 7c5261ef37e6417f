package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
)

// Причины отказа в доступе. Обработчики сверяют их через errors.Is
// и транслируют в HTTP 403.
var (
	// ErrBanned — действующий бан; бьёт в том числе администраторов.
	ErrBanned = errors.New("user banned")
	// ErrPlanInactive — права доступа нет: статус inactive либо
	// отсутствует дата истечения плана.
	ErrPlanInactive = errors.New("plan inactive")
	// ErrPlanExpired — план истёк; статус переведён в inactive.
	ErrPlanExpired = errors.New("plan expired")
)

// StatusUpdater — контракт на ленивую запись статуса в хранилище.
type StatusUpdater interface {
	UpdateUserStatus(ctx context.Context, userUID, status string) error
}

// Gate решает, допускать ли пользователя к защищённой операции.
type Gate struct {
	users StatusUpdater
	log   *slog.Logger
}

// NewGate создает новый Gate с переданным хранилищем и логгером.
func NewGate(users StatusUpdater, log *slog.Logger) *Gate {
	return &Gate{users: users, log: log}
}

// Authorize выполняет проверки доступа в фиксированном порядке:
//
//  1. Действующий бан — отказ ErrBanned. Проверка применяется и к
//     администраторам: привилегия админа бан не перекрывает.
//  2. Администратор — допуск без проверок плана и истечения.
//  3. Статус inactive — отказ ErrPlanInactive без дальнейших проверок.
//  4. Отсутствует дата истечения плана — статус переводится в inactive
//     (корректирующая запись для данных без даты), отказ ErrPlanInactive.
//  5. Дата истечения в прошлом — статус переводится в inactive,
//     отказ ErrPlanExpired. Иначе допуск.
//
// Запись статуса на шагах 4–5 позволяет последующим запросам срезаться
// на шаге 3 без повторной оценки даты, а операции снятия бана — видеть
// актуальный статус. Ошибка записи логируется и не меняет исход: отказ
// уже принят по данным записи.
func (g *Gate) Authorize(ctx context.Context, u *models.User, now time.Time) error {
	const op = "access.Authorize"
	now = timeutil.EnsureUTC(now)

	if IsBanned(u, now) {
		return ErrBanned
	}

	if u.IsAdmin {
		return nil
	}

	if u.Status == models.StatusInactive {
		return ErrPlanInactive
	}

	if u.PlanExpiresAt == nil {
		g.deactivate(ctx, op, u)
		return ErrPlanInactive
	}

	if !timeutil.EnsureUTC(*u.PlanExpiresAt).After(now) {
		g.deactivate(ctx, op, u)
		return ErrPlanExpired
	}

	return nil
}

func (g *Gate) deactivate(ctx context.Context, op string, u *models.User) {
	if err := g.users.UpdateUserStatus(ctx, u.UID, models.StatusInactive); err != nil {
		g.log.Error("failed to persist inactive status",
			slog.String("op", op),
			slog.String("user_uid", u.UID),
			sl.Err(err))
	}
}
