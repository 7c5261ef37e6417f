// Package access содержит логику определения состояния учётной записи
// и контроля доступа к защищённым операциям.
//
// ResolveState — чистая функция без побочных эффектов: запись пользователя
// и текущий момент времени отображаются в одно из четырёх состояний.
// Gate применяет эти состояния к запросу с учётом приоритета бана,
// привилегий администратора и ленивой деактивации по истечении плана.
package access

import (
	"time"

	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
)

// State — вычисленное состояние учётной записи.
type State string

// Возможные состояния учётной записи.
const (
	StateActive   State = "active"   // Оплаченный план действует
	StateTrial    State = "trial"    // Пробный период действует
	StateInactive State = "inactive" // Права доступа нет либо она истекла
	StateBanned   State = "banned"   // Действующий бан, перманентный или временный
)

// ResolveState вычисляет состояние учётной записи на момент now.
//
// Порядок проверок фиксирован, первая сработавшая определяет результат:
//
//  1. Статус banned: без даты окончания — перманентный бан; с датой в
//     будущем — действующий временный бан. Истёкший временный бан сам по
//     себе состояние banned не даёт, но и active не возвращает — запись
//     проходит оценку плана как обычная ("истёк, но не снят": поля бана
//     очищает только явный unban).
//  2. План free: дата истечения в будущем — trial, иначе inactive.
//  3. План plus/premium: дата истечения в будущем — active, иначе inactive.
//
// Отсутствующая дата истечения при любом плане всегда даёт inactive:
// пробел в данных не должен превращаться в бессрочный доступ.
func ResolveState(u *models.User, now time.Time) State {
	now = timeutil.EnsureUTC(now)

	if u.Status == models.StatusBanned {
		if u.BanUntil == nil {
			return StateBanned
		}
		if timeutil.EnsureUTC(*u.BanUntil).After(now) {
			return StateBanned
		}
		// Бан истёк — оцениваем план, как если бы статуса banned не было.
	}

	if u.PlanExpiresAt == nil {
		return StateInactive
	}
	expiresAt := timeutil.EnsureUTC(*u.PlanExpiresAt)
	if !expiresAt.After(now) {
		return StateInactive
	}

	if u.Plan == models.PlanFree {
		return StateTrial
	}
	return StateActive
}

// HasActivePlan сообщает, действует ли у пользователя план на момент now,
// без учёта бана. Используется при снятии бана для пересчёта статуса:
// active или inactive, никогда trial и banned.
func HasActivePlan(u *models.User, now time.Time) bool {
	if u.PlanExpiresAt == nil {
		return false
	}
	return timeutil.EnsureUTC(*u.PlanExpiresAt).After(timeutil.EnsureUTC(now))
}

// IsBanned сообщает, действует ли бан на момент now: перманентный либо
// временный с датой окончания в будущем.
func IsBanned(u *models.User, now time.Time) bool {
	if u.Status != models.StatusBanned {
		return false
	}
	if u.BanUntil == nil {
		return true
	}
	return timeutil.EnsureUTC(*u.BanUntil).After(timeutil.EnsureUTC(now))
}
