// Package models содержит доменную модель пользователя сервиса сигналов:
// учётные данные, тарифный план, статус доступа, сведения о бане
// и привязанный Telegram-аккаунт. Структуры используются в бизнес‑логике
// и при работе с хранилищем.
package models

import (
	"strings"
	"time"
)

// Возможные тарифные планы пользователя.
const (
	PlanFree    = "free"
	PlanPlus    = "plus"
	PlanPremium = "premium"
)

// Возможные статусы учётной записи.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBanned   = "banned"
)

// User представляет зарегистрированного пользователя сервиса.
//
// Поля PlanExpiresAt и BanUntil могут быть nil: отсутствие даты окончания
// плана означает "право доступа не зафиксировано" (не "бессрочный доступ"),
// отсутствие даты окончания бана при статусе banned — перманентный бан.
type User struct {
	UID              string     // Уникальный идентификатор пользователя
	Email            string     // Электронная почта (уникальная, в нижнем регистре)
	PasswordHash     string     // Хэш пароля пользователя
	Plan             string     // Тарифный план: free, plus или premium
	PlanExpiresAt    *time.Time // Дата истечения плана (trial или оплаченного)
	Status           string     // Статус доступа: active, inactive или banned
	TrialUsed        bool       // Был ли выдан пробный период
	IsAdmin          bool       // Признак администратора
	BanUntil         *time.Time // Дата окончания временного бана, nil — перманентный
	BanReason        *string    // Причина бана
	BannedAt         *time.Time // Момент выдачи бана
	TelegramID       *int64     // Привязанный Telegram ID
	TelegramUsername *string    // Username в Telegram
	TelegramLinked   bool       // Завершена ли привязка Telegram
	TelegramLinkedAt *time.Time // Момент привязки Telegram
	CreatedAt        time.Time  // Момент регистрации
}

// NormalizeEmail приводит email к каноническому виду: обрезает пробелы
// и опускает регистр. Пользователь хранится и ищется по этой форме,
// независимо от того, какой регистр прислал вызывающий.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsPaidPlan сообщает, относится ли план к оплачиваемым (plus или premium).
func IsPaidPlan(plan string) bool {
	return plan == PlanPlus || plan == PlanPremium
}

// IsKnownPlan сообщает, входит ли план в список поддерживаемых.
func IsKnownPlan(plan string) bool {
	return plan == PlanFree || plan == PlanPlus || plan == PlanPremium
}
