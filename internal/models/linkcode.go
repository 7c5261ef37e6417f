package models

import "time"

// LinkCode описывает одноразовый код привязки Telegram-аккаунта.
// Запись эфемерна: живёт в хранилище до истечения TTL либо до первого
// успешного погашения.
type LinkCode struct {
	Code      string    // Короткий случайный код
	UserUID   string    // Владелец кода
	ExpiresAt time.Time // Момент истечения
}

// AccountEvent — событие жизненного цикла учётной записи,
// публикуемое в брокер для внешних потребителей (бот, уведомления).
type AccountEvent struct {
	EventID    string     `json:"event_id"`
	UserUID    string     `json:"user_uid"`
	Plan       string     `json:"plan,omitempty"`
	Status     string     `json:"status,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
