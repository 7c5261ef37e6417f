// Package timeutil задаёт единое представление времени для всей системы.
//
// Все решения о доступе сравнивают метки времени только в UTC. Хранилище
// может вернуть метку без информации о зоне — такая метка считается UTC
// и помечается соответствующе до любого сравнения.
package timeutil

import "time"

// Now возвращает текущее время в UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// EnsureUTC приводит метку времени к UTC. Метка с "нулевой" зоной
// трактуется как UTC, метка в другой зоне конвертируется.
func EnsureUTC(t time.Time) time.Time {
	if t.Location() == time.UTC {
		return t
	}
	return t.UTC()
}

// EnsureUTCPtr — вариант EnsureUTC для опциональных меток.
func EnsureUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := EnsureUTC(*t)
	return &u
}
