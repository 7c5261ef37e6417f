// Package services содержит логику бизнес-уровня управления тарифными планами:
// ручную активацию оплаченных планов, административную установку плана,
// выдачу и снятие банов. Каждая операция атомарна относительно записи
// пользователя и проверяет предусловия до записи.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chronosdev/chronos-backend/internal/lib/rabbitmq"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
	"github.com/chronosdev/chronos-backend/internal/services/access"
)

// Ошибки предусловий операций с планами.
var (
	// ErrInvalidInput — некорректный запрос: не указан или указан двойной
	// идентификатор, неподдерживаемый план, отсутствующая длительность.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserBanned — операция заблокирована действующим баном цели;
	// сначала требуется unban.
	ErrUserBanned = errors.New("user is banned, unban first")
)

// UserRepository описывает контракт хранилища для операций с планами.
type UserRepository interface {
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	UpdateUserPlan(ctx context.Context, userUID, plan string, expiresAt *time.Time, status string) error
	BanUser(ctx context.Context, userUID string, banUntil *time.Time, reason *string, bannedAt time.Time) error
	UnbanUser(ctx context.Context, userUID, status string) error
}

// EventPublisher публикует события жизненного цикла учётной записи.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Identifier задаёт цель операции: ровно одно из полей должно быть заполнено.
type Identifier struct {
	Email      string
	TelegramID *int64
}

// Service реализует операции жизненного цикла планов.
type Service struct {
	users  UserRepository
	events EventPublisher
	log    *slog.Logger
}

// New создает новый Service. events может быть nil — события тогда не публикуются.
func New(users UserRepository, events EventPublisher, log *slog.Logger) *Service {
	return &Service{users: users, events: events, log: log}
}

// resolveTarget находит пользователя по email либо telegram id.
func (s *Service) resolveTarget(ctx context.Context, ident Identifier) (*models.User, error) {
	hasEmail := ident.Email != ""
	hasTelegram := ident.TelegramID != nil
	if hasEmail == hasTelegram {
		return nil, fmt.Errorf("provide either email or telegram_id: %w", ErrInvalidInput)
	}
	if hasEmail {
		return s.users.GetUserByEmail(ctx, models.NormalizeEmail(ident.Email))
	}
	return s.users.GetUserByTelegramID(ctx, *ident.TelegramID)
}

// ActivatePaid активирует оплаченный план plus или premium на days дней.
//
// Отклоняет план free (trial выдаётся только при регистрации и вручную
// не назначается) и цель с действующим баном — перманентным либо
// временным с неистёкшим сроком. Успех: план, истечение now+days, статус active.
func (s *Service) ActivatePaid(ctx context.Context, ident Identifier, plan string, days int) (*models.User, error) {
	const op = "plan.ActivatePaid"

	if !models.IsPaidPlan(plan) {
		return nil, fmt.Errorf("%s: use plus or premium: %w", op, ErrInvalidInput)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%s: days must be positive: %w", op, ErrInvalidInput)
	}

	user, err := s.resolveTarget(ctx, ident)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := timeutil.Now()
	if access.IsBanned(user, now) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserBanned)
	}

	expiresAt := now.AddDate(0, 0, days)
	if err := s.users.UpdateUserPlan(ctx, user.UID, plan, &expiresAt, models.StatusActive); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user.Plan = plan
	user.PlanExpiresAt = &expiresAt
	user.Status = models.StatusActive

	s.publish(rabbitmq.RoutingPlanActivated, models.AccountEvent{
		EventID:    uuid.NewString(),
		UserUID:    user.UID,
		Plan:       plan,
		Status:     models.StatusActive,
		ExpiresAt:  &expiresAt,
		OccurredAt: now,
	})
	return user, nil
}

// SetPlan — административная установка плана по UID пользователя.
//
// expiresAt == nil означает план без даты истечения; допускается только
// для бутстрапа административных учёток, обычным пользователям шлюз
// доступа отсутствие даты трактует как inactive. Действующий бан цели,
// как и в ActivatePaid, блокирует операцию.
func (s *Service) SetPlan(ctx context.Context, userUID, plan string, expiresAt *time.Time) error {
	const op = "plan.SetPlan"

	if !models.IsKnownPlan(plan) {
		return fmt.Errorf("%s: unknown plan %q: %w", op, plan, ErrInvalidInput)
	}

	user, err := s.users.GetUserByUID(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := timeutil.Now()
	if access.IsBanned(user, now) {
		return fmt.Errorf("%s: %w", op, ErrUserBanned)
	}

	expiresAt = timeutil.EnsureUTCPtr(expiresAt)
	if err := s.users.UpdateUserPlan(ctx, user.UID, plan, expiresAt, models.StatusActive); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(rabbitmq.RoutingPlanActivated, models.AccountEvent{
		EventID:    uuid.NewString(),
		UserUID:    user.UID,
		Plan:       plan,
		Status:     models.StatusActive,
		ExpiresAt:  expiresAt,
		OccurredAt: now,
	})
	return nil
}

// Ban выдаёт бан пользователю, перезаписывая предыдущий.
//
// permanent=false требует days — срок в днях от текущего момента;
// permanent=true хранит NULL вместо даты окончания. Причина ограничена
// 300 символами. Статус всегда становится banned.
func (s *Service) Ban(ctx context.Context, userUID string, permanent bool, days int, reason *string) error {
	const op = "plan.Ban"

	if !permanent && days <= 0 {
		return fmt.Errorf("%s: days is required unless permanent: %w", op, ErrInvalidInput)
	}
	if reason != nil && len([]rune(*reason)) > 300 {
		return fmt.Errorf("%s: reason exceeds 300 chars: %w", op, ErrInvalidInput)
	}

	user, err := s.users.GetUserByUID(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := timeutil.Now()
	var banUntil *time.Time
	if !permanent {
		until := now.AddDate(0, 0, days)
		banUntil = &until
	}

	if err := s.users.BanUser(ctx, user.UID, banUntil, reason, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(rabbitmq.RoutingUserBanned, models.AccountEvent{
		EventID:    uuid.NewString(),
		UserUID:    user.UID,
		Status:     models.StatusBanned,
		ExpiresAt:  banUntil,
		OccurredAt: now,
	})
	return nil
}

// Unban снимает бан: очищает срок, причину и момент выдачи, а статус
// пересчитывает по плану — active при действующей дате истечения,
// иначе inactive. Состояния trial и banned из этой операции невозможны:
// пересчёт отвечает только на вопрос "действует ли план сейчас".
func (s *Service) Unban(ctx context.Context, userUID string) (string, error) {
	const op = "plan.Unban"

	user, err := s.users.GetUserByUID(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := timeutil.Now()
	status := models.StatusInactive
	if access.HasActivePlan(user, now) {
		status = models.StatusActive
	}

	if err := s.users.UnbanUser(ctx, user.UID, status); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.publish(rabbitmq.RoutingUserUnbanned, models.AccountEvent{
		EventID:    uuid.NewString(),
		UserUID:    user.UID,
		Status:     status,
		OccurredAt: now,
	})
	return status, nil
}

// Lookup возвращает пользователя по email либо telegram id для панели
// администратора.
func (s *Service) Lookup(ctx context.Context, ident Identifier) (*models.User, error) {
	const op = "plan.Lookup"
	user, err := s.resolveTarget(ctx, ident)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Service) publish(routingKey string, event models.AccountEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(routingKey, event); err != nil {
		s.log.Error("failed to publish account event",
			slog.String("routing_key", routingKey),
			sl.Err(err))
	}
}
