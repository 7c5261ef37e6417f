// Package services содержит логику бизнес-уровня привязки Telegram-аккаунта:
// выдачу одноразовых кодов с ограниченным сроком жизни и их погашение
// внешней стороной (ботом) по общему секрету.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/chronosdev/chronos-backend/internal/cache"
	"github.com/chronosdev/chronos-backend/internal/lib/rabbitmq"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
)

// Ошибки погашения кода.
var (
	// ErrUnauthorized — секрет не настроен либо не совпал.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCodeNotFound — код неизвестен, уже погашен либо истёк;
	// случаи намеренно неразличимы, чтобы не раскрывать срок жизни кодов.
	ErrCodeNotFound = errors.New("invalid or expired code")
)

const (
	codeLength   = 8
	codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeStore — контракт хранилища одноразовых кодов.
type CodeStore interface {
	// SaveLinkCode сохраняет код с TTL; false — код уже занят.
	SaveLinkCode(ctx context.Context, code, userUID string, ttl time.Duration) (bool, error)
	// ConsumeLinkCode атомарно изымает код и возвращает UID владельца.
	ConsumeLinkCode(ctx context.Context, code string) (string, error)
}

// UserLinker — контракт записи привязки в запись пользователя.
type UserLinker interface {
	LinkTelegram(ctx context.Context, userUID string, telegramID int64, telegramUsername *string, linkedAt time.Time) error
}

// EventPublisher публикует события жизненного цикла учётной записи.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// IssuedCode — результат выдачи кода.
type IssuedCode struct {
	Code             string
	ExpiresInSeconds int
	DeepLink         string
}

// Service реализует выдачу и погашение кодов привязки.
type Service struct {
	codes       CodeStore
	users       UserLinker
	events      EventPublisher
	botUsername string
	linkSecret  string
	codeTTL     time.Duration
	log         *slog.Logger
}

// New создает новый Service привязки Telegram.
// events может быть nil — события тогда не публикуются.
func New(codes CodeStore, users UserLinker, events EventPublisher, botUsername, linkSecret string, codeTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		codes:       codes,
		users:       users,
		events:      events,
		botUsername: botUsername,
		linkSecret:  linkSecret,
		codeTTL:     codeTTL,
		log:         log,
	}
}

// IssueCode выдаёт пользователю одноразовый код привязки.
//
// Код уникален среди активных: коллизия с живым кодом разрешается одной
// повторной генерацией. Возвращает код, остаток срока жизни в секундах
// и deep link для бота.
func (s *Service) IssueCode(ctx context.Context, userUID string) (*IssuedCode, error) {
	const op = "link.IssueCode"

	for attempt := 0; attempt < 2; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		stored, err := s.codes.SaveLinkCode(ctx, code, userUID, s.codeTTL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !stored {
			continue
		}
		return &IssuedCode{
			Code:             code,
			ExpiresInSeconds: int(s.codeTTL.Seconds()),
			DeepLink:         fmt.Sprintf("https://t.me/%s?start=link_%s", s.botUsername, code),
		}, nil
	}
	return nil, fmt.Errorf("%s: code collision retry exhausted", op)
}

// Redeem погашает код от имени внешней системы (бота).
//
// Вызывающая сторона предъявляет общий секрет, переданный вне полосы —
// этот путь не привязан к сессии пользователя. Несовпадение секрета или
// пустой настроенный секрет дают ErrUnauthorized. Код одноразовый:
// повторное погашение возвращает ErrCodeNotFound. Успех записывает
// telegram id, username, флаг и момент привязки в запись владельца.
func (s *Service) Redeem(ctx context.Context, code string, telegramID int64, telegramUsername *string, secret string) (string, error) {
	const op = "link.Redeem"

	if s.linkSecret == "" || secret != s.linkSecret {
		return "", fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	userUID, err := s.codes.ConsumeLinkCode(ctx, code)
	if err != nil {
		if errors.Is(err, cache.ErrLinkCodeNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrCodeNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// Код уже изъят: повторное погашение невозможно, неудачная запись
	// полей пользователя повторяется только новым кодом.
	now := timeutil.Now()
	if err := s.users.LinkTelegram(ctx, userUID, telegramID, telegramUsername, now); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.events != nil {
		event := models.AccountEvent{
			EventID:    uuid.NewString(),
			UserUID:    userUID,
			OccurredAt: now,
		}
		if err := s.events.Publish(rabbitmq.RoutingTelegramLinked, event); err != nil {
			s.log.Error("failed to publish account event",
				slog.String("op", op),
				sl.Err(err))
		}
	}

	s.log.Info("telegram account linked",
		slog.String("op", op),
		slog.String("user_uid", userUID),
		slog.Int64("telegram_id", telegramID))
	return userUID, nil
}

// randomCode генерирует короткий код для deep-link /start link_<code>.
func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	maxIdx := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, maxIdx)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
