// Package services содержит логику бизнес-уровня для регистрации и входа пользователей.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/chronosdev/chronos-backend/internal/lib/jwt"
	"github.com/chronosdev/chronos-backend/internal/lib/password"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
)

// ErrInvalidCredentials — email не найден либо пароль не подошёл.
// Оба случая намеренно неразличимы для вызывающей стороны.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)

	// GetUserByEmail возвращает пользователя по email или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthService отвечает за регистрацию, вход и выдачу JWT.
type AuthService struct {
	users     UserRepository
	jwtMaker  jwt.Maker
	trialDays int
}

// NewAuthService создает новый экземпляр AuthService.
// trialDays — длительность пробного периода, выдаваемого при регистрации.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, trialDays int) *AuthService {
	return &AuthService{
		users:     users,
		jwtMaker:  jwtMaker,
		trialDays: trialDays,
	}
}

// Register создает нового пользователя и выдаёт ему пробный период:
// план free, истечение через trialDays, статус active, trial_used = true.
// Выдача происходит ровно один раз — повторная регистрация того же email
// невозможна из-за уникального индекса. Возвращает токен доступа.
func (s *AuthService) Register(ctx context.Context, email, rawPassword string) (string, error) {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", err
	}
	now := timeutil.Now()
	trialExpiresAt := now.AddDate(0, 0, s.trialDays)
	user := models.User{
		Email:         models.NormalizeEmail(email),
		PasswordHash:  hashed,
		Plan:          models.PlanFree,
		PlanExpiresAt: &trialExpiresAt,
		Status:        models.StatusActive,
		TrialUsed:     true,
		CreatedAt:     now,
	}
	userUID, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return "", err
	}
	return s.jwtMaker.GenerateToken(userUID, false)
}

// RegisterAdmin создаёт администратора: план premium без даты истечения.
// Используется только при бутстрапе из конфига на старте.
func (s *AuthService) RegisterAdmin(ctx context.Context, email, rawPassword string) (string, error) {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", err
	}
	user := models.User{
		Email:        models.NormalizeEmail(email),
		PasswordHash: hashed,
		Plan:         models.PlanPremium,
		Status:       models.StatusActive,
		IsAdmin:      true,
		CreatedAt:    timeutil.Now(),
	}
	return s.users.CreateUser(ctx, user)
}

// Login проверяет пароль пользователя и генерирует JWT.
// Ограничения доступа (бан, истёкший план) на вход не влияют:
// их применяет Gate при обращении к защищённым операциям.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.jwtMaker.GenerateToken(user.UID, user.IsAdmin)
}

// ValidateToken проверяет JWT и возвращает claims, если токен корректен.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	const op = "auth.ValidateToken"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}
