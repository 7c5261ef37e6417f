// Package middlewarectx содержит HTTP middleware защищённой группы маршрутов.
//
// AuthMiddleware проверяет JWT в заголовке Authorization, загружает запись
// пользователя из хранилища и пропускает её через шлюз доступа: действующий
// бан и неактивный или истёкший план отклоняют запрос до обработчика.
// Прошедший проверку пользователь кладётся в контекст запроса.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/jwt"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
	"github.com/chronosdev/chronos-backend/internal/services/access"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// CurrentUser — ключ для записи пользователя в контексте.
const CurrentUser Key = "current_user"

// TokenParser описывает интерфейс проверки токена доступа.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// UserProvider описывает интерфейс загрузки пользователя из хранилища.
type UserProvider interface {
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
}

// AuthMiddleware возвращает HTTP middleware, который проверяет JWT,
// загружает пользователя и применяет шлюз доступа.
//
// Невалидный токен и отсутствующий пользователь дают 401, отказ шлюза
// (бан, неактивный или истёкший план) — 403.
func AuthMiddleware(tokens TokenParser, users UserProvider, gate *access.Gate, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AuthMiddleware"
			authHeader := r.Header.Get("Authorization")

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := tokens.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			user, err := users.GetUserByUID(r.Context(), claims.UserUID)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					log.Error("token subject not found", slog.String("user_uid", claims.UserUID))
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("user not found"))
					return
				}
				log.Error("failed to load user", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			if err := gate.Authorize(r.Context(), user, timeutil.Now()); err != nil {
				log.Info("access denied", slog.String("user_uid", user.UID), sl.Err(err))
				render.Status(r, http.StatusForbidden)
				switch {
				case errors.Is(err, access.ErrBanned):
					render.JSON(w, r, response.Error("user banned"))
				case errors.Is(err, access.ErrPlanExpired):
					render.JSON(w, r, response.Error("plan expired"))
				default:
					render.JSON(w, r, response.Error("plan inactive"))
				}
				return
			}

			ctx := context.WithValue(r.Context(), CurrentUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext возвращает пользователя, положенного AuthMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(CurrentUser).(*models.User)
	return user, ok
}
