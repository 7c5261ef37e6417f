// Package me реализует HTTP-обработчик профиля текущего пользователя.
//
// Возвращает запись без хэша пароля и с вычисленным состоянием учётной
// записи; все метки времени нормализуются к UTC перед сериализацией.
package me

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/chronosdev/chronos-backend/internal/http/middlewarectx"
	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
	"github.com/chronosdev/chronos-backend/internal/services/access"
)

// UserOut — сериализуемый профиль пользователя.
type UserOut struct {
	UID              string     `json:"uid"`
	Email            string     `json:"email"`
	Plan             string     `json:"plan"`
	PlanExpiresAt    *time.Time `json:"plan_expires_at,omitempty"`
	Status           string     `json:"status"`
	TrialUsed        bool       `json:"trial_used"`
	IsAdmin          bool       `json:"is_admin"`
	BanUntil         *time.Time `json:"ban_until,omitempty"`
	BanReason        *string    `json:"ban_reason,omitempty"`
	TelegramID       *int64     `json:"telegram_id,omitempty"`
	TelegramUsername *string    `json:"telegram_username,omitempty"`
	TelegramLinked   bool       `json:"telegram_linked"`
	TelegramLinkedAt *time.Time `json:"telegram_linked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	AccountState     string     `json:"account_state"`
}

// Handler управляет HTTP-запросами профиля.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Профиль текущего пользователя
// @Description Возвращает запись пользователя и вычисленное состояние учётной записи.
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} UserOut
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	render.JSON(w, r, response.OKWithData(toUserOut(user)))
}

func toUserOut(u *models.User) UserOut {
	return UserOut{
		UID:              u.UID,
		Email:            u.Email,
		Plan:             u.Plan,
		PlanExpiresAt:    timeutil.EnsureUTCPtr(u.PlanExpiresAt),
		Status:           u.Status,
		TrialUsed:        u.TrialUsed,
		IsAdmin:          u.IsAdmin,
		BanUntil:         timeutil.EnsureUTCPtr(u.BanUntil),
		BanReason:        u.BanReason,
		TelegramID:       u.TelegramID,
		TelegramUsername: u.TelegramUsername,
		TelegramLinked:   u.TelegramLinked,
		TelegramLinkedAt: timeutil.EnsureUTCPtr(u.TelegramLinkedAt),
		CreatedAt:        timeutil.EnsureUTC(u.CreatedAt),
		AccountState:     string(access.ResolveState(u, timeutil.Now())),
	}
}
