// Package lookup реализует административный поиск пользователя
// по email или по telegram id.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
	"github.com/chronosdev/chronos-backend/internal/services/access"
	planservice "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Request описывает тело запроса поиска: ровно один идентификатор.
type Request struct {
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	TelegramID *int64 `json:"telegram_id,omitempty"`
}

// UserOut — сериализуемая запись пользователя для ответа администратору.
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
	BannedAt         *time.Time `json:"banned_at,omitempty"`
	TelegramID       *int64     `json:"telegram_id,omitempty"`
	TelegramUsername *string    `json:"telegram_username,omitempty"`
	TelegramLinked   bool       `json:"telegram_linked"`
	CreatedAt        time.Time  `json:"created_at"`
	AccountState     string     `json:"account_state"`
}

// Service описывает интерфейс поиска пользователя.
type Service interface {
	Lookup(ctx context.Context, ident planservice.Identifier) (*models.User, error)
}

// Handler управляет HTTP-запросами поиска.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Найти пользователя
// @Description Ищет запись пользователя по email или telegram id. Ровно один идентификатор обязателен.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Идентификатор пользователя"
// @Success 200 {object} UserOut
// @Failure 400 {object} response.ErrorResponse "Некорректный идентификатор"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/lookup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.lookup"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, err := h.service.Lookup(r.Context(), planservice.Identifier{
		Email:      req.Email,
		TelegramID: req.TelegramID,
	})
	if err != nil {
		switch {
		case errors.Is(err, planservice.ErrInvalidInput):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("provide either email or telegram_id"))
		case errors.Is(err, storage.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("lookup failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to lookup user"))
		}
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
		BannedAt:         timeutil.EnsureUTCPtr(u.BannedAt),
		TelegramID:       u.TelegramID,
		TelegramUsername: u.TelegramUsername,
		TelegramLinked:   u.TelegramLinked,
		CreatedAt:        timeutil.EnsureUTC(u.CreatedAt),
		AccountState:     string(access.ResolveState(u, timeutil.Now())),
	}
}
