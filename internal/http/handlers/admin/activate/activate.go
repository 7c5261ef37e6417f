// Package activate реализует административную активацию платного плана
// по email или telegram id цели.
package activate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	"github.com/chronosdev/chronos-backend/internal/models"
	planservice "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Request описывает тело запроса на активацию платного плана.
type Request struct {
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	TelegramID *int64 `json:"telegram_id,omitempty"`
	Plan       string `json:"plan" validate:"required,oneof=plus premium"`
	Days       int    `json:"days,omitempty" validate:"omitempty,min=1,max=365"`
}

// Service описывает интерфейс активации платного плана.
type Service interface {
	ActivatePaid(ctx context.Context, ident planservice.Identifier, plan string, days int) (*models.User, error)
}

// Handler управляет HTTP-запросами активации.
type Handler struct {
	log         *slog.Logger
	service     Service
	defaultDays int
	validate    *validator.Validate
}

// New создает новый Handler. defaultDays подставляется, когда срок
// в запросе не указан.
func New(log *slog.Logger, service Service, defaultDays int) *Handler {
	return &Handler{
		log:         log,
		service:     service,
		defaultDays: defaultDays,
		validate:    validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Активировать платный план
// @Description Включает plus или premium на заданное число дней от текущего момента. Забаненная цель отклоняется.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Цель, план и срок в днях"
// @Success 200 {object} map[string]any "Итоговые план, срок и статус"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Цель забанена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/plan/activate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.activate"

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

	days := req.Days
	if days == 0 {
		days = h.defaultDays
	}

	user, err := h.service.ActivatePaid(r.Context(), planservice.Identifier{
		Email:      req.Email,
		TelegramID: req.TelegramID,
	}, req.Plan, days)
	if err != nil {
		switch {
		case errors.Is(err, planservice.ErrInvalidInput):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid activation request"))
		case errors.Is(err, storage.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		case errors.Is(err, planservice.ErrUserBanned):
			log.Info("activation rejected, target is banned")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("user is banned, unban first"))
		default:
			log.Error("activation failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to activate plan"))
		}
		return
	}

	log.Info("paid plan activated",
		slog.String("user_uid", user.UID),
		slog.String("plan", user.Plan))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid":        user.UID,
		"plan":            user.Plan,
		"plan_expires_at": timeutil.EnsureUTCPtr(user.PlanExpiresAt),
		"status":          user.Status,
	}))
}
