// Package setplan реализует прямое административное назначение плана
// пользователю по его uid.
package setplan

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/lib/timeutil"
	planservice "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Request описывает тело запроса назначения плана. Срок задается либо
// явной меткой expires_at, либо числом дней от текущего момента;
// отсутствие обоих означает бессрочный план без права доступа.
type Request struct {
	Plan      string     `json:"plan" validate:"required,oneof=free plus premium"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Days      *int       `json:"days,omitempty" validate:"omitempty,min=1"`
}

// Service описывает интерфейс назначения плана.
type Service interface {
	SetPlan(ctx context.Context, userUID, plan string, expiresAt *time.Time) error
}

// Handler управляет HTTP-запросами назначения плана.
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
// @Summary Назначить план пользователю
// @Description Устанавливает план и срок его действия по uid. Забаненная цель отклоняется.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "UID пользователя"
// @Param request body Request true "План и срок действия"
// @Success 200 {object} map[string]any "Итоговые план и срок"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Цель забанена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{id}/plan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.setplan"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(userUID); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

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

	if req.ExpiresAt != nil && req.Days != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("provide either expires_at or days, not both"))
		return
	}

	expiresAt := timeutil.EnsureUTCPtr(req.ExpiresAt)
	if req.Days != nil {
		t := timeutil.Now().AddDate(0, 0, *req.Days)
		expiresAt = &t
	}

	if err := h.service.SetPlan(r.Context(), userUID, req.Plan, expiresAt); err != nil {
		switch {
		case errors.Is(err, planservice.ErrInvalidInput):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown plan"))
		case errors.Is(err, storage.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		case errors.Is(err, planservice.ErrUserBanned):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("user is banned, unban first"))
		default:
			log.Error("failed to set plan", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to set plan"))
		}
		return
	}

	log.Info("plan updated",
		slog.String("user_uid", userUID),
		slog.String("plan", req.Plan))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid":        userUID,
		"plan":            req.Plan,
		"plan_expires_at": expiresAt,
	}))
}
