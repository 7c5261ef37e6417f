// Package ban реализует административный бан пользователя,
// постоянный или на заданное число дней.
package ban

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	planservice "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Request описывает тело запроса бана. Без permanent поле days обязательно.
type Request struct {
	Permanent bool    `json:"permanent"`
	Days      int     `json:"days,omitempty" validate:"omitempty,min=1,max=3650"`
	Reason    *string `json:"reason,omitempty" validate:"omitempty,max=300"`
}

// Service описывает интерфейс бана пользователя.
type Service interface {
	Ban(ctx context.Context, userUID string, permanent bool, days int, reason *string) error
}

// Handler управляет HTTP-запросами бана.
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
// @Summary Забанить пользователя
// @Description Блокирует учётную запись постоянно или до истечения заданного числа дней.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "UID пользователя"
// @Param request body Request true "Срок и причина бана"
// @Success 200 {object} map[string]any "Подтверждение бана"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{id}/ban [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.ban"

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

	if err := h.service.Ban(r.Context(), userUID, req.Permanent, req.Days, req.Reason); err != nil {
		switch {
		case errors.Is(err, planservice.ErrInvalidInput):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("days is required unless permanent"))
		case errors.Is(err, storage.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("failed to ban user", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to ban user"))
		}
		return
	}

	log.Info("user banned",
		slog.String("user_uid", userUID),
		slog.Bool("permanent", req.Permanent))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid":  userUID,
		"banned":    true,
		"permanent": req.Permanent,
	}))
}
