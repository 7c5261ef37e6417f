// Package unban реализует снятие бана с пользователя с пересчетом
// статуса учётной записи.
package unban

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// Service описывает интерфейс снятия бана.
type Service interface {
	Unban(ctx context.Context, userUID string) (string, error)
}

// Handler управляет HTTP-запросами снятия бана.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Снять бан с пользователя
// @Description Очищает поля бана и пересчитывает статус по текущему плану.
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param id path string true "UID пользователя"
// @Success 200 {object} map[string]any "Итоговый статус"
// @Failure 400 {object} response.ErrorResponse "Некорректный uid"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{id}/unban [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.unban"

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

	status, err := h.service.Unban(r.Context(), userUID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("failed to unban user", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to unban user"))
		}
		return
	}

	log.Info("user unbanned",
		slog.String("user_uid", userUID),
		slog.String("status", status))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid": userUID,
		"status":   status,
	}))
}
