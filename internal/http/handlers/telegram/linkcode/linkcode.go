// Package linkcode реализует HTTP-обработчик выдачи одноразового кода
// привязки Telegram текущему пользователю.
package linkcode

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/chronosdev/chronos-backend/internal/http/middlewarectx"
	"github.com/chronosdev/chronos-backend/internal/http/response"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	linkservice "github.com/chronosdev/chronos-backend/internal/services/link"
)

// Service описывает интерфейс выдачи кодов привязки.
type Service interface {
	IssueCode(ctx context.Context, userUID string) (*linkservice.IssuedCode, error)
}

// Handler управляет HTTP-запросами на выдачу кода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выдать код привязки Telegram
// @Description Создаёт одноразовый код с ограниченным сроком жизни и deep link для бота.
// @Tags Telegram
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Код, срок жизни и deep link"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /telegram/link-code [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.telegram.linkcode"

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

	issued, err := h.service.IssueCode(r.Context(), user.UID)
	if err != nil {
		log.Error("failed to issue link code", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to issue link code"))
		return
	}

	log.Info("link code issued", slog.String("user_uid", user.UID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"code":               issued.Code,
		"expires_in_seconds": issued.ExpiresInSeconds,
		"deep_link":          issued.DeepLink,
	}))
}
