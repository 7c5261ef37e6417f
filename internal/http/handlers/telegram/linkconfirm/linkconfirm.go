// Package linkconfirm реализует HTTP-обработчик обмена кода привязки
// на связь аккаунта с Telegram. Вызывается ботом с общим секретом.
package linkconfirm

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
	linkservice "github.com/chronosdev/chronos-backend/internal/services/link"
)

// Request описывает тело запроса на подтверждение привязки.
type Request struct {
	Code             string  `json:"code" validate:"required,min=4,max=32"`
	TelegramID       int64   `json:"telegram_id" validate:"required"`
	TelegramUsername *string `json:"telegram_username,omitempty"`
}

// Service описывает интерфейс погашения кода привязки.
type Service interface {
	Redeem(ctx context.Context, code string, telegramID int64, telegramUsername *string, secret string) (string, error)
}

// Handler управляет HTTP-запросами на подтверждение привязки.
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
// @Summary Подтвердить привязку Telegram
// @Description Погашает одноразовый код и связывает аккаунт с Telegram. Требует заголовок X-Tg-Secret.
// @Tags Telegram
// @Accept  json
// @Produce  json
// @Param X-Tg-Secret header string true "Общий секрет бота"
// @Param request body Request true "Код и данные Telegram"
// @Success 200 {object} map[string]any "UID привязанного пользователя"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело запроса"
// @Failure 401 {object} response.ErrorResponse "Неверный секрет"
// @Failure 404 {object} response.ErrorResponse "Код не найден или истек"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /telegram/link [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.telegram.linkconfirm"

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

	secret := r.Header.Get("X-Tg-Secret")

	userUID, err := h.service.Redeem(r.Context(), req.Code, req.TelegramID, req.TelegramUsername, secret)
	if err != nil {
		switch {
		case errors.Is(err, linkservice.ErrUnauthorized):
			log.Warn("link redemption with invalid secret")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid secret"))
		case errors.Is(err, linkservice.ErrCodeNotFound):
			log.Info("link code not found or expired")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("code not found or expired"))
		default:
			log.Error("failed to redeem link code", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to redeem link code"))
		}
		return
	}

	log.Info("telegram linked", slog.String("user_uid", userUID), slog.Int64("telegram_id", req.TelegramID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid": userUID,
		"linked":   true,
	}))
}
