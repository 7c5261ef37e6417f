// Package health реализует HTTP-обработчик проверки живости сервиса.
package health

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/chronosdev/chronos-backend/internal/http/response"
)

// New возвращает обработчик, отвечающий статусом OK.
func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.OKWithData(map[string]any{
			"alive": true,
		}))
	}
}
