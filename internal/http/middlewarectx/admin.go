package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/chronosdev/chronos-backend/internal/http/response"
)

// AdminMiddleware пропускает только администраторов. Ставится после
// AuthMiddleware: бан администратора отсекается ещё там, привилегия
// админа действующий бан не перекрывает.
func AdminMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AdminMiddleware"

			user, ok := UserFromContext(r.Context())
			if !ok {
				log.Error("user missing in context",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}
			if !user.IsAdmin {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin only"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
