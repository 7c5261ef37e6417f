package chronos

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/chronosdev/chronos-backend/internal/http/handlers/admin/activate"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/admin/ban"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/admin/lookup"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/admin/setplan"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/admin/unban"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/auth/login"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/auth/register"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/health"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/telegram/linkcode"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/telegram/linkconfirm"
	"github.com/chronosdev/chronos-backend/internal/http/handlers/user/me"
	"github.com/chronosdev/chronos-backend/internal/http/middlewarectx"
	"github.com/chronosdev/chronos-backend/internal/lib/jwt"
	"github.com/chronosdev/chronos-backend/internal/services/access"
	authservice "github.com/chronosdev/chronos-backend/internal/services/auth"
	linkservice "github.com/chronosdev/chronos-backend/internal/services/link"
	planservice "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	authService *authservice.AuthService,
	planService *planservice.Service,
	linkService *linkservice.Service,
	jwtMaker jwt.Maker,
	db *storage.Storage,
	gate *access.Gate,
	paidPlanDays int,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, authService).ServeHTTP)
		r.Post("/auth/login", login.New(logger, authService).ServeHTTP)

		// Привязка Telegram со стороны бота, авторизуется общим секретом
		r.Post("/telegram/link", linkconfirm.New(logger, linkService).ServeHTTP)

		// Группа с JWT аутентификацией и пропуском через гейт доступа
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AuthMiddleware(jwtMaker, db, gate, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/me", me.New(logger).ServeHTTP)
			r.Post("/telegram/link-code", linkcode.New(logger, linkService).ServeHTTP)

			// Административные операции
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminMiddleware(logger))
				r.Post("/admin/users/lookup", lookup.New(logger, planService).ServeHTTP)
				r.Post("/admin/plan/activate", activate.New(logger, planService, paidPlanDays).ServeHTTP)
				r.Post("/admin/users/{id}/plan", setplan.New(logger, planService).ServeHTTP)
				r.Post("/admin/users/{id}/ban", ban.New(logger, planService).ServeHTTP)
				r.Post("/admin/users/{id}/unban", unban.New(logger, planService).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New())
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
