// Package chronos собирает HTTP-приложение бэкенда сигналов: хранилище,
// кэш, очередь событий, сервисы и маршруты.
package chronos

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/chronosdev/chronos-backend/internal/cache"
	"github.com/chronosdev/chronos-backend/internal/config"
	"github.com/chronosdev/chronos-backend/internal/lib/jwt"
	"github.com/chronosdev/chronos-backend/internal/lib/rabbitmq"
	"github.com/chronosdev/chronos-backend/internal/lib/sl"
	"github.com/chronosdev/chronos-backend/internal/migrations"
	"github.com/chronosdev/chronos-backend/internal/services/access"
	authservice "github.com/chronosdev/chronos-backend/internal/services/auth"
	linkservice "github.com/chronosdev/chronos-backend/internal/services/link"
	planservice "github.com/chronosdev/chronos-backend/internal/services/plan"
	"github.com/chronosdev/chronos-backend/internal/storage"
)

// App представляет HTTP-приложение бэкенда.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New инициализирует зависимости приложения: подключает Postgres и
// применяет миграции, поднимает Redis и RabbitMQ, создает сервисы и
// регистрирует маршруты. RabbitMQ обязателен: события жизненного цикла
// учётных записей входят в контракт сервиса.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err = storage.CheckDatabaseReady(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.AddressRabbitMQ, cfg.ConnectRetries, cfg.ConnectDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetAccountEventQueues())
	if err != nil {
		closeBroker(nil, conn, logger)
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	jwtMaker := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	gate := access.NewGate(db, logger)
	authService := authservice.NewAuthService(db, jwtMaker, cfg.TrialDays)
	planService := planservice.New(db, publisher, logger)
	linkService := linkservice.New(cacheRedis, db, publisher,
		cfg.BotUsername, cfg.LinkSecret, cfg.CodeTTL, logger)

	bootstrapAdmin(ctx, cfg, authService, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, authService, planService, linkService, jwtMaker, db, gate, cfg.PaidPlanDays)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// bootstrapAdmin создает административную учётную запись из конфига.
// Выполняется на лучших усилиях: существующий email не ошибка, прочие
// сбои логируются и не мешают запуску.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, auth *authservice.AuthService, logger *slog.Logger) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return
	}

	uid, err := auth.RegisterAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			logger.Info("admin account already exists")
			return
		}
		logger.Error("failed to bootstrap admin account", sl.Err(err))
		return
	}
	logger.Info("admin account created", slog.String("user_uid", uid))
}

func closeBroker(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает HTTP-сервер и блокируется до отмены контекста или
// фатальной ошибки сервера. Отмена контекста выполняет graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		closeBroker(a.ch, a.conn, a.logger)
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Error("failed to close database", sl.Err(cerr))
		}
		return err
	}
}
