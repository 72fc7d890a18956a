// Package gastropass собирает основное приложение: хранилище, миграции,
// кэш, RabbitMQ, платёжный шлюз и все сервисы вокруг reconciler-а.
package gastropass

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/gastropass/internal/cache"
	"github.com/magabrotheeeer/gastropass/internal/config"
	"github.com/magabrotheeeer/gastropass/internal/lib/jwt"
	"github.com/magabrotheeeer/gastropass/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gastropass/internal/lib/sl"
	"github.com/magabrotheeeer/gastropass/internal/migrations"
	"github.com/magabrotheeeer/gastropass/internal/paymentprovider"
	"github.com/magabrotheeeer/gastropass/internal/services/activator"
	"github.com/magabrotheeeer/gastropass/internal/services/benefits"
	"github.com/magabrotheeeer/gastropass/internal/services/lifecycle"
	"github.com/magabrotheeeer/gastropass/internal/services/reconciler"
	"github.com/magabrotheeeer/gastropass/internal/storage/repository"
)

// App представляет основное приложение GastroPass.
type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	conn       *amqp.Connection
	ch         *amqp.Channel
	reconciler *reconciler.Service
}

// New создает приложение: подключает все зависимости и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, ch, err := rabbitmq.Connect(cfg.RabbitConnection.URL)
	if err != nil {
		return nil, err
	}
	if err = rabbitmq.SetupPaymentQueues(ch); err != nil {
		closeRabbit(ch, conn, logger)
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)
	providerClient := paymentprovider.NewClient(cfg.Provider.ShopID, cfg.Provider.SecretKey, cfg.Provider.APIURL)

	activatorService := activator.New(db, logger)
	reconcilerService := reconciler.New(db, activatorService, cacheRedis, logger, cfg.Reconciler.PollInterval).
		WithProvider(providerClient).
		WithOverrideRepository(db).
		WithEvents(ch)
	lifecycleService := lifecycle.New(db, db, reconcilerService, cacheRedis, logger)
	benefitsService := benefits.New(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, lifecycleService, reconcilerService, activatorService, benefitsService, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		conn:       conn,
		ch:         ch,
		reconciler: reconcilerService,
	}, nil
}

// Run запускает HTTP-сервер, push-канал и восстановление наблюдателей.
// Блокируется до отмены контекста, затем гасит сервер и закрывает ресурсы.
func (a *App) Run(ctx context.Context) error {
	if err := a.reconciler.ResumePending(ctx); err != nil {
		a.logger.Error("failed to resume pending watchers", sl.Err(err))
	}

	go func() {
		if err := a.reconciler.RunPushChannel(ctx, a.ch); err != nil {
			a.logger.Error("push channel stopped", sl.Err(err))
		}
	}()

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
		closeRabbit(a.ch, a.conn, a.logger)
		_ = a.db.DB.Close()
		return err
	}
}

func closeRabbit(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
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
