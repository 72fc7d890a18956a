// Package sweeper собирает приложение свипера истёкших платежей.
// Свипер работает отдельным процессом и периодически отклоняет
// ожидающие платежи, пережившие своё окно оплаты.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gastropass/internal/cache"
	"github.com/magabrotheeeer/gastropass/internal/config"
	"github.com/magabrotheeeer/gastropass/internal/services/activator"
	"github.com/magabrotheeeer/gastropass/internal/services/reconciler"
	sweeperservice "github.com/magabrotheeeer/gastropass/internal/services/sweeper"
	"github.com/magabrotheeeer/gastropass/internal/storage/repository"
)

// App представляет приложение свипера.
type App struct {
	sweeperService *sweeperservice.Service
	db             *repository.Storage
	logger         *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения свипера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		_ = db.DB.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	activatorService := activator.New(db, logger)
	reconcilerService := reconciler.New(db, activatorService, cacheRedis, logger, cfg.Reconciler.PollInterval)
	sweeperService := sweeperservice.New(db, reconcilerService, logger, cfg.Sweeper.SweepInterval)

	return &App{
		sweeperService: sweeperService,
		db:             db,
		logger:         logger,
	}, nil
}

// Run запускает свипер и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.sweeperService.Run(ctx)

	<-ctx.Done()

	a.logger.Info("shutting down sweeper service")
	_ = a.db.DB.Close()
	return nil
}
