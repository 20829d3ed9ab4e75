// Package sweeper содержит приложение очистки: по расписанию удаляет
// выдачи старше окна хранения.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/warp-config-bot/internal/cache"
	"github.com/magabrotheeeer/warp-config-bot/internal/config"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
	entitlementservice "github.com/magabrotheeeer/warp-config-bot/internal/services/entitlement"
	issuanceservice "github.com/magabrotheeeer/warp-config-bot/internal/services/issuance"
	"github.com/magabrotheeeer/warp-config-bot/internal/storage/repository"
)

// App приложение очистки устаревших выдач.
type App struct {
	issuer   *issuanceservice.Service
	interval time.Duration
	logger   *slog.Logger
	db       *repository.Storage
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

// New создает приложение очистки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	// Очистке события не нужны, издатель здесь пустой.
	entitlements := entitlementservice.New(db, cacheRedis, noopPublisher{}, logger, cfg.SuperAdminID)
	issuer := issuanceservice.New(db, entitlements, logger)

	return &App{
		issuer:   issuer,
		interval: cfg.SweepInterval,
		logger:   logger,
		db:       db,
	}, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishReferralJoined(models.ReferralJoinedEvent) error { return nil }

// Run запускает цикл очистки: первый проход сразу, дальше по интервалу.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("sweeper shutting down gracefully")
			a.db.DB.Close()
			return nil
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *App) sweep(ctx context.Context) {
	count, err := a.issuer.PurgeOlderThan(ctx, 0)
	if err != nil {
		a.logger.Error("sweep failed", sl.Err(err))
		return
	}
	a.logger.Info("sweep finished", slog.Int("purged", count))
}
