// Package warpbot собирает основной сервис: хранилище, кеш, обменник
// событий, доменные сервисы, адаптер Telegram и HTTP-сервер панели
// администратора.
package warpbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/warp-config-bot/internal/cache"
	"github.com/magabrotheeeer/warp-config-bot/internal/config"
	jwtlib "github.com/magabrotheeeer/warp-config-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/warp-config-bot/internal/migrations"
	"github.com/magabrotheeeer/warp-config-bot/internal/rabbitmq"
	adminservice "github.com/magabrotheeeer/warp-config-bot/internal/services/admin"
	catalogservice "github.com/magabrotheeeer/warp-config-bot/internal/services/catalog"
	entitlementservice "github.com/magabrotheeeer/warp-config-bot/internal/services/entitlement"
	issuanceservice "github.com/magabrotheeeer/warp-config-bot/internal/services/issuance"
	"github.com/magabrotheeeer/warp-config-bot/internal/storage/repository"
	"github.com/magabrotheeeer/warp-config-bot/internal/telegram"
)

// App основной сервис бота.
type App struct {
	server *http.Server
	bot    *telegram.Bot
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
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

// New создает основной сервис и все его зависимости.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(db); err != nil {
		return nil, err
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	publisher := rabbitmq.NewEventPublisher(ch)

	entitlements := entitlementservice.New(db, cacheRedis, publisher, logger, cfg.SuperAdminID)
	if err := entitlements.SeedDefaults(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	catalog := catalogservice.New(db, logger)
	issuer := issuanceservice.New(db, entitlements, logger)

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	// Адаптер и административный сервис ссылаются друг на друга:
	// бот вызывает рассылку, рассылка шлёт сообщения через бота.
	// Цикл разрывается замыканием: сервис получает функцию, которая
	// обращается к боту, созданному следом.
	limiter := rate.NewLimiter(rate.Limit(cfg.BroadcastPerSecond), cfg.BroadcastBurst)
	var bot *telegram.Bot
	admin := adminservice.New(db, notifierFunc(func(accountID int64, message string) error {
		return bot.Send(accountID, message)
	}), logger, limiter)
	bot = telegram.New(api, entitlements, catalog, issuer, admin, logger, cfg.SuperAdminID, cfg.UpdateTimeout)

	maker := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, admin, catalog, maker)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		bot:    bot,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// notifierFunc адаптирует функцию к интерфейсу Notifier.
type notifierFunc func(accountID int64, message string) error

func (f notifierFunc) Send(accountID int64, message string) error {
	return f(accountID, message)
}

// Run запускает HTTP-сервер и опрос Telegram, останавливается по отмене
// контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go func() {
		err := a.bot.Run(ctx)
		if errors.Is(err, context.Canceled) {
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
		a.logger.Info("shutting down gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.ch.Close(); closeErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", closeErr))
		}
		if closeErr := a.conn.Close(); closeErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		a.db.DB.Close()
		return err
	}
}
