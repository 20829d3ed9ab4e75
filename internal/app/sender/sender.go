// Package sender содержит приложение доставки уведомлений: читает события
// о присоединившихся рефералах из очереди и сообщает пригласившему
// в Telegram.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/warp-config-bot/internal/config"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
	"github.com/magabrotheeeer/warp-config-bot/internal/rabbitmq"
)

// App приложение доставки уведомлений.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// New создает приложение доставки уведомлений.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	return &App{
		conn:   conn,
		ch:     ch,
		api:    api,
		logger: logger,
	}, nil
}

// Run запускает потребителя очереди до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.ReferralQueue, a.handleReferralJoined)
	if err != nil {
		a.logger.Error("failed to start referral consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("notification sender shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}

// handleReferralJoined доставляет пригласившему сообщение о новом реферале.
func (a *App) handleReferralJoined(body []byte) error {
	var event models.ReferralJoinedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode referral event: %w", err)
	}

	name := event.NewUserName
	if name == "" {
		name = event.NewUserHandle
	}
	text := fmt.Sprintf("По вашей ссылке присоединился %s. Ваш дневной лимит увеличен на 1.", name)
	if _, err := a.api.Send(tgbotapi.NewMessage(event.ReferrerID, text)); err != nil {
		return fmt.Errorf("failed to notify referrer %d: %w", event.ReferrerID, err)
	}

	a.logger.Info("referrer notified",
		slog.Int64("referrer_id", event.ReferrerID),
		slog.Int64("new_user_id", event.NewUserID))
	return nil
}
