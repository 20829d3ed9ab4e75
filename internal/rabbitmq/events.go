package rabbitmq

import (
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// ReferralRoutingKey ключ маршрутизации событий присоединившихся рефералов.
const ReferralRoutingKey = "referral.joined"

// ReferralQueue очередь уведомлений о присоединившихся рефералах.
const ReferralQueue = "notifications.referral"

// EventPublisher публикует доменные события бота в обменник.
type EventPublisher struct {
	ch *amqp.Channel
}

// NewEventPublisher создает издателя поверх открытого канала.
func NewEventPublisher(ch *amqp.Channel) *EventPublisher {
	return &EventPublisher{ch: ch}
}

// PublishReferralJoined публикует событие о присоединившемся реферале.
func (p *EventPublisher) PublishReferralJoined(event models.ReferralJoinedEvent) error {
	return PublishMessage(p.ch, Exchange, ReferralRoutingKey, event)
}
